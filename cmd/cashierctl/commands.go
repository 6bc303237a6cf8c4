package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/creator-cashier/internal/app"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
)

// withApp starts the core graph, runs fn, and stops the graph again.
func withApp(ctx context.Context, targets []any, fn func() error) error {
	a := fx.New(app.CoreModule, fx.NopLogger, fx.Populate(targets...))
	if err := a.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	runErr := fn()

	stopCtx, cancel2 := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(flag, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

func reconcileCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Pull the gateway transaction report and repair or import payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDay("start", start, false)
			if err != nil {
				return err
			}
			to, err := parseDay("end", end, true)
			if err != nil {
				return err
			}
			var engine *reconcile.Engine
			return withApp(cmd.Context(), []any{&engine}, func() error {
				summary, err := engine.SyncGatewayTransactions(cmd.Context(), reconcile.Request{StartDate: from, EndDate: to})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD), defaults to reconcile.default_days ago")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD, inclusive), defaults to now")
	return cmd
}

func balanceCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "balance [customer-id]",
		Short: "Show a customer's credits balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var led *ledger.Service
			return withApp(cmd.Context(), []any{&led}, func() error {
				balance, err := led.CurrentBalance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !history {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], balance)
					return nil
				}
				entries, err := led.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"customer_id": args[0], "balance": balance, "history": entries})
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Print the full ledger as JSON")
	return cmd
}

func verifyLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger [customer-id]",
		Short: "Replay a customer's ledger and check every balance snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var led *ledger.Service
			return withApp(cmd.Context(), []any{&led}, func() error {
				report, err := led.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.Consistent {
					return fmt.Errorf("ledger broken at seq %d: expected %d, got %d", report.BrokenSeq, report.Expected, report.Actual)
				}
				return nil
			})
		},
	}
}

// Command api serves the payment, credits and reconciliation HTTP API.
package main

// @title           Creator Cashier API
// @version         1.0
// @description     Payments, credits ledger and gateway reconciliation for creator services.
// @description     Every response is HTTP 200 with a {code, message, data} envelope.

// @tag.name         Payment
// @tag.description  Card, ACH, wallet, PayPal and hosted page checkouts
// @tag.name         Credits
// @tag.description  Credits balance and ledger
// @tag.name         Admin
// @tag.description  Reconciliation, refunds and catalog maintenance

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creator-cashier/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	a := fx.New(app.Module)
	// the app logger may not exist if the graph failed to build
	fallback := zap.NewExample().Sugar()

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		fallback.Errorw("failed to start", "err", err)
		return 1
	}

	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		fallback.Errorw("failed to stop", "err", err)
		return 1
	}
	return sig.ExitCode
}

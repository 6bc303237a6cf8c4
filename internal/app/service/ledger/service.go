package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/metrics"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/zap"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrZeroDelta           = errors.New("ledger delta must not be zero")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type Service struct {
	repo    repository.Repository
	metrics *metrics.Business
	log     *zap.SugaredLogger
}

func NewService(repo repository.Repository, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, metrics: m, log: log}
}

type AppendRequest struct {
	CustomerID string
	Delta      int64
	Kind       types.LedgerEntryKind
	Reason     string
	RefOrderID *string
}

// Append writes one entry in its own transaction and returns it.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*models.CreditsLedgerEntry, error) {
	var entry *models.CreditsLedgerEntry
	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		entry, err = s.AppendTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendTx appends on the caller's transaction. The customer row lock
// serializes writers, so the previous balance read here is the one the new
// entry extends. Negative deltas never take the balance below zero.
func (s *Service) AppendTx(ctx context.Context, tx repository.Repository, req AppendRequest) (*models.CreditsLedgerEntry, error) {
	if req.Delta == 0 {
		return nil, ErrZeroDelta
	}
	if req.Kind == "" {
		req.Kind = types.LedgerEntryKindAdjustment
	}
	if err := tx.LockCustomer(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("failed to lock customer %s: %w", req.CustomerID, err)
	}

	var prevSeq, prevBalance int64
	latest, err := tx.LatestLedgerEntry(ctx, req.CustomerID)
	switch {
	case err == nil:
		prevSeq, prevBalance = latest.Seq, latest.BalanceAfter
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to read latest ledger entry: %w", err)
	}

	balance := prevBalance + req.Delta
	if req.Delta < 0 && balance < 0 {
		return nil, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientCredits, prevBalance, -req.Delta)
	}

	entry := &models.CreditsLedgerEntry{
		CustomerID:   req.CustomerID,
		Seq:          prevSeq + 1,
		Delta:        req.Delta,
		BalanceAfter: balance,
		Kind:         req.Kind,
		Reason:       strings.TrimSpace(req.Reason),
		RefOrderID:   req.RefOrderID,
	}
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	s.metrics.LedgerAppend(string(req.Kind))
	logctx.FromCtx(ctx, s.log).Infow("ledger_append", "customer_id", req.CustomerID, "seq", entry.Seq,
		"delta", req.Delta, "balance_after", balance, "kind", req.Kind)
	return entry, nil
}

// Adjust is a manual admin correction in either direction.
func (s *Service) Adjust(ctx context.Context, customerID string, delta int64, reason string) (*models.CreditsLedgerEntry, error) {
	return s.Append(ctx, AppendRequest{CustomerID: customerID, Delta: delta, Kind: types.LedgerEntryKindAdjustment, Reason: reason})
}

// Deduct spends amount credits. It fails with ErrInsufficientCredits, leaving
// the ledger untouched, when the balance is lower than amount.
func (s *Service) Deduct(ctx context.Context, customerID string, amount int64, reason string, refOrderID *string) (*models.CreditsLedgerEntry, error) {
	var entry *models.CreditsLedgerEntry
	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		entry, err = s.DeductTx(ctx, tx, customerID, amount, types.LedgerEntryKindDeduction, reason, refOrderID)
		return err
	})
	return entry, err
}

func (s *Service) DeductTx(ctx context.Context, tx repository.Repository, customerID string, amount int64, kind types.LedgerEntryKind, reason string, refOrderID *string) (*models.CreditsLedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.AppendTx(ctx, tx, AppendRequest{CustomerID: customerID, Delta: -amount, Kind: kind, Reason: reason, RefOrderID: refOrderID})
}

// CurrentBalance is the balance-after of the latest entry, or zero.
func (s *Service) CurrentBalance(ctx context.Context, customerID string) (int64, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return 0, err
	}
	latest, err := s.repo.LatestLedgerEntry(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read latest ledger entry: %w", err)
	}
	return latest.BalanceAfter, nil
}

// History returns every entry for the customer, oldest first.
func (s *Service) History(ctx context.Context, customerID string) ([]*models.CreditsLedgerEntry, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, customerID)
}

type VerifyReport struct {
	CustomerID string `json:"customer_id"`
	Entries    int    `json:"entries"`
	Balance    int64  `json:"balance"`
	Consistent bool   `json:"consistent"`
	// BrokenSeq is the first entry whose balance_after does not extend the previous one.
	BrokenSeq int64 `json:"broken_seq,omitempty"`
	Expected  int64 `json:"expected,omitempty"`
	Actual    int64 `json:"actual,omitempty"`
}

// Verify replays the ledger and checks every balance snapshot against the
// running sum of deltas.
func (s *Service) Verify(ctx context.Context, customerID string) (*VerifyReport, error) {
	entries, err := s.History(ctx, customerID)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{CustomerID: customerID, Entries: len(entries), Consistent: true}
	var running, prevSeq int64
	for _, e := range entries {
		running += e.Delta
		if e.BalanceAfter != running || e.Seq != prevSeq+1 {
			report.Consistent = false
			report.BrokenSeq = e.Seq
			report.Expected = running
			report.Actual = e.BalanceAfter
			break
		}
		prevSeq = e.Seq
	}
	if len(entries) > 0 {
		report.Balance = entries[len(entries)-1].BalanceAfter
	}
	if !report.Consistent {
		logctx.FromCtx(ctx, s.log).Errorw("ledger_inconsistent", "customer_id", customerID, "seq", report.BrokenSeq,
			"expected", report.Expected, "actual", report.Actual)
	}
	return report, nil
}

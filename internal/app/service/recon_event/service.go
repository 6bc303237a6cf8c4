package recon_event

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"go.uber.org/zap"
)

const defaultListLimit = 100

// Service stores "reconciliation needed" outcomes: charges whose gateway
// result is known (or unknown) but whose local bookkeeping is missing.
type Service struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	now  func() time.Time
}

func NewService(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

type Event struct {
	Kind          models.ReconciliationEventKind
	TransactionID string
	OrderRef      string
	CustomerEmail string
	AmountCents   int64
	Detail        string
}

// Record writes an open event. It runs outside any checkout transaction so it
// survives the rollback that caused it.
func (s *Service) Record(ctx context.Context, ev Event) (*models.ReconciliationEvent, error) {
	row := &models.ReconciliationEvent{
		Kind:          ev.Kind,
		Status:        models.ReconciliationEventOpen,
		TransactionID: ev.TransactionID,
		OrderRef:      ev.OrderRef,
		CustomerEmail: ev.CustomerEmail,
		AmountCents:   ev.AmountCents,
		Detail:        ev.Detail,
	}
	if err := s.repo.CreateReconciliationEvent(ctx, row); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("reconciliation_event_save_failed",
			"kind", ev.Kind, "transaction_id", ev.TransactionID, "order_ref", ev.OrderRef, "err", err)
		return nil, fmt.Errorf("failed to record reconciliation event: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Warnw("reconciliation_needed",
		"event_id", row.ID, "kind", ev.Kind, "transaction_id", ev.TransactionID, "order_ref", ev.OrderRef)
	return row, nil
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListReconciliationEvents(ctx, models.ReconciliationEventOpen, limit)
}

// ResolveByTransactionID closes open events for a transaction the local
// books now know about. orderRef is optional.
func (s *Service) ResolveByTransactionID(ctx context.Context, transactionID, orderRef string) (int64, error) {
	n, err := s.repo.ResolveReconciliationEvents(ctx, transactionID, orderRef, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve reconciliation events: %w", err)
	}
	if n > 0 {
		logctx.FromCtx(ctx, s.log).Infow("reconciliation_events_resolved", "transaction_id", transactionID, "order_ref", orderRef, "count", n)
	}
	return n, nil
}

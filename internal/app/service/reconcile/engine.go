package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/internal/platform/lock"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/metrics"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	// ErrGatewayUnreachable is returned when every candidate query failed.
	ErrGatewayUnreachable = errors.New("no gateway report query succeeded")
	ErrRunInProgress      = errors.New("reconciliation is already running")
	ErrInvalidRange       = errors.New("start date must not be after end date")

	errNoAmount = errors.New("gateway transaction has no amount")
)

const (
	lockKey            = "reconcile"
	placeholderDomain  = "reconciled.invalid"
	defaultLockTTL     = 10 * time.Minute
	resultReconciled   = "reconciled"
	resultImported     = "imported"
	resultUnmatched    = "unmatched"
	resultSkipped      = "skipped"
	resultCapturedFill = "captured_at_backfilled"
)

// conditions and types that never describe money received.
var (
	unpaidConditions = []string{"failed", "canceled", "cancelled", "abandoned", "declined"}
	unpaidTypes      = []string{"refund", "credit", "void", "auth", "validate"}
)

type Request struct {
	StartDate *time.Time
	EndDate   *time.Time
}

type Summary struct {
	Message           string `json:"message"`
	Total             int    `json:"total"`
	Reconciled        int    `json:"reconciled"`
	UpdatedCapturedAt int    `json:"updatedCapturedAt"`
	Imported          int    `json:"imported"`
	Unmatched         int    `json:"unmatched"`
	Skipped           int    `json:"skipped"`
	// Candidate names the query that produced the batch, host included.
	Candidate string    `json:"candidate,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type Engine struct {
	cfg      *config.Config
	nmi      *nmi.Client
	repo     repository.Repository
	checkout *checkout.Service
	events   *recon_event.Service
	locker   lock.Locker
	metrics  *metrics.Business
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewEngine(cfg *config.Config, gw *nmi.Client, repo repository.Repository, co *checkout.Service,
	events *recon_event.Service, locker lock.Locker, m *metrics.Business, log *zap.SugaredLogger) *Engine {
	return &Engine{cfg: cfg, nmi: gw, repo: repo, checkout: co, events: events, locker: locker, metrics: m, log: log, now: time.Now}
}

// SyncGatewayTransactions pulls the gateway's transaction report for the
// range and folds it into local state. Known transactions are repaired,
// unknown ones imported. Individual failures are counted, not returned; the
// only errors are a bad range, a concurrent run and an unreachable gateway.
func (e *Engine) SyncGatewayTransactions(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	defer e.metrics.ObserveProcess("reconcile", "sync", start)
	log := logctx.FromCtx(ctx, e.log)

	from, to, err := e.dateRange(req)
	if err != nil {
		return nil, err
	}

	release, err := e.locker.Acquire(ctx, lockKey, lo.Ternary(e.cfg.Reconcile.LockTTL > 0, e.cfg.Reconcile.LockTTL, defaultLockTTL))
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire reconcile lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("reconcile_lock_release_failed", "err", err)
		}
	}()

	txns, used, err := e.fetch(ctx, from, to)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Total: len(txns), Candidate: used, StartDate: from, EndDate: to}
	for i := range txns {
		switch e.apply(ctx, &txns[i], sum) {
		case resultReconciled:
			sum.Reconciled++
		case resultImported:
			sum.Imported++
		case resultUnmatched:
			sum.Unmatched++
		case resultSkipped:
			sum.Skipped++
		}
	}
	sum.Message = summaryMessage(sum)

	e.metrics.Reconciled(resultReconciled, sum.Reconciled)
	e.metrics.Reconciled(resultImported, sum.Imported)
	e.metrics.Reconciled(resultUnmatched, sum.Unmatched)
	e.metrics.Reconciled(resultSkipped, sum.Skipped)
	e.metrics.Reconciled(resultCapturedFill, sum.UpdatedCapturedAt)
	log.Infow("reconcile_done", "start_date", from, "end_date", to, "candidate", used, "total", sum.Total,
		"reconciled", sum.Reconciled, "updated_captured_at", sum.UpdatedCapturedAt, "imported", sum.Imported,
		"unmatched", sum.Unmatched, "skipped", sum.Skipped)
	return sum, nil
}

func (e *Engine) dateRange(req Request) (time.Time, time.Time, error) {
	to := e.now().UTC()
	if req.EndDate != nil {
		to = req.EndDate.UTC()
	}
	days := lo.Ternary(e.cfg.Reconcile.DefaultDays > 0, e.cfg.Reconcile.DefaultDays, 30)
	from := to.AddDate(0, 0, -days)
	if req.StartDate != nil {
		from = req.StartDate.UTC()
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

// fetch tries the candidates in order and stops at the first that returns
// at least one transaction. A host that fails in transit is not asked again.
func (e *Engine) fetch(ctx context.Context, from, to time.Time) ([]types.GatewayTransaction, string, error) {
	log := logctx.FromCtx(ctx, e.log)
	dead := map[string]bool{}
	answered := false
	var lastErr error
	for _, c := range buildCandidates(e.nmi.QueryHosts(), from, to) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if dead[c.host] {
			continue
		}
		txns, err := e.nmi.Query(ctx, c.host, c.params)
		if err != nil {
			lastErr = err
			log.Warnw("reconcile_candidate_failed", "host", c.host, "candidate", c.name, "err", err)
			if errors.Is(err, nmi.ErrUnreachable) {
				dead[c.host] = true
			}
			continue
		}
		answered = true
		if !lo.SomeBy(txns, func(t types.GatewayTransaction) bool { return t.TransactionID != "" }) {
			log.Infow("reconcile_candidate_empty", "host", c.host, "candidate", c.name, "blocks", len(txns))
			continue
		}
		return txns, c.host + " " + c.name, nil
	}
	if !answered {
		if lastErr == nil {
			return nil, "", fmt.Errorf("%w: no query hosts configured", ErrGatewayUnreachable)
		}
		return nil, "", fmt.Errorf("%w: %v", ErrGatewayUnreachable, lastErr)
	}
	return nil, "", nil
}

func summaryMessage(s *Summary) string {
	if s.Total == 0 {
		return "No gateway transactions found in range"
	}
	return fmt.Sprintf("Processed %d gateway transactions: %d reconciled (%d capture times backfilled), %d imported, %d unmatched, %d skipped",
		s.Total, s.Reconciled, s.UpdatedCapturedAt, s.Imported, s.Unmatched, s.Skipped)
}

// apply folds one gateway transaction into local state and reports which
// bucket it landed in.
func (e *Engine) apply(ctx context.Context, txn *types.GatewayTransaction, sum *Summary) string {
	log := logctx.FromCtx(ctx, e.log).With("transaction_id", txn.TransactionID)
	if txn.TransactionID == "" {
		return resultSkipped
	}
	if lo.Contains(unpaidConditions, txn.Condition) || lo.Contains(unpaidTypes, txn.TransactionType) {
		log.Debugw("reconcile_skip_unpaid", "condition", txn.Condition, "type", txn.TransactionType)
		return resultSkipped
	}

	result, backfilled, err := e.applyTx(ctx, txn)
	if errors.Is(err, checkout.ErrAlreadyRecorded) {
		// Booked by a concurrent charge between the lookup and the insert;
		// the next attempt takes the repair path.
		log.Infow("reconcile_import_raced")
		result, backfilled, err = e.applyTx(ctx, txn)
	}
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, catalog.ErrNoOffers):
			reason = "empty_catalog"
		case errors.Is(err, errNoAmount):
			reason = "no_amount"
		}
		log.Warnw("reconcile_unmatched", "reason", reason, "amount_cents", txn.AmountCents, "email", txn.Email, "err", err)
		return resultUnmatched
	}
	if backfilled {
		sum.UpdatedCapturedAt++
	}

	if n, err := e.events.ResolveByTransactionID(ctx, txn.TransactionID, txn.OrderID); err != nil {
		log.Warnw("reconcile_event_resolve_failed", "err", err)
	} else if n > 0 {
		log.Infow("reconcile_events_resolved", "count", n)
	}
	return result
}

// applyTx repairs the payment booked under txn's id, or imports txn as a new
// paid order when there is none, in one transaction.
func (e *Engine) applyTx(ctx context.Context, txn *types.GatewayTransaction) (result string, backfilled bool, err error) {
	err = e.repo.WithTx(ctx, func(tx repository.Repository) error {
		payment, err := tx.GetPaymentByExternalID(ctx, txn.TransactionID)
		switch {
		case err == nil:
			if backfilled, err = e.repair(ctx, tx, payment, txn); err != nil {
				return err
			}
			result = resultReconciled
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("failed to look up payment: %w", err)
		}

		if !txn.HasAmount || txn.AmountCents <= 0 {
			return errNoAmount
		}
		if _, err := e.checkout.CommitTx(ctx, tx, e.importRequest(txn)); err != nil {
			return err
		}
		result = resultImported
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return result, backfilled, nil
}

// repair brings an already booked payment in line with the gateway: a
// non-final payment becomes COMPLETED, the order becomes PAID, and a missing
// capture time is filled from the gateway. Refunds are never undone.
func (e *Engine) repair(ctx context.Context, tx repository.Repository, payment *models.Payment, txn *types.GatewayTransaction) (bool, error) {
	if payment.Status != types.PaymentStatusCompleted && payment.Status != types.PaymentStatusRefunded {
		payment.Status = types.PaymentStatusCompleted
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return false, fmt.Errorf("failed to complete payment: %w", err)
		}
	}

	order, err := tx.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return false, fmt.Errorf("failed to get order %s: %w", payment.OrderID, err)
	}
	before := *order
	changed, backfilled := false, false
	if order.Status == types.OrderStatusCreated {
		order.Status = types.OrderStatusPaid
		changed = true
	}
	if order.CapturedAt == nil && order.Status.Captured() {
		switch {
		case txn.Timestamp != nil:
			at := txn.Timestamp.UTC()
			order.CapturedAt = &at
			backfilled = true
		case changed:
			at := e.now().UTC()
			order.CapturedAt = &at
		}
		changed = changed || order.CapturedAt != nil
	}
	if !changed {
		return false, nil
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	entry := &models.OrderStatusLog{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     "reconcile",
		Before:     datatypes.NewJSONType(&before),
		After:      datatypes.NewJSONType(order),
		Extra:      datatypes.JSONMap{"transaction_id": txn.TransactionID, "captured_at_backfilled": backfilled},
	}
	if err := tx.CreateOrderStatusLog(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to write order status log: %w", err)
	}
	return backfilled, nil
}

// PlaceholderEmail is the deterministic customer email for gateway
// transactions without a usable email, so re-runs find the same customer.
func PlaceholderEmail(transactionID string) string {
	return "txn-" + strings.ToLower(transactionID) + "@" + placeholderDomain
}

func (e *Engine) importRequest(txn *types.GatewayTransaction) *checkout.Request {
	email := txn.Email
	raw := txn.Raw
	if !customer.ValidEmail(email) {
		email = PlaceholderEmail(txn.TransactionID)
		if txn.Email != "" {
			raw = lo.Assign(txn.Raw, map[string]string{"gateway_email": txn.Email})
		}
	}
	method := types.PaymentMethodCard
	if txn.Raw["check_account"] != "" || txn.Raw["checkaccount"] != "" || strings.EqualFold(txn.Raw["payment_type"], "ck") {
		method = types.PaymentMethodACH
	}
	return &checkout.Request{
		Transaction:   *txn,
		Customer:      customer.Info{Name: txn.FullName(), Email: email},
		MatchByAmount: true,
		Method:        method,
		Source:        types.PaymentSourceReconcile,
		OrderRef:      txn.OrderID,
		Raw:           raw,
	}
}

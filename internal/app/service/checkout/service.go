package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/metrics"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	// ErrAlreadyRecorded means a payment with the same gateway transaction id exists.
	ErrAlreadyRecorded    = errors.New("gateway transaction already recorded")
	ErrMissingTransaction = errors.New("gateway transaction id is required")
	ErrOrderNotRefundable = errors.New("order is not refundable")
)

type Service struct {
	repo     repository.Repository
	customer *customer.Service
	catalog  *catalog.Service
	ledger   *ledger.Service
	cfg      *config.Config
	metrics  *metrics.Business
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(repo repository.Repository, cust *customer.Service, cat *catalog.Service, led *ledger.Service,
	cfg *config.Config, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, customer: cust, catalog: cat, ledger: led, cfg: cfg, metrics: m, log: log, now: time.Now}
}

type ShoutoutInfo struct {
	Platform string
	Username string
}

// Request describes one confirmed gateway payment to be booked.
type Request struct {
	Transaction types.GatewayTransaction
	AuthCode    string
	Customer    customer.Info
	// OfferRef is an offer id or SKU. When MatchByAmount is set it is ignored
	// and the offer is chosen by the paid amount.
	OfferRef      string
	MatchByAmount bool
	Quantity      int
	Method        types.PaymentMethod
	Source        types.PaymentSource
	OrderRef      string
	Shoutout      *ShoutoutInfo
	// Raw is stored on the payment; it must already be redacted.
	Raw map[string]string
}

type Result struct {
	Customer     *models.Customer           `json:"customer"`
	Offer        *models.Offer              `json:"offer"`
	Order        *models.Order              `json:"order"`
	Payment      *models.Payment            `json:"payment"`
	Subscription *models.Subscription       `json:"subscription,omitempty"`
	LedgerEntry  *models.CreditsLedgerEntry `json:"ledger_entry,omitempty"`
	Shoutout     *models.Shoutout           `json:"shoutout,omitempty"`
	LiveReview   *models.LiveReview         `json:"live_review,omitempty"`
}

// Commit books the payment in one transaction. Either every row is written or
// none is.
func (s *Service) Commit(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	defer s.metrics.ObserveProcess("checkout", string(req.Source), start)

	var res *Result
	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		res, err = s.CommitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CommitTx is Commit on the caller's transaction.
func (s *Service) CommitTx(ctx context.Context, tx repository.Repository, req *Request) (*Result, error) {
	txn := req.Transaction
	if strings.TrimSpace(txn.TransactionID) == "" {
		return nil, ErrMissingTransaction
	}
	if _, err := tx.GetPaymentByExternalID(ctx, txn.TransactionID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRecorded, txn.TransactionID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	res := &Result{}
	var err error
	if res.Customer, err = s.customer.FindOrCreateTx(ctx, tx, req.Customer); err != nil {
		return nil, err
	}
	if req.MatchByAmount {
		res.Offer, err = s.catalog.ResolveForAmount(ctx, tx, txn.AmountCents)
	} else {
		res.Offer, err = s.catalog.ResolveForCharge(ctx, tx, req.OfferRef)
	}
	if err != nil {
		return nil, err
	}

	qty := lo.Max([]int{req.Quantity, 1})
	capturedAt := s.now().UTC()
	if txn.Timestamp != nil {
		capturedAt = txn.Timestamp.UTC()
	}
	currency := s.cfg.Checkout.Currency

	order := &models.Order{
		CustomerID: res.Customer.ID,
		OrderRef:   lo.CoalesceOrEmpty(req.OrderRef, txn.OrderID),
		TotalCents: txn.AmountCents,
		Currency:   currency,
		Status:     types.OrderStatusPaid,
		Source:     req.Source,
		CapturedAt: &capturedAt,
		Items: []*models.OrderItem{{
			OfferID:        res.Offer.ID,
			Quantity:       qty,
			UnitPriceCents: unitPrice(res.Offer, txn.AmountCents, qty),
			CreditsAwarded: res.Offer.CreditsFor(qty),
		}},
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	res.Order = order

	payment := &models.Payment{
		OrderID:               order.ID,
		AmountCents:           txn.AmountCents,
		Currency:              currency,
		Status:                types.PaymentStatusCompleted,
		Method:                req.Method,
		Source:                req.Source,
		ExternalTransactionID: txn.TransactionID,
		AuthCode:              req.AuthCode,
		Raw:                   rawMap(req.Raw),
	}
	if err := tx.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRecorded, txn.TransactionID)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	res.Payment = payment

	if res.Offer.IsSubscription {
		sub := subscription.NewForOrder(res.Customer.ID, res.Offer.ID, order.ID, capturedAt)
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		res.Subscription = sub
	}

	if credits := order.CreditsAwarded(); credits > 0 {
		res.LedgerEntry, err = s.ledger.AppendTx(ctx, tx, ledger.AppendRequest{
			CustomerID: res.Customer.ID,
			Delta:      credits,
			Kind:       types.LedgerEntryKindPurchase,
			Reason:     "Purchase: " + res.Offer.Name,
			RefOrderID: &order.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	if res.Shoutout, err = s.shoutout(ctx, tx, req, res); err != nil {
		return nil, err
	}
	if res.LiveReview, err = s.liveReview(ctx, tx, res); err != nil {
		return nil, err
	}

	if err := s.logStatus(ctx, tx, nil, order, "checkout", map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"offer_id":       res.Offer.ID,
	}); err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_committed", "order_id", order.ID, "transaction_id", txn.TransactionID,
		"customer_id", res.Customer.ID, "offer_id", res.Offer.ID, "amount_cents", txn.AmountCents, "source", req.Source)
	return res, nil
}

func (s *Service) shoutout(ctx context.Context, tx repository.Repository, req *Request, res *Result) (*models.Shoutout, error) {
	if req.Shoutout == nil || !res.Offer.IsShoutout() {
		return nil, nil
	}
	platform, username := strings.TrimSpace(req.Shoutout.Platform), strings.TrimSpace(req.Shoutout.Username)
	if platform == "" || username == "" {
		return nil, nil
	}
	so := &models.Shoutout{
		CustomerID: res.Customer.ID,
		OrderID:    res.Order.ID,
		Platform:   platform,
		Username:   username,
		Status:     types.FulfillmentStatusPending,
	}
	if err := tx.CreateShoutout(ctx, so); err != nil {
		return nil, fmt.Errorf("failed to create shoutout: %w", err)
	}
	return so, nil
}

// liveReview attaches a pending submission the customer made before paying,
// or opens a new one.
func (s *Service) liveReview(ctx context.Context, tx repository.Repository, res *Result) (*models.LiveReview, error) {
	if !res.Offer.IsLiveReview() {
		return nil, nil
	}
	if r, err := tx.FindLiveReviewByOrder(ctx, res.Order.ID); err == nil {
		return r, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to find live review: %w", err)
	}

	r, err := tx.FindPendingUnlinkedLiveReview(ctx, res.Customer.ID)
	switch {
	case err == nil:
		r.OrderID = &res.Order.ID
		if err := tx.UpdateLiveReview(ctx, r); err != nil {
			return nil, fmt.Errorf("failed to link live review: %w", err)
		}
		return r, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to find pending live review: %w", err)
	}

	r = &models.LiveReview{CustomerID: res.Customer.ID, OrderID: &res.Order.ID, Status: types.FulfillmentStatusPending}
	if err := tx.CreateLiveReview(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create live review: %w", err)
	}
	return r, nil
}

func (s *Service) logStatus(ctx context.Context, tx repository.Repository, before, after *models.Order, reason string, extra map[string]interface{}) error {
	entry := &models.OrderStatusLog{
		OrderID:    after.ID,
		CustomerID: after.CustomerID,
		Reason:     reason,
		After:      datatypes.NewJSONType(after),
		Extra:      extra,
	}
	if before != nil {
		entry.Before = datatypes.NewJSONType(before)
	}
	if err := tx.CreateOrderStatusLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to write order status log: %w", err)
	}
	return nil
}

// unitPrice snapshots the catalog price. Offers without one (the fallback
// offer) take an even share of the total, rounded down; the order total is
// the charged amount either way.
func unitPrice(offer *models.Offer, totalCents int64, qty int) int64 {
	if offer != nil && offer.PriceCents > 0 {
		return offer.PriceCents
	}
	return totalCents / int64(qty)
}

func rawMap(raw map[string]string) datatypes.JSONMap {
	if len(raw) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

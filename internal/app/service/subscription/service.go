package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/zap"
)

// periodMonths is how far one purchase of a subscription offer extends access.
const periodMonths = 1

type Service struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	now  func() time.Time
}

func NewService(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Status is a customer's subscription state at a point in time.
type Status struct {
	CustomerID    string                 `json:"customer_id"`
	Active        bool                   `json:"active"`
	RenewsAt      *time.Time             `json:"renews_at,omitempty"`
	Subscriptions []*models.Subscription `json:"subscriptions"`
}

// NewForOrder builds the ACTIVE subscription a paid order for a subscription
// offer grants, starting at capture time.
func NewForOrder(customerID, offerID, orderID string, startedAt time.Time) *models.Subscription {
	return &models.Subscription{
		CustomerID: customerID,
		OfferID:    offerID,
		OrderID:    orderID,
		Status:     types.SubscriptionStatusActive,
		StartedAt:  startedAt,
		RenewsAt:   startedAt.AddDate(0, periodMonths, 0),
	}
}

// CancelForOrderTx cancels the active subscriptions an order granted.
func CancelForOrderTx(ctx context.Context, tx repository.Repository, customerID, orderID string) ([]*models.Subscription, error) {
	subs, err := tx.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	var cancelled []*models.Subscription
	for _, sub := range subs {
		if sub.OrderID != orderID || sub.Status != types.SubscriptionStatusActive {
			continue
		}
		sub.Status = types.SubscriptionStatusCancelled
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
		}
		cancelled = append(cancelled, sub)
	}
	return cancelled, nil
}

// GetStatus reports whether the customer holds a valid subscription now. The
// latest renewal among valid subscriptions wins.
func (s *Service) GetStatus(ctx context.Context, customerID string) (*Status, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	at := s.now()
	out := &Status{CustomerID: customerID, Subscriptions: subs}
	for _, sub := range subs {
		if !sub.Valid(at) {
			continue
		}
		out.Active = true
		if out.RenewsAt == nil || sub.RenewsAt.After(*out.RenewsAt) {
			renews := sub.RenewsAt
			out.RenewsAt = &renews
		}
	}
	logctx.FromCtx(ctx, s.log).Debugw("subscription_status", "customer_id", customerID, "active", out.Active)
	return out, nil
}

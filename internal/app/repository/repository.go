package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/types"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// OrderScanFields are the columns admin order listings may filter and sort on.
var OrderScanFields = []string{"id", "customer_id", "order_ref", "status", "source", "total_cents", "currency", "created_at", "captured_at", "refunded_at"}

type OrderScan struct {
	Filters   []*types.CommonFilter
	From      int
	Size      int
	SortBy    string
	SortOrder string
}

// Repository is the storage handle shared by every service. Methods called on
// the Repository passed to WithTx's callback run inside that transaction.
type Repository interface {
	// WithTx runs fn atomically. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	// CreateCustomer returns ErrDuplicate when the email is already taken.
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	CustomerHasHistory(ctx context.Context, id string) (bool, error)
	// LockCustomer serializes ledger writers for one customer until the
	// surrounding transaction ends.
	LockCustomer(ctx context.Context, id string) error

	ListOffers(ctx context.Context, activeOnly bool) ([]*models.Offer, error)
	GetOffer(ctx context.Context, idOrSKU string) (*models.Offer, error)
	CreateOffer(ctx context.Context, o *models.Offer) error
	UpdateOffer(ctx context.Context, o *models.Offer) error
	DeleteOffer(ctx context.Context, id string) error
	OfferReferenced(ctx context.Context, id string) (bool, error)

	// CreateOrder stores the order and its items. The status must be reachable
	// from CREATED.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrder rejects status changes the order state machine forbids.
	UpdateOrder(ctx context.Context, o *models.Order) error
	ScanOrders(ctx context.Context, q *OrderScan) ([]*models.Order, int64, error)
	CreateOrderStatusLog(ctx context.Context, l *models.OrderStatusLog) error

	// CreatePayment returns ErrDuplicate when the external transaction id is
	// already recorded.
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByExternalID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
	// UpdatePayment rejects status changes the payment state machine forbids.
	UpdatePayment(ctx context.Context, p *models.Payment) error

	// LatestLedgerEntry returns ErrNotFound when the customer has no entries.
	LatestLedgerEntry(ctx context.Context, customerID string) (*models.CreditsLedgerEntry, error)
	InsertLedgerEntry(ctx context.Context, e *models.CreditsLedgerEntry) error
	ListLedgerEntries(ctx context.Context, customerID string) ([]*models.CreditsLedgerEntry, error)

	CreateSubscription(ctx context.Context, s *models.Subscription) error
	ListSubscriptions(ctx context.Context, customerID string) ([]*models.Subscription, error)
	UpdateSubscription(ctx context.Context, s *models.Subscription) error
	CreateShoutout(ctx context.Context, s *models.Shoutout) error
	ListShoutouts(ctx context.Context, customerID string) ([]*models.Shoutout, error)
	CreateLiveReview(ctx context.Context, r *models.LiveReview) error
	FindLiveReviewByOrder(ctx context.Context, orderID string) (*models.LiveReview, error)
	FindPendingUnlinkedLiveReview(ctx context.Context, customerID string) (*models.LiveReview, error)
	UpdateLiveReview(ctx context.Context, r *models.LiveReview) error

	CreateReconciliationEvent(ctx context.Context, e *models.ReconciliationEvent) error
	ListReconciliationEvents(ctx context.Context, status models.ReconciliationEventStatus, limit int) ([]*models.ReconciliationEvent, error)
	// ResolveReconciliationEvents closes open events carrying the transaction
	// id or, when given, the order reference.
	ResolveReconciliationEvents(ctx context.Context, transactionID, orderRef string, at time.Time) (int64, error)

	SaveGatewayCallLog(ctx context.Context, l *models.GatewayCallLog) error
}

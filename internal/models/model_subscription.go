package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
)

// Subscription is created when a purchased offer is a subscription.
type Subscription struct {
	ID         string                   `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CustomerID string                   `gorm:"column:customer_id;type:varchar(36);not null;index" json:"customer_id"`
	OfferID    string                   `gorm:"column:offer_id;type:varchar(36);not null" json:"offer_id"`
	OrderID    string                   `gorm:"column:order_id;type:varchar(36);not null;index" json:"order_id"`
	Status     types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	StartedAt  time.Time                `gorm:"column:started_at;not null" json:"started_at"`
	RenewsAt   time.Time                `gorm:"column:renews_at;not null" json:"renews_at"`
	// ExternalSubscriptionID is the gateway or PayPal subscription id, when there is one.
	ExternalSubscriptionID *string   `gorm:"column:external_subscription_id;type:varchar(128)" json:"external_subscription_id"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscription" }

func (s *Subscription) Valid(at time.Time) bool {
	return s != nil && s.Status == types.SubscriptionStatusActive && s.RenewsAt.After(at)
}

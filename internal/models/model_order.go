package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
)

// Order is one checkout. CapturedAt is set exactly when the order first
// reaches PAID and is kept through a refund.
type Order struct {
	ID         string              `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CustomerID string              `gorm:"column:customer_id;type:varchar(36);not null;index" json:"customer_id"`
	OrderRef   string              `gorm:"column:order_ref;type:varchar(128);index" json:"order_ref"`
	TotalCents int64               `gorm:"column:total_cents;type:bigint;not null" json:"total_cents"`
	Currency   string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status     types.OrderStatus   `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Source     types.PaymentSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	CapturedAt *time.Time          `gorm:"column:captured_at;default:null" json:"captured_at"`
	RefundedAt *time.Time          `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	Items      []*OrderItem        `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (Order) TableName() string { return "customer_order" }

func (o *Order) CreditsAwarded() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.CreditsAwarded
	}
	return total
}

// OrderItem is immutable once written.
type OrderItem struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	OrderID        string    `gorm:"column:order_id;type:varchar(36);not null;index" json:"order_id"`
	OfferID        string    `gorm:"column:offer_id;type:varchar(36);not null;index" json:"offer_id"`
	Quantity       int       `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;type:bigint;not null" json:"unit_price_cents"`
	CreditsAwarded int64     `gorm:"column:credits_awarded;type:bigint;not null" json:"credits_awarded"`
	CreatedAt      time.Time `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_item" }

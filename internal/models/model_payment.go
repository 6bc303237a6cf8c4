package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
	"gorm.io/datatypes"
)

// Payment is one gateway attempt for an order. ExternalTransactionID is
// unique across all payments; it is the reconciliation join key.
type Payment struct {
	ID                    string              `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	OrderID               string              `gorm:"column:order_id;type:varchar(36);not null;index" json:"order_id"`
	AmountCents           int64               `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`
	Currency              string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status                types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Method                types.PaymentMethod `gorm:"column:method;type:varchar(32)" json:"method"`
	Source                types.PaymentSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	ExternalTransactionID string              `gorm:"column:external_transaction_id;type:varchar(128);not null;uniqueIndex" json:"external_transaction_id"`
	AuthCode              string              `gorm:"column:auth_code;type:varchar(64)" json:"auth_code"`
	// Raw holds the normalized gateway response with secrets removed.
	Raw       datatypes.JSONMap `gorm:"column:raw" json:"raw"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }

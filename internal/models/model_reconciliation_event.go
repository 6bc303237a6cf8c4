package models

import "time"

type ReconciliationEventKind string

const (
	// ReconciliationEventBookkeepingFailed: the gateway captured money but the local write failed.
	ReconciliationEventBookkeepingFailed ReconciliationEventKind = "bookkeeping_failed"
	// ReconciliationEventGatewayUnreachable: the charge outcome is unknown.
	ReconciliationEventGatewayUnreachable ReconciliationEventKind = "gateway_unreachable"
)

type ReconciliationEventStatus string

const (
	ReconciliationEventOpen     ReconciliationEventStatus = "open"
	ReconciliationEventResolved ReconciliationEventStatus = "resolved"
)

// ReconciliationEvent flags a charge that needs the next reconciliation run
// (or an operator) to look at it.
type ReconciliationEvent struct {
	ID            string                    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Kind          ReconciliationEventKind   `gorm:"column:kind;type:varchar(64);not null" json:"kind"`
	Status        ReconciliationEventStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	TransactionID string                    `gorm:"column:transaction_id;type:varchar(128);index" json:"transaction_id"`
	OrderRef      string                    `gorm:"column:order_ref;type:varchar(128);index" json:"order_ref"`
	CustomerEmail string                    `gorm:"column:customer_email;type:varchar(255)" json:"customer_email"`
	AmountCents   int64                     `gorm:"column:amount_cents;type:bigint" json:"amount_cents"`
	Detail        string                    `gorm:"column:detail;type:text" json:"detail"`
	ResolvedAt    *time.Time                `gorm:"column:resolved_at;default:null" json:"resolved_at"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func (ReconciliationEvent) TableName() string { return "reconciliation_event" }

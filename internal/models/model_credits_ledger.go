package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
)

// CreditsLedgerEntry is append-only. For one customer, ordered by Seq,
// BalanceAfter(n) == BalanceAfter(n-1) + Delta(n), starting from zero.
// The (customer_id, seq) unique index rejects two writers that read the
// same previous entry.
type CreditsLedgerEntry struct {
	ID           string                `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CustomerID   string                `gorm:"column:customer_id;type:varchar(36);not null;uniqueIndex:idx_ledger_customer_seq,priority:1" json:"customer_id"`
	Seq          int64                 `gorm:"column:seq;not null;uniqueIndex:idx_ledger_customer_seq,priority:2" json:"seq"`
	Delta        int64                 `gorm:"column:delta;type:bigint;not null" json:"delta"`
	BalanceAfter int64                 `gorm:"column:balance_after;type:bigint;not null" json:"balance_after"`
	Kind         types.LedgerEntryKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Reason       string                `gorm:"column:reason;type:varchar(255);not null" json:"reason"`
	RefOrderID   *string               `gorm:"column:ref_order_id;type:varchar(36);index" json:"ref_order_id"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (CreditsLedgerEntry) TableName() string { return "credits_ledger" }

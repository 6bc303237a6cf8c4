package types

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// FulfillmentStatus is shared by shoutouts and live reviews.
type FulfillmentStatus string

const (
	FulfillmentStatusPending   FulfillmentStatus = "PENDING"
	FulfillmentStatusCompleted FulfillmentStatus = "COMPLETED"
	FulfillmentStatusCancelled FulfillmentStatus = "CANCELLED"
)

// LedgerEntryKind classifies why a credits ledger entry was written.
type LedgerEntryKind string

const (
	LedgerEntryKindPurchase   LedgerEntryKind = "purchase"
	LedgerEntryKindAdjustment LedgerEntryKind = "adjustment"
	LedgerEntryKindDeduction  LedgerEntryKind = "deduction"
	LedgerEntryKindRefund     LedgerEntryKind = "refund"
)

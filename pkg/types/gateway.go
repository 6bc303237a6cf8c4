package types

import (
	"context"
	"time"
)

// GatewayTransaction is the canonical record every gateway dialect is
// normalized into. Only TransactionID is required by callers; records without
// it cannot be deduplicated and are skipped.
type GatewayTransaction struct {
	TransactionID   string            `json:"transaction_id"`
	OrderID         string            `json:"order_id,omitempty"`
	AmountCents     int64             `json:"amount_cents"`
	HasAmount       bool              `json:"-"`
	Condition       string            `json:"condition,omitempty"`
	TransactionType string            `json:"transaction_type,omitempty"`
	Timestamp       *time.Time        `json:"timestamp,omitempty"`
	Email           string            `json:"email,omitempty"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	Raw             map[string]string `json:"raw,omitempty"`
}

// FullName joins the billing names the gateway reported.
func (t *GatewayTransaction) FullName() string {
	switch {
	case t.FirstName != "" && t.LastName != "":
		return t.FirstName + " " + t.LastName
	case t.FirstName != "":
		return t.FirstName
	default:
		return t.LastName
	}
}

// GatewayCall describes one exchange with a payment provider, already
// stripped of credentials and card data.
type GatewayCall struct {
	Provider      string
	Operation     string
	OrderRef      string
	TransactionID string
	Request       map[string]string
	Response      map[string]string
	Err           error
	Duration      time.Duration
}

// GatewayCallObserver receives every gateway exchange. Implementations must
// not block the caller.
type GatewayCallObserver interface {
	ObserveCall(ctx context.Context, call *GatewayCall)
}

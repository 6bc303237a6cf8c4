package types

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a status change is not allowed by the
// order or payment state machine.
var ErrIllegalTransition = errors.New("illegal status transition")

type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodACH       PaymentMethod = "ach"
	PaymentMethodApplePay  PaymentMethod = "apple_pay"
	PaymentMethodGooglePay PaymentMethod = "google_pay"
	PaymentMethodCrypto    PaymentMethod = "crypto"
	PaymentMethodWallet    PaymentMethod = "wallet"
	PaymentMethodPayPal    PaymentMethod = "paypal"
)

// Tokenized reports whether the method is charged with a front-end payment token.
func (m PaymentMethod) Tokenized() bool {
	switch m {
	case PaymentMethodApplePay, PaymentMethodGooglePay, PaymentMethodCrypto, PaymentMethodWallet:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodACH, PaymentMethodPayPal:
		return true
	}
	return m.Tokenized()
}

// PaymentSource records which flow produced a payment.
type PaymentSource string

const (
	PaymentSourceDirectCharge PaymentSource = "nmi_charge"
	PaymentSourceHostedPage   PaymentSource = "nmi_hosted"
	PaymentSourcePayPal       PaymentSource = "paypal"
	PaymentSourceReconcile    PaymentSource = "nmi_reconcile"
)

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:  {OrderStatusPaid},
	OrderStatusPaid:     {OrderStatusRefunded},
	OrderStatusRefunded: nil,
}

// CanTransitionTo reports whether an order may move from s to next.
// Staying in the same state is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Captured reports whether an order in this status has been paid at some point.
func (s OrderStatus) Captured() bool {
	return s == OrderStatusPaid || s == OrderStatusRefunded
}

func ValidateOrderTransition(from, to OrderStatus) error {
	if _, ok := orderTransitions[to]; !ok {
		return fmt.Errorf("%w: unknown order status %q", ErrIllegalTransition, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: order %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

type PaymentStatus string

const (
	// PaymentStatusNone is the zero state of a payment that has not been stored yet.
	PaymentStatusNone      PaymentStatus = ""
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusNone:      {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:    {PaymentStatusCompleted},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusRefunded:  nil,
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, n := range paymentTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func ValidatePaymentTransition(from, to PaymentStatus) error {
	if to == PaymentStatusNone {
		return fmt.Errorf("%w: payment cannot return to an empty status", ErrIllegalTransition)
	}
	if _, ok := paymentTransitions[to]; !ok {
		return fmt.Errorf("%w: unknown payment status %q", ErrIllegalTransition, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

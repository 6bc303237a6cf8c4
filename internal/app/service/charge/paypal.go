package charge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/internal/platform/paypal"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
)

// ErrAlreadyCaptured is returned when PayPal reports the order was captured
// by an earlier call. Reconciliation or the first call owns the booking.
var ErrAlreadyCaptured = errors.New("paypal order already captured")

type PayPalCaptureRequest struct {
	PayPalOrderID string        `json:"paypal_order_id" validate:"required"`
	CustomerInfo  *CustomerInfo `json:"customer_info,omitempty" validate:"-"`
	OfferID       string        `json:"offer_id"`
	Quantity      int           `json:"quantity" validate:"gte=0,lte=100"`
	Shoutout      *ShoutoutData `json:"shoutout,omitempty"`
}

// CapturePayPalOrder captures an order the buyer approved on PayPal and books
// it. Customer details default to the PayPal payer.
func (p *Processor) CapturePayPalOrder(ctx context.Context, req *PayPalCaptureRequest) (*ChargeResponse, error) {
	start := time.Now()
	defer p.metrics.ObserveProcess("charge", string(types.PaymentMethodPayPal), start)
	method := string(types.PaymentMethodPayPal)
	log := logctx.FromCtx(ctx, p.log)

	if req == nil {
		return nil, invalid("", "empty capture request")
	}
	req.PayPalOrderID = strings.TrimSpace(req.PayPalOrderID)
	if err := p.validate.Struct(req); err != nil {
		return nil, structError(err)
	}

	txn, err := p.paypal.CaptureOrder(ctx, req.PayPalOrderID)
	switch {
	case err == nil:
	case paypal.AlreadyCaptured(err):
		p.metrics.Charge(method, outcomeDuplicate)
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCaptured, req.PayPalOrderID)
	case errors.Is(err, paypal.ErrUnavailable):
		p.metrics.Charge(method, outcomeUnknown)
		log.Errorw("paypal_capture_unavailable", "paypal_order_id", req.PayPalOrderID, "err", err)
		p.recordEvent(ctx, recon_event.Event{
			Kind:     models.ReconciliationEventGatewayUnreachable,
			OrderRef: req.PayPalOrderID,
			Detail:   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, paypal.ErrDisabled):
		return nil, invalid("method", "paypal payments are not enabled")
	default:
		p.metrics.Charge(method, outcomeDeclined)
		log.Infow("paypal_capture_declined", "paypal_order_id", req.PayPalOrderID, "err", err)
		return &ChargeResponse{Error: err.Error(), Method: method, OrderRef: req.PayPalOrderID}, nil
	}

	ci := CustomerInfo{Name: txn.FullName(), Email: txn.Email}
	if req.CustomerInfo != nil {
		ci.Name = lo.CoalesceOrEmpty(strings.TrimSpace(req.CustomerInfo.Name), ci.Name)
		ci.Email = lo.CoalesceOrEmpty(strings.TrimSpace(req.CustomerInfo.Email), ci.Email)
		ci.Phone = req.CustomerInfo.Phone
	}

	resp := &ChargeResponse{
		Success:       true,
		TransactionID: txn.TransactionID,
		Amount:        txn.AmountCents,
		Method:        method,
		OrderRef:      req.PayPalOrderID,
	}
	commit := &checkout.Request{
		Transaction: *txn,
		Customer:    ci.info(),
		OfferRef:    req.OfferID,
		Quantity:    req.Quantity,
		Method:      types.PaymentMethodPayPal,
		Source:      types.PaymentSourcePayPal,
		OrderRef:    req.PayPalOrderID,
		Raw:         txn.Raw,
	}
	if req.Shoutout != nil {
		commit.Shoutout = &checkout.ShoutoutInfo{Platform: req.Shoutout.Platform, Username: req.Shoutout.Username}
	}
	// The money is captured at this point, so customer problems are booking
	// failures rather than validation errors.
	p.book(ctx, commit, resp)
	p.metrics.Charge(method, lo.Ternary(resp.ReconciliationNeeded, outcomeUnbooked, outcomeApproved))
	return resp, nil
}

package charge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
)

// ErrUnverified means the gateway has no record of the transaction a hosted
// payment page redirect claims.
var ErrUnverified = errors.New("gateway transaction could not be verified")

// offerFields are redirect keys that may carry the purchased offer.
var offerFields = []string{"offer_id", "merchant_defined_field_1", "product_sku_1"}

// CompleteHostedPayment books the payment described by a hosted payment page
// redirect query string. The redirect is only trusted for the transaction id;
// the gateway is queried for the transaction before anything is written.
// Replaying the same redirect is harmless.
func (p *Processor) CompleteHostedPayment(ctx context.Context, rawQuery string, offerRef string) (*ChargeResponse, error) {
	start := time.Now()
	defer p.metrics.ObserveProcess("charge", "hosted", start)
	log := logctx.FromCtx(ctx, p.log)

	fields := nmi.ParseQueryString(rawQuery)
	res := nmi.NewChargeResult(fields)
	method := types.PaymentMethodCard
	if strings.EqualFold(fields.Get("payment"), "check") {
		method = types.PaymentMethodACH
	}

	if !res.Approved() {
		p.metrics.Charge(string(method), outcomeDeclined)
		resp := &ChargeResponse{Error: lo.CoalesceOrEmpty(res.ResponseText, defaultDeclineMsg), ResponseCode: res.ResponseCode,
			IsDuplicate: res.Duplicate(), OrderRef: res.OrderID}
		log.Infow("hosted_payment_declined", "order_ref", res.OrderID, "response_text", res.ResponseText)
		return resp, nil
	}
	if res.TransactionID == "" {
		return nil, invalid("transactionid", "redirect does not carry a transaction id")
	}

	confirmed, err := p.lookupTransaction(ctx, res.TransactionID)
	if err != nil {
		return nil, err
	}

	txn := res.Transaction()
	if confirmed.HasAmount {
		txn.AmountCents, txn.HasAmount = confirmed.AmountCents, true
	}
	if !txn.HasAmount || txn.AmountCents <= 0 {
		return nil, invalid("amount", "transaction %s has no amount", res.TransactionID)
	}
	if txn.Timestamp == nil {
		txn.Timestamp = confirmed.Timestamp
	}
	ci := CustomerInfo{
		Name:  lo.CoalesceOrEmpty(txn.FullName(), confirmed.FullName()),
		Email: lo.CoalesceOrEmpty(txn.Email, confirmed.Email),
		Phone: fields.Get("phone"),
	}
	if err := p.validate.Struct(ci); err != nil {
		return nil, structError(err)
	}
	if offerRef == "" {
		offerRef, _ = lo.Find(lo.Map(offerFields, func(k string, _ int) string { return fields.Get(k) }), func(v string) bool { return v != "" })
	}

	resp := &ChargeResponse{
		Success:       true,
		TransactionID: res.TransactionID,
		AuthCode:      res.AuthCode,
		Amount:        txn.AmountCents,
		Method:        string(method),
		OrderRef:      res.OrderID,
		ResponseData:  &ResponseData{ResponseCode: res.ResponseCode, ResponseText: res.ResponseText, AVSResponse: res.AVSResponse, CVVResponse: res.CVVResponse},
	}
	p.book(ctx, &checkout.Request{
		Transaction: txn,
		AuthCode:    res.AuthCode,
		Customer:    ci.info(),
		OfferRef:    offerRef,
		Method:      method,
		Source:      types.PaymentSourceHostedPage,
		OrderRef:    res.OrderID,
		Raw:         fields,
	}, resp)
	p.metrics.Charge(string(method), lo.Ternary(resp.ReconciliationNeeded, outcomeUnbooked, outcomeApproved))
	return resp, nil
}

// lookupTransaction asks each report host for the transaction until one
// answers. It fails with ErrGatewayUnavailable only when no host answered.
func (p *Processor) lookupTransaction(ctx context.Context, transactionID string) (*types.GatewayTransaction, error) {
	params := url.Values{"transaction_id": {transactionID}}
	var lastErr error
	answered := false
	for _, host := range p.nmi.QueryHosts() {
		txns, err := p.nmi.Query(ctx, host, params)
		if err != nil {
			lastErr = err
			logctx.FromCtx(ctx, p.log).Warnw("hosted_payment_lookup_failed", "host", host, "transaction_id", transactionID, "err", err)
			continue
		}
		answered = true
		if t, ok := lo.Find(txns, func(t types.GatewayTransaction) bool { return t.TransactionID == transactionID }); ok {
			return &t, nil
		}
	}
	if !answered && lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnverified, transactionID)
}

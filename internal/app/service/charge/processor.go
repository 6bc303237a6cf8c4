package charge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/internal/platform/paypal"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/metrics"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrGatewayUnavailable means the outcome of the payment is unknown. Callers
// must check the transaction status before retrying.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable, check transaction status before retrying")

const (
	outcomeApproved   = "approved"
	outcomeDeclined   = "declined"
	outcomeDuplicate  = "duplicate"
	outcomeUnknown    = "unknown"
	outcomeUnbooked   = "approved_unbooked"
	outcomeInvalid    = "invalid"
	defaultDeclineMsg = "Payment declined"
)

type Processor struct {
	cfg      *config.Config
	nmi      *nmi.Client
	paypal   *paypal.Client
	checkout *checkout.Service
	catalog  *catalog.Service
	events   *recon_event.Service
	refs     *tool.OrderRefGenerator
	validate *validator.Validate
	metrics  *metrics.Business
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewProcessor(cfg *config.Config, gw *nmi.Client, pp *paypal.Client, co *checkout.Service, cat *catalog.Service,
	events *recon_event.Service, refs *tool.OrderRefGenerator, m *metrics.Business, log *zap.SugaredLogger) *Processor {
	return &Processor{
		cfg:      cfg,
		nmi:      gw,
		paypal:   pp,
		checkout: co,
		catalog:  cat,
		events:   events,
		refs:     refs,
		validate: newValidator(),
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Charge runs one synchronous gateway sale. Declines come back as a failed
// ChargeResponse; a nil response with an error means either invalid input
// (ErrValidation, nothing was sent) or an unknown outcome (ErrGatewayUnavailable).
func (p *Processor) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, invalid("", "empty charge request")
	}
	start := time.Now()
	defer p.metrics.ObserveProcess("charge", string(req.Method), start)
	log := logctx.FromCtx(ctx, p.log)

	sale, err := p.buildSale(ctx, req)
	if err != nil {
		p.metrics.Charge(string(req.Method), outcomeInvalid)
		log.Infow("charge_invalid", "method", req.Method, "err", err)
		return nil, err
	}

	res, err := p.nmi.Sale(ctx, sale)
	if err != nil {
		p.metrics.Charge(string(req.Method), outcomeUnknown)
		log.Errorw("charge_gateway_unreachable", "order_ref", sale.OrderRef, "err", err)
		p.recordEvent(ctx, recon_event.Event{
			Kind:          models.ReconciliationEventGatewayUnreachable,
			OrderRef:      sale.OrderRef,
			CustomerEmail: sale.Email,
			AmountCents:   sale.AmountCents,
			Detail:        err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !res.Approved() {
		resp := &ChargeResponse{
			Success:      false,
			Error:        res.ResponseText,
			ResponseCode: res.ResponseCode,
			IsDuplicate:  res.Duplicate(),
			OrderRef:     sale.OrderRef,
		}
		if resp.Error == "" {
			resp.Error = defaultDeclineMsg
		}
		outcome := outcomeDeclined
		if resp.IsDuplicate {
			outcome = outcomeDuplicate
		}
		p.metrics.Charge(string(req.Method), outcome)
		log.Infow("charge_declined", "order_ref", sale.OrderRef, "response", res.Response,
			"response_code", res.ResponseCode, "response_text", res.ResponseText, "duplicate", resp.IsDuplicate)
		return resp, nil
	}

	resp := &ChargeResponse{
		Success:       true,
		TransactionID: res.TransactionID,
		AuthCode:      res.AuthCode,
		Amount:        req.AmountCents,
		Method:        string(req.Method),
		OrderRef:      sale.OrderRef,
		ResponseData: &ResponseData{
			ResponseCode: res.ResponseCode,
			ResponseText: res.ResponseText,
			AVSResponse:  res.AVSResponse,
			CVVResponse:  res.CVVResponse,
		},
	}

	txn := res.Transaction()
	// The amount echoed by the gateway is not authoritative; we charged exactly this.
	txn.AmountCents, txn.HasAmount = req.AmountCents, true
	txn.Email = sale.Email
	commit := &checkout.Request{
		Transaction: txn,
		AuthCode:    res.AuthCode,
		Customer:    req.CustomerInfo.info(),
		OfferRef:    req.OfferID,
		Quantity:    req.Quantity,
		Method:      req.Method,
		Source:      types.PaymentSourceDirectCharge,
		OrderRef:    sale.OrderRef,
		Raw:         res.Fields,
	}
	if req.Shoutout != nil {
		commit.Shoutout = &checkout.ShoutoutInfo{Platform: req.Shoutout.Platform, Username: req.Shoutout.Username}
	}
	p.book(ctx, commit, resp)
	p.metrics.Charge(string(req.Method), lo.Ternary(resp.ReconciliationNeeded, outcomeUnbooked, outcomeApproved))
	return resp, nil
}

func (p *Processor) buildSale(ctx context.Context, req *ChargeRequest) (*nmi.SaleRequest, error) {
	req.CustomerInfo.Email = strings.TrimSpace(req.CustomerInfo.Email)
	if err := p.validate.Struct(req); err != nil {
		return nil, structError(err)
	}
	if !req.Method.Valid() {
		return nil, invalid("method", "unsupported payment method %q", req.Method)
	}
	card, check, token, err := paymentSource(req)
	if err != nil {
		return nil, err
	}
	if err := p.checkPinnedPrice(ctx, req); err != nil {
		return nil, err
	}

	first, last := splitName(req.CustomerInfo.Name)
	ci := req.CustomerInfo
	sale := &nmi.SaleRequest{
		OrderRef:     p.refs.Next(),
		Description:  req.Description,
		AmountCents:  req.AmountCents,
		FirstName:    first,
		LastName:     last,
		Email:        strings.ToLower(ci.Email),
		Phone:        ci.Phone,
		Address1:     ci.Address,
		City:         ci.City,
		State:        ci.State,
		Zip:          ci.Zip,
		Card:         card,
		Check:        check,
		PaymentToken: token,
	}
	if sale.Description == "" && req.OfferID != "" {
		sale.Description = req.OfferID
	}
	return sale, nil
}

// checkPinnedPrice rejects charges for pinned SKUs whose amount differs from
// the catalog price.
func (p *Processor) checkPinnedPrice(ctx context.Context, req *ChargeRequest) error {
	if req.OfferID == "" {
		return nil
	}
	offer, err := p.catalog.Get(ctx, req.OfferID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get offer: %w", err)
	}
	if !p.cfg.IsPinnedSKU(offer.SKU) {
		return nil
	}
	qty := int64(max(req.Quantity, 1))
	if want := offer.PriceCents * qty; req.AmountCents != want {
		return invalid("amount", "amount for %s must be exactly %d cents", offer.SKU, want)
	}
	return nil
}

// book commits the local records for a payment the gateway has already
// accepted. Failures never turn resp into a failure: the money has moved, so
// the gap is recorded as a reconciliation event keyed by the transaction id.
func (p *Processor) book(ctx context.Context, commit *checkout.Request, resp *ChargeResponse) {
	log := logctx.FromCtx(ctx, p.log)
	res, err := p.checkout.Commit(ctx, commit)
	switch {
	case err == nil:
		resp.OrderID = res.Order.ID
		return
	case errors.Is(err, checkout.ErrAlreadyRecorded):
		log.Infow("charge_already_recorded", "transaction_id", commit.Transaction.TransactionID)
		return
	}

	log.Errorw("charge_bookkeeping_failed", "transaction_id", commit.Transaction.TransactionID,
		"order_ref", commit.OrderRef, "email", commit.Customer.Email, "err", err)
	resp.ReconciliationNeeded = true
	p.recordEvent(ctx, recon_event.Event{
		Kind:          models.ReconciliationEventBookkeepingFailed,
		TransactionID: commit.Transaction.TransactionID,
		OrderRef:      commit.OrderRef,
		CustomerEmail: commit.Customer.Email,
		AmountCents:   commit.Transaction.AmountCents,
		Detail:        err.Error(),
	})
}

func (p *Processor) recordEvent(ctx context.Context, ev recon_event.Event) {
	// Record logs its own failure; the charge outcome stands either way.
	_, _ = p.events.Record(context.WithoutCancel(ctx), ev)
}

package nmi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/money"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/zap"
)

const (
	providerName = "nmi"
	maxBodyBytes = 8 << 20
)

// ErrUnreachable means the request may or may not have been processed: the
// call failed in transit, timed out, or got a non-2xx answer.
var ErrUnreachable = errors.New("nmi gateway unreachable")

type Card struct {
	Number string
	// Exp is MMYY.
	Exp string
	CVV string
}

type Check struct {
	Name    string
	Routing string
	Account string
}

// SaleRequest is one type=sale call. Exactly one of Card, Check or
// PaymentToken is set.
type SaleRequest struct {
	OrderRef     string
	Description  string
	AmountCents  int64
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Address1     string
	City         string
	State        string
	Zip          string
	Card         *Card
	Check        *Check
	PaymentToken string
}

func (r *SaleRequest) form(securityKey string) url.Values {
	v := url.Values{}
	v.Set("security_key", securityKey)
	v.Set("type", "sale")
	v.Set("amount", money.FormatCents(r.AmountCents))
	v.Set("orderid", r.OrderRef)
	setIf(v, "order_description", r.Description)
	setIf(v, "first_name", r.FirstName)
	setIf(v, "last_name", r.LastName)
	setIf(v, "email", r.Email)
	setIf(v, "phone", r.Phone)
	setIf(v, "address1", r.Address1)
	setIf(v, "city", r.City)
	setIf(v, "state", r.State)
	setIf(v, "zip", r.Zip)
	switch {
	case r.Card != nil:
		v.Set("ccnumber", r.Card.Number)
		v.Set("ccexp", r.Card.Exp)
		v.Set("cvv", r.Card.CVV)
	case r.Check != nil:
		v.Set("payment", "check")
		v.Set("checkname", r.Check.Name)
		v.Set("checkaba", r.Check.Routing)
		v.Set("checkaccount", r.Check.Account)
	case r.PaymentToken != "":
		v.Set("payment_token", r.PaymentToken)
	}
	return v
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

var secretKeys = map[string]bool{"security_key": true, "cvv": true, "payment_token": true, "password": true}
var maskedKeys = map[string]bool{"ccnumber": true, "checkaccount": true, "checkaba": true}

// Redact drops credentials and masks account numbers to their last four digits.
func Redact(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		val := v.Get(k)
		switch {
		case secretKeys[k]:
			continue
		case maskedKeys[k]:
			if len(val) > 4 {
				val = strings.Repeat("*", len(val)-4) + val[len(val)-4:]
			}
		}
		out[k] = val
	}
	return out
}

type Client struct {
	httpClient  *http.Client
	securityKey string
	transactURL string
	queryHosts  []string
	queryPath   string
	observer    types.GatewayCallObserver
	log         *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger, observer types.GatewayCallObserver) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.NMI.Timeout},
		securityKey: cfg.NMI.SecurityKey,
		transactURL: cfg.NMI.TransactURL,
		queryHosts:  cfg.NMI.QueryHosts,
		queryPath:   cfg.NMI.QueryPath,
		observer:    observer,
		log:         log,
	}
}

// QueryHosts returns the report hosts in preference order.
func (c *Client) QueryHosts() []string { return c.queryHosts }

// Sale submits a direct charge. A declined charge is not an error; callers
// inspect ChargeResult.Approved.
func (c *Client) Sale(ctx context.Context, req *SaleRequest) (*ChargeResult, error) {
	form := req.form(c.securityKey)
	start := time.Now()
	body, err := c.post(ctx, c.transactURL, form)
	call := &types.GatewayCall{
		Provider:  providerName,
		Operation: "sale",
		OrderRef:  req.OrderRef,
		Request:   Redact(form),
		Duration:  time.Since(start),
	}
	if err != nil {
		call.Err = err
		c.observe(ctx, call)
		return nil, err
	}
	res := NewChargeResult(ParseResponse(string(body)))
	call.TransactionID = res.TransactionID
	call.Response = res.Fields
	c.observe(ctx, call)
	logctx.FromCtx(ctx, c.log).Infow("nmi_sale", "order_ref", req.OrderRef, "response", res.Response,
		"response_code", res.ResponseCode, "transaction_id", res.TransactionID, "elapsed", call.Duration)
	return res, nil
}

// Query runs one transaction report against host with the given filter
// parameters. An error answer from the gateway is returned as an error.
func (c *Client) Query(ctx context.Context, host string, params url.Values) ([]types.GatewayTransaction, error) {
	form := url.Values{}
	for k, vs := range params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("security_key", c.securityKey)
	form.Set("report_type", "transaction")
	form.Set("format", "xml")

	start := time.Now()
	body, err := c.post(ctx, strings.TrimRight(host, "/")+c.queryPath, form)
	call := &types.GatewayCall{
		Provider:  providerName,
		Operation: "query",
		Request:   Redact(form),
		Duration:  time.Since(start),
	}
	if err == nil {
		if msg := reportError(body); msg != "" {
			err = fmt.Errorf("nmi query rejected: %s", msg)
		}
	}
	if err != nil {
		call.Err = err
		c.observe(ctx, call)
		return nil, err
	}
	txns := ParseTransactions(body)
	call.Response = map[string]string{"transactions": fmt.Sprint(len(txns))}
	c.observe(ctx, call)
	return txns, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build nmi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http status %d", ErrUnreachable, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) observe(ctx context.Context, call *types.GatewayCall) {
	if c.observer != nil {
		c.observer.ObserveCall(ctx, call)
	}
}

// reportError returns the text of an <error_response> element, if any.
func reportError(body []byte) string {
	s := string(body)
	start := strings.Index(strings.ToLower(s), "<error_response>")
	if start < 0 {
		return ""
	}
	rest := s[start+len("<error_response>"):]
	if end := strings.Index(strings.ToLower(rest), "</error_response>"); end >= 0 {
		rest = rest[:end]
	}
	msg := strings.TrimSpace(rest)
	if msg == "" {
		msg = "error_response"
	}
	return msg
}

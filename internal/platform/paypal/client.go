package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/money"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/zap"
)

const providerName = "paypal"

var (
	// ErrUnavailable means the capture outcome is unknown.
	ErrUnavailable = errors.New("paypal unavailable")
	ErrDisabled    = errors.New("paypal is not enabled")
	// ErrNotCaptured is returned when PayPal answered but did not complete a capture.
	ErrNotCaptured = errors.New("paypal order not captured")
)

type Client struct {
	enabled      bool
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	observer     types.GatewayCallObserver
	log          *zap.SugaredLogger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger, observer types.GatewayCallObserver) *Client {
	return &Client{
		enabled:      cfg.PayPal.Enabled,
		baseURL:      strings.TrimRight(cfg.PayPal.BaseURL, "/"),
		clientID:     cfg.PayPal.ClientID,
		clientSecret: cfg.PayPal.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.PayPal.Timeout},
		observer:     observer,
		log:          log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnavailable)
	}
	c.accessToken = tr.AccessToken
	// refresh a minute early
	c.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type capture struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     amount `json:"amount"`
	CreateTime string `json:"create_time"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		CustomID    string `json:"custom_id"`
		Payments    struct {
			Captures []capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (e *apiError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("paypal %s: %s", e.Name, e.Details[0].Issue)
	}
	return fmt.Sprintf("paypal %s: %s", e.Name, e.Message)
}

// AlreadyCaptured reports whether err is PayPal's answer to a repeated capture.
func AlreadyCaptured(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return false
	}
	for _, d := range ae.Details {
		if d.Issue == "ORDER_ALREADY_CAPTURED" {
			return true
		}
	}
	return false
}

// CaptureOrder captures an approved checkout order and normalizes the first
// capture into the canonical transaction record.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*types.GatewayTransaction, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	start := time.Now()
	call := &types.GatewayCall{Provider: providerName, Operation: "capture", OrderRef: orderID, Request: map[string]string{"order_id": orderID}}
	defer func() {
		call.Duration = time.Since(start)
		if c.observer != nil {
			c.observer.ObserveCall(ctx, call)
		}
	}()

	tok, err := c.token(ctx)
	if err != nil {
		call.Err = err
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", strings.NewReader("{}"))
	if err != nil {
		call.Err = err
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PayPal-Request-Id", "capture-"+orderID)

	var cr captureResponse
	if err := c.do(req, &cr); err != nil {
		call.Err = err
		return nil, err
	}
	txn, err := normalizeCapture(&cr)
	if err != nil {
		call.Err = err
		return nil, err
	}
	call.TransactionID = txn.TransactionID
	call.Response = txn.Raw
	logctx.FromCtx(ctx, c.log).Infow("paypal_capture", "order_id", orderID, "capture_id", txn.TransactionID, "amount_cents", txn.AmountCents)
	return txn, nil
}

func normalizeCapture(cr *captureResponse) (*types.GatewayTransaction, error) {
	var first *capture
	for i := range cr.PurchaseUnits {
		if caps := cr.PurchaseUnits[i].Payments.Captures; len(caps) > 0 {
			first = &caps[0]
			break
		}
	}
	if first == nil || !strings.EqualFold(first.Status, "COMPLETED") {
		return nil, fmt.Errorf("%w: order status %s", ErrNotCaptured, cr.Status)
	}
	cents, err := money.ParseCents(first.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("paypal capture amount: %w", err)
	}
	txn := &types.GatewayTransaction{
		TransactionID:   first.ID,
		OrderID:         cr.ID,
		AmountCents:     cents,
		HasAmount:       true,
		Condition:       strings.ToLower(first.Status),
		TransactionType: "capture",
		Email:           strings.ToLower(cr.Payer.EmailAddress),
		FirstName:       cr.Payer.Name.GivenName,
		LastName:        cr.Payer.Name.Surname,
		Raw: map[string]string{
			"order_id":      cr.ID,
			"order_status":  cr.Status,
			"capture_id":    first.ID,
			"capture_value": first.Amount.Value,
			"currency_code": first.Amount.CurrencyCode,
		},
	}
	if t, err := time.Parse(time.RFC3339, first.CreateTime); err == nil {
		t = t.UTC()
		txn.Timestamp = &t
	}
	return txn, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		ae := &apiError{}
		if json.Unmarshal(body, ae) != nil || ae.Name == "" {
			ae.Name = http.StatusText(resp.StatusCode)
			ae.Message = strings.TrimSpace(string(body))
		}
		return ae
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

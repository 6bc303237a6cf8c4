package charge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/internal/platform/paypal"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatewayStub answers the sale and report endpoints with canned bodies.
type gatewayStub struct {
	mu         sync.Mutex
	saleBody   string
	saleStatus int
	reportBody string
	sales      int32
	lastSale   url.Values
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	g.mu.Lock()
	defer g.mu.Unlock()
	switch r.URL.Path {
	case "/api/transact.php":
		atomic.AddInt32(&g.sales, 1)
		g.lastSale = r.PostForm
		if g.saleStatus != 0 {
			w.WriteHeader(g.saleStatus)
		}
		_, _ = w.Write([]byte(g.saleBody))
	case "/api/query.php":
		_, _ = w.Write([]byte(g.reportBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fixture struct {
	proc    *Processor
	repo    *repository.MemoryStore
	ledger  *ledger.Service
	events  *recon_event.Service
	gateway *gatewayStub
	cfg     *config.Config
}

func newFixture(t *testing.T, paypalHandler http.HandlerFunc) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	gw := &gatewayStub{saleBody: "response=1&responsetext=Approved&authcode=A1&transactionid=TXN1"}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		NMI: config.NMIConfig{
			SecurityKey: "sk_test",
			TransactURL: srv.URL + "/api/transact.php",
			QueryHosts:  []string{srv.URL},
			QueryPath:   "/api/query.php",
			Timeout:     2 * time.Second,
		},
		Checkout: config.CheckoutConfig{Currency: "USD", DefaultOfferSKU: "uncatalogued-purchase"},
	}
	if paypalHandler != nil {
		pp := httptest.NewServer(paypalHandler)
		t.Cleanup(pp.Close)
		cfg.PayPal = config.PayPalConfig{Enabled: true, ClientID: "id", ClientSecret: "secret", BaseURL: pp.URL, Timeout: 2 * time.Second}
	}

	repo := repository.NewMemoryStore()
	cat := catalog.NewService(repo, cfg, log)
	require.NoError(t, cat.Seed(context.Background(), []types.OfferSeed{
		{SKU: "monthly-creator-pass", Name: "Monthly Creator Pass", Category: types.OfferCategorySubscription, PriceCents: 100000, IsSubscription: true, CreditsValue: 1, IsCreditEligible: true, DisplayOrder: 1},
		{SKU: "live-review", Name: "Live Review Submission", PriceCents: 2500, DisplayOrder: 2},
	}))
	led := ledger.NewService(repo, nil, log)
	co := checkout.NewService(repo, customer.NewService(repo, log), cat, led, cfg, nil, log)
	events := recon_event.NewService(repo, log)
	refs, err := tool.NewOrderRefGenerator(1)
	require.NoError(t, err)

	proc := NewProcessor(cfg, nmi.NewClient(cfg, log, nil), paypal.NewClient(cfg, log, nil), co, cat, events, refs, nil, log)
	return &fixture{proc: proc, repo: repo, ledger: led, events: events, gateway: gw, cfg: cfg}
}

func passChargeRequest() *ChargeRequest {
	return &ChargeRequest{
		Method:      types.PaymentMethodCard,
		AmountCents: 100000,
		OfferID:     "monthly-creator-pass",
		PaymentData: PaymentData{Number: "4111111111111111", Expiry: "12/29", CVV: "123", Name: "Jane Doe"},
		CustomerInfo: CustomerInfo{Name: "Jane Doe", Email: "jane@example.com"},
	}
}

func TestCharge_Approved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	resp, err := f.proc.Charge(ctx, passChargeRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "TXN1", resp.TransactionID)
	require.EqualValues(t, 100000, resp.Amount)
	require.Equal(t, "A1", resp.AuthCode)
	require.NotEmpty(t, resp.OrderID)
	require.False(t, resp.ReconciliationNeeded)

	sent := f.gateway.lastSale
	require.Equal(t, "1000.00", sent.Get("amount"))
	require.Equal(t, "1229", sent.Get("ccexp"))
	require.Equal(t, "sale", sent.Get("type"))
	require.Equal(t, resp.OrderRef, sent.Get("orderid"))

	counts := f.repo.Counts()
	require.Equal(t, 1, counts["order"])
	require.Equal(t, 1, counts["payment"])
	require.Equal(t, 1, counts["subscription"])
	require.Equal(t, 1, counts["ledger"])

	order, err := f.repo.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPaid, order.Status)
	require.EqualValues(t, 100000, order.TotalCents)

	payment, err := f.repo.GetPaymentByExternalID(ctx, "TXN1")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, payment.Status)

	history, err := f.ledger.History(ctx, order.CustomerID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.EqualValues(t, 1, history[0].Delta)
	require.EqualValues(t, 1, history[0].BalanceAfter)
}

func TestCharge_Declined(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.saleBody = "response=2&responsetext=Card Declined"

	resp, err := f.proc.Charge(context.Background(), passChargeRequest())
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "Card Declined", resp.Error)
	require.False(t, resp.IsDuplicate)
	require.Zero(t, f.repo.Counts()["order"])
	require.Zero(t, f.repo.Counts()["customer"])
}

func TestCharge_DuplicateDecline(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.saleBody = "response=3&responsetext=Duplicate transaction detected"

	resp, err := f.proc.Charge(context.Background(), passChargeRequest())
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.True(t, resp.IsDuplicate)
	require.Zero(t, f.repo.Counts()["order"])
}

func TestCharge_ApprovedByResponseCode(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.saleBody = "response=&response_code=100&transactionid=TXN7"

	resp, err := f.proc.Charge(context.Background(), passChargeRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "TXN7", resp.TransactionID)
}

func TestCharge_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ChargeRequest)
		field  string
	}{
		{name: "missing method", mutate: func(r *ChargeRequest) { r.Method = "" }, field: "method"},
		{name: "unknown method", mutate: func(r *ChargeRequest) { r.Method = "barter" }, field: "method"},
		{name: "zero amount", mutate: func(r *ChargeRequest) { r.AmountCents = 0 }, field: "amount"},
		{name: "missing name", mutate: func(r *ChargeRequest) { r.CustomerInfo.Name = "" }, field: "customer_info.name"},
		{name: "missing email", mutate: func(r *ChargeRequest) { r.CustomerInfo.Email = "" }, field: "customer_info.email"},
		{name: "bad email", mutate: func(r *ChargeRequest) { r.CustomerInfo.Email = "jane" }, field: "customer_info.email"},
		{name: "card without cvv", mutate: func(r *ChargeRequest) { r.PaymentData.CVV = "" }, field: "payment_data"},
		{name: "bad expiry", mutate: func(r *ChargeRequest) { r.PaymentData.Expiry = "13/29" }, field: "payment_data.expiry"},
		{name: "ach without name", mutate: func(r *ChargeRequest) {
			r.Method = types.PaymentMethodACH
			r.PaymentData = PaymentData{Routing: "021000021", Account: "123456789"}
		}, field: "payment_data"},
		{name: "wallet without token", mutate: func(r *ChargeRequest) { r.Method = types.PaymentMethodApplePay }, field: "payment_data.token"},
		{name: "paypal", mutate: func(r *ChargeRequest) { r.Method = types.PaymentMethodPayPal }, field: "method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := passChargeRequest()
			tt.mutate(req)

			resp, err := f.proc.Charge(context.Background(), req)
			require.Nil(t, resp)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tt.field, ve.Field)
			require.Zero(t, atomic.LoadInt32(&f.gateway.sales))
		})
	}
}

func TestCharge_NilRequest(t *testing.T) {
	f := newFixture(t, nil)
	var resp *ChargeResponse
	var err error
	require.NotPanics(t, func() { resp, err = f.proc.Charge(context.Background(), nil) })
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, atomic.LoadInt32(&f.gateway.sales))
}

func TestCharge_ACHAndToken(t *testing.T) {
	f := newFixture(t, nil)

	req := passChargeRequest()
	req.Method = types.PaymentMethodACH
	req.PaymentData = PaymentData{Routing: "021000021", Account: "123456789", Name: "Jane Doe"}
	resp, err := f.proc.Charge(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "check", f.gateway.lastSale.Get("payment"))
	require.Equal(t, "021000021", f.gateway.lastSale.Get("checkaba"))

	f.gateway.saleBody = "response=1&transactionid=TXN-GP"
	req = passChargeRequest()
	req.Method = types.PaymentMethodGooglePay
	req.PaymentData = PaymentData{Token: "tok_abc"}
	resp, err = f.proc.Charge(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "tok_abc", f.gateway.lastSale.Get("payment_token"))
}

func TestCharge_PinnedPrice(t *testing.T) {
	f := newFixture(t, nil)
	f.cfg.Checkout.PinnedPriceSKUs = []string{"monthly-creator-pass"}

	req := passChargeRequest()
	req.AmountCents = 99999
	_, err := f.proc.Charge(context.Background(), req)
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, atomic.LoadInt32(&f.gateway.sales))

	resp, err := f.proc.Charge(context.Background(), passChargeRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "1000.00", f.gateway.lastSale.Get("amount"))
}

func TestCharge_GatewayUnreachable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.gateway.saleStatus = http.StatusBadGateway

	resp, err := f.proc.Charge(ctx, passChargeRequest())
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	require.Zero(t, f.repo.Counts()["order"])

	open, err := f.events.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, models.ReconciliationEventGatewayUnreachable, open[0].Kind)
	require.NotEmpty(t, open[0].OrderRef)
}

func TestCharge_BookkeepingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.repo.InjectFault("CreatePayment", errors.New("connection reset"))

	resp, err := f.proc.Charge(ctx, passChargeRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.True(t, resp.ReconciliationNeeded)
	require.Equal(t, "TXN1", resp.TransactionID)

	counts := f.repo.Counts()
	require.Zero(t, counts["order"])
	require.Zero(t, counts["payment"])
	require.Zero(t, counts["ledger"])

	open, err := f.events.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, models.ReconciliationEventBookkeepingFailed, open[0].Kind)
	require.Equal(t, "TXN1", open[0].TransactionID)
	require.Equal(t, "jane@example.com", open[0].CustomerEmail)
}

func TestCharge_TransactionAlreadyBooked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.proc.Charge(ctx, passChargeRequest())
	require.NoError(t, err)
	resp, err := f.proc.Charge(ctx, passChargeRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.False(t, resp.ReconciliationNeeded)
	require.Equal(t, 1, f.repo.Counts()["order"])
	require.Equal(t, 1, f.repo.Counts()["payment"])
}

func TestCharge_UnknownOfferUsesFallback(t *testing.T) {
	f := newFixture(t, nil)
	req := passChargeRequest()
	req.OfferID = "gone"
	req.AmountCents = 4200

	resp, err := f.proc.Charge(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)
	order, err := f.repo.GetOrder(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	require.Equal(t, 1, f.repo.Counts()["live_review"])
}

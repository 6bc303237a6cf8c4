package nmi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []*types.GatewayCall
}

func (r *recordingObserver) ObserveCall(_ context.Context, call *types.GatewayCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{NMI: config.NMIConfig{
		SecurityKey: "sk_test",
		TransactURL: srv.URL + "/api/transact.php",
		QueryHosts:  []string{srv.URL},
		QueryPath:   "/api/query.php",
		Timeout:     2 * time.Second,
	}}
	obs := &recordingObserver{}
	return NewClient(cfg, zap.NewNop().Sugar(), obs), obs, srv
}

func TestClient_SaleCard(t *testing.T) {
	var got url.Values
	c, obs, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/transact.php", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = w.Write([]byte("response=1&responsetext=Approved&authcode=A1&transactionid=TXN1&avsresponse=Y&cvvresponse=M"))
	})

	res, err := c.Sale(context.Background(), &SaleRequest{
		OrderRef:    "ORD-1",
		Description: "Monthly Creator Pass",
		AmountCents: 100000,
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		Card:        &Card{Number: "4111111111111111", Exp: "1229", CVV: "123"},
	})
	require.NoError(t, err)
	require.True(t, res.Approved())
	require.Equal(t, "TXN1", res.TransactionID)
	require.Equal(t, "A1", res.AuthCode)

	require.Equal(t, "sk_test", got.Get("security_key"))
	require.Equal(t, "sale", got.Get("type"))
	require.Equal(t, "1000.00", got.Get("amount"))
	require.Equal(t, "ORD-1", got.Get("orderid"))
	require.Equal(t, "1229", got.Get("ccexp"))

	require.Len(t, obs.calls, 1)
	logged := obs.calls[0].Request
	require.NotContains(t, logged, "security_key")
	require.NotContains(t, logged, "cvv")
	require.Equal(t, "************1111", logged["ccnumber"])
	require.Equal(t, "TXN1", obs.calls[0].TransactionID)
}

func TestClient_SaleCheckForm(t *testing.T) {
	req := &SaleRequest{OrderRef: "o", AmountCents: 5, Check: &Check{Name: "Jane Doe", Routing: "021000021", Account: "123456789"}}
	v := req.form("k")
	require.Equal(t, "check", v.Get("payment"))
	require.Equal(t, "021000021", v.Get("checkaba"))
	require.Equal(t, "0.05", v.Get("amount"))
	require.Empty(t, v.Get("ccnumber"))

	tok := (&SaleRequest{OrderRef: "o", PaymentToken: "tok_1"}).form("k")
	require.Equal(t, "tok_1", tok.Get("payment_token"))
}

func TestClient_SaleUnreachable(t *testing.T) {
	c, obs, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Sale(context.Background(), &SaleRequest{OrderRef: "o", AmountCents: 100})
	require.ErrorIs(t, err, ErrUnreachable)
	require.Len(t, obs.calls, 1)
	require.Error(t, obs.calls[0].Err)

	c2, _, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err = c2.Sale(context.Background(), &SaleRequest{OrderRef: "o", AmountCents: 100})
	require.True(t, errors.Is(err, ErrUnreachable))
}

func TestClient_Query(t *testing.T) {
	var got url.Values
	c, _, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/query.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = w.Write([]byte(reportXML))
	})
	txns, err := c.Query(context.Background(), srv.URL+"/", url.Values{"start_date": {"20250101000000"}, "condition": {"complete"}})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	require.Equal(t, "transaction", got.Get("report_type"))
	require.Equal(t, "xml", got.Get("format"))
	require.Equal(t, "complete", got.Get("condition"))
	require.Equal(t, "sk_test", got.Get("security_key"))
}

func TestClient_QueryErrorResponse(t *testing.T) {
	c, _, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<nm_response><error_response>Authentication Failed</error_response></nm_response>"))
	})
	_, err := c.Query(context.Background(), srv.URL, url.Values{})
	require.ErrorContains(t, err, "Authentication Failed")
}

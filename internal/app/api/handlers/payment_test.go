package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubCharger struct {
	resp     *charge.ChargeResponse
	err      error
	calls    int
	rawQuery string
	lastReq  *charge.ChargeRequest
}

func (s *stubCharger) Charge(_ context.Context, req *charge.ChargeRequest) (*charge.ChargeResponse, error) {
	s.calls++
	s.lastReq = req
	return s.resp, s.err
}

func (s *stubCharger) CapturePayPalOrder(_ context.Context, _ *charge.PayPalCaptureRequest) (*charge.ChargeResponse, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubCharger) CompleteHostedPayment(_ context.Context, rawQuery string, _ string) (*charge.ChargeResponse, error) {
	s.calls++
	s.rawQuery = rawQuery
	return s.resp, s.err
}

type chargeEnvelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    charge.ChargeResponse    `json:"data"`
}

func newPaymentRouter(p Charger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1/payment"), p)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w
}

func decodeCharge(t *testing.T, w *httptest.ResponseRecorder) chargeEnvelope {
	t.Helper()
	var env chargeEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApiCharge(t *testing.T) {
	body := map[string]any{
		"method":        "card",
		"amount":        100000,
		"offer_id":      "monthly-creator-pass",
		"customer_info": map[string]any{"name": "Jane Doe", "email": "jane@example.com"},
	}
	tests := []struct {
		name      string
		stub      *stubCharger
		wantCode  response.APIResponseCode
		wantOK    bool
		wantRecon bool
	}{
		{
			name:     "approved",
			stub:     &stubCharger{resp: &charge.ChargeResponse{Success: true, TransactionID: "TXN1", Method: "card"}},
			wantCode: response.APIResponseCodeOK,
			wantOK:   true,
		},
		{
			name:     "declined is still a handled request",
			stub:     &stubCharger{resp: &charge.ChargeResponse{Error: "DECLINE", ResponseCode: "200"}},
			wantCode: response.APIResponseCodeOK,
		},
		{
			name:     "validation",
			stub:     &stubCharger{err: &charge.ValidationError{Field: "cvv", Message: "cvv is required"}},
			wantCode: response.APIResponseCodeBadRequest,
		},
		{
			name:      "gateway unavailable",
			stub:      &stubCharger{err: fmt.Errorf("%w: timeout", charge.ErrGatewayUnavailable)},
			wantCode:  response.APIResponseCodeGatewayUnknown,
			wantRecon: true,
		},
		{
			name:     "unexpected",
			stub:     &stubCharger{err: fmt.Errorf("boom")},
			wantCode: response.APIResponseCodeError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := decodeCharge(t, doJSON(t, newPaymentRouter(tt.stub), http.MethodPost, "/api/v1/payment/charge", body))
			require.Equal(t, tt.wantCode, env.Code)
			require.Equal(t, tt.wantOK, env.Data.Success)
			require.Equal(t, tt.wantRecon, env.Data.ReconciliationNeeded)
			if tt.stub.err != nil {
				require.Equal(t, tt.stub.err.Error(), env.Data.Error)
				require.Equal(t, "card", env.Data.Method)
			}
			require.Equal(t, 1, tt.stub.calls)
			require.EqualValues(t, 100000, tt.stub.lastReq.AmountCents)
		})
	}
}

func TestApiCharge_MalformedBody(t *testing.T) {
	stub := &stubCharger{}
	r := newPaymentRouter(stub)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/charge", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	env := decodeCharge(t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	require.False(t, env.Data.Success)
	require.Zero(t, stub.calls)
}

func TestApiCapturePayPal_AlreadyCaptured(t *testing.T) {
	stub := &stubCharger{err: charge.ErrAlreadyCaptured}
	env := decodeCharge(t, doJSON(t, newPaymentRouter(stub), http.MethodPost, "/api/v1/payment/paypal/capture",
		map[string]any{"paypal_order_id": "PP-1"}))
	require.Equal(t, response.APIResponseCodeConflict, env.Code)
	require.Equal(t, "paypal", env.Data.Method)
}

func TestApiHostedReturn_PassesRawQuery(t *testing.T) {
	stub := &stubCharger{resp: &charge.ChargeResponse{Success: true, TransactionID: "H1"}}
	r := newPaymentRouter(stub)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payment/hosted/return?response=1&transactionid=H1&offer_id=live-review", nil))

	env := decodeCharge(t, w)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, "H1", env.Data.TransactionID)
	require.Equal(t, "response=1&transactionid=H1&offer_id=live-review", stub.rawQuery)
}

func TestApiHostedReturn_Unverified(t *testing.T) {
	stub := &stubCharger{err: charge.ErrUnverified}
	r := newPaymentRouter(stub)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payment/hosted/return?response=1&transactionid=FORGED", nil))

	env := decodeCharge(t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	require.False(t, env.Data.Success)
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	r := newPaymentRouter(&stubCharger{})
	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	require.True(t, routes["POST /api/v1/payment/charge"])
	require.True(t, routes["POST /api/v1/payment/paypal/capture"])
	require.True(t, routes["GET /api/v1/payment/hosted/return"])
}

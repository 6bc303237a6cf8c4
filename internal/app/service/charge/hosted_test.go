package charge

import (
	"context"
	"net/http"
	"testing"

	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
)

const hostedReport = `<nm_response><transaction>
  <transaction_id>TXN9</transaction_id>
  <condition>complete</condition>
  <email>fan@example.com</email>
  <action><amount>25.00</amount><action_type>sale</action_type><date>20250105100000</date></action>
</transaction></nm_response>`

const hostedRedirect = "response=1&responsetext=SUCCESS&response_code=100&authcode=H1&transactionid=TXN9&orderid=ORD-9" +
	"&email=fan%40example.com&first_name=Fan&last_name=One&offer_id=live-review"

func TestCompleteHostedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.gateway.reportBody = hostedReport

	resp, err := f.proc.CompleteHostedPayment(ctx, hostedRedirect, "")
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "TXN9", resp.TransactionID)
	require.EqualValues(t, 2500, resp.Amount)

	payment, err := f.repo.GetPaymentByExternalID(ctx, "TXN9")
	require.NoError(t, err)
	require.Equal(t, types.PaymentSourceHostedPage, payment.Source)
	order, err := f.repo.GetOrder(ctx, payment.OrderID)
	require.NoError(t, err)
	require.Equal(t, "ORD-9", order.OrderRef)
	require.Equal(t, "2025-01-05T10:00:00Z", order.CapturedAt.Format("2006-01-02T15:04:05Z07:00"))
	require.Equal(t, 1, f.repo.Counts()["live_review"])

	// A reloaded return page books nothing new.
	resp, err = f.proc.CompleteHostedPayment(ctx, hostedRedirect, "")
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, 1, f.repo.Counts()["payment"])
}

func TestCompleteHostedPayment_Unverified(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.reportBody = `<nm_response></nm_response>`

	_, err := f.proc.CompleteHostedPayment(context.Background(), hostedRedirect, "")
	require.ErrorIs(t, err, ErrUnverified)
	require.Zero(t, f.repo.Counts()["payment"])
}

func TestCompleteHostedPayment_Declined(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.proc.CompleteHostedPayment(context.Background(), "response=2&responsetext=DECLINE&transactionid=TXN10", "")
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "DECLINE", resp.Error)
	require.Zero(t, f.repo.Counts()["order"])
}

const paypalCapture = `{
  "id": "PP-ORDER-1",
  "status": "COMPLETED",
  "payer": {"email_address": "buyer@example.com", "name": {"given_name": "John", "surname": "Doe"}},
  "purchase_units": [{"payments": {"captures": [{
    "id": "CAP-1", "status": "COMPLETED", "amount": {"currency_code": "USD", "value": "1000.00"},
    "create_time": "2025-01-05T10:00:00Z"
  }]}}]
}`

func paypalHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestCapturePayPalOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, paypalHandler(http.StatusCreated, paypalCapture))

	resp, err := f.proc.CapturePayPalOrder(ctx, &PayPalCaptureRequest{PayPalOrderID: "PP-ORDER-1", OfferID: "monthly-creator-pass"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "CAP-1", resp.TransactionID)
	require.EqualValues(t, 100000, resp.Amount)

	c, err := f.repo.FindCustomerByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, "John Doe", c.Name)
	bal, err := f.ledger.CurrentBalance(ctx, c.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, bal)
}

func TestCapturePayPalOrder_AlreadyCaptured(t *testing.T) {
	f := newFixture(t, paypalHandler(http.StatusUnprocessableEntity,
		`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))

	_, err := f.proc.CapturePayPalOrder(context.Background(), &PayPalCaptureRequest{PayPalOrderID: "PP-ORDER-1"})
	require.ErrorIs(t, err, ErrAlreadyCaptured)
}

func TestCapturePayPalOrder_Unavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, paypalHandler(http.StatusServiceUnavailable, `{}`))

	_, err := f.proc.CapturePayPalOrder(ctx, &PayPalCaptureRequest{PayPalOrderID: "PP-ORDER-1"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	open, err := f.events.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "PP-ORDER-1", open[0].OrderRef)
}

func TestCapturePayPalOrder_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.proc.CapturePayPalOrder(context.Background(), &PayPalCaptureRequest{PayPalOrderID: "PP-ORDER-1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.proc.CapturePayPalOrder(context.Background(), &PayPalCaptureRequest{})
	require.ErrorIs(t, err, ErrValidation)
}

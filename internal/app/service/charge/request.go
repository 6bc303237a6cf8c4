package charge

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/go-playground/validator/v10"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("invalid charge request")

// ValidationError names the first offending field. Nothing has been sent to a
// gateway when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type CustomerInfo struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

func (c CustomerInfo) info() customer.Info {
	return customer.Info{Name: strings.TrimSpace(c.Name), Email: c.Email, Phone: c.Phone}
}

// PaymentData carries the method-specific fields. Card: number, expiry, cvv.
// ACH: routing, account, name. Tokenized wallets: token.
type PaymentData struct {
	Number  string `json:"number"`
	Expiry  string `json:"expiry"`
	CVV     string `json:"cvv"`
	Name    string `json:"name"`
	Routing string `json:"routing"`
	Account string `json:"account"`
	Token   string `json:"token"`
}

type ShoutoutData struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
}

type ChargeRequest struct {
	Method       types.PaymentMethod `json:"method" validate:"required"`
	CustomerInfo CustomerInfo        `json:"customer_info"`
	PaymentData  PaymentData         `json:"payment_data"`
	// AmountCents is charged exactly as given.
	AmountCents int64         `json:"amount" validate:"gt=0"`
	OfferID     string        `json:"offer_id"`
	Quantity    int           `json:"quantity" validate:"gte=0,lte=100"`
	Description string        `json:"description"`
	Shoutout    *ShoutoutData `json:"shoutout,omitempty"`
}

type ResponseData struct {
	ResponseCode string `json:"response_code"`
	ResponseText string `json:"response_text"`
	AVSResponse  string `json:"avs_response"`
	CVVResponse  string `json:"cvv_response"`
}

type ChargeResponse struct {
	Success       bool          `json:"success"`
	TransactionID string        `json:"transaction_id,omitempty"`
	AuthCode      string        `json:"auth_code,omitempty"`
	Amount        int64         `json:"amount,omitempty"`
	Method        string        `json:"method,omitempty"`
	OrderRef      string        `json:"order_ref,omitempty"`
	OrderID       string        `json:"order_id,omitempty"`
	ResponseData  *ResponseData `json:"response_data,omitempty"`
	Error         string        `json:"error,omitempty"`
	ResponseCode  string        `json:"response_code,omitempty"`
	IsDuplicate   bool          `json:"isDuplicate,omitempty"`
	// ReconciliationNeeded is set when the payment went through but could not
	// be booked locally; an open reconciliation event carries the details.
	ReconciliationNeeded bool `json:"reconciliation_needed,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structError turns the first validator failure into a ValidationError.
func structError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return invalid("", "invalid request: %v", err)
	}
	fe := ves[0]
	// Drop the Go type name that leads the namespace.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return invalid(field, "%s is required", field)
	case "email":
		return invalid(field, "%s must be a valid email address", field)
	default:
		return invalid(field, "%s is invalid", field)
	}
}

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	expiryRe   = regexp.MustCompile(`^(0[1-9]|1[0-2])\s*/?\s*(\d{2}|\d{4})$`)
)

// cardExpiry normalizes MM/YY, MMYY and MM/YYYY to the gateway's MMYY.
func cardExpiry(s string) (string, bool) {
	m := expiryRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	year := m[2]
	if len(year) == 4 {
		year = year[2:]
	}
	return m[1] + year, true
}

func stripSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' }), "")
}

// paymentSource builds the gateway payment fields for the request's method.
func paymentSource(req *ChargeRequest) (card *nmi.Card, check *nmi.Check, token string, err error) {
	pd := req.PaymentData
	switch {
	case req.Method == types.PaymentMethodCard:
		number := stripSpaces(pd.Number)
		if number == "" || pd.Expiry == "" || pd.CVV == "" {
			return nil, nil, "", invalid("payment_data", "card payments require card number, expiry and cvv")
		}
		if !digitsOnly.MatchString(number) || len(number) < 12 || len(number) > 19 {
			return nil, nil, "", invalid("payment_data.number", "card number is invalid")
		}
		exp, ok := cardExpiry(pd.Expiry)
		if !ok {
			return nil, nil, "", invalid("payment_data.expiry", "card expiry must be MM/YY")
		}
		if !digitsOnly.MatchString(pd.CVV) || len(pd.CVV) < 3 || len(pd.CVV) > 4 {
			return nil, nil, "", invalid("payment_data.cvv", "card cvv is invalid")
		}
		return &nmi.Card{Number: number, Exp: exp, CVV: pd.CVV}, nil, "", nil
	case req.Method == types.PaymentMethodACH:
		routing, account := stripSpaces(pd.Routing), stripSpaces(pd.Account)
		name := strings.TrimSpace(pd.Name)
		if routing == "" || account == "" || name == "" {
			return nil, nil, "", invalid("payment_data", "ACH payments require routing number, account number and account holder name")
		}
		if !digitsOnly.MatchString(routing) || len(routing) != 9 {
			return nil, nil, "", invalid("payment_data.routing", "routing number must be 9 digits")
		}
		if !digitsOnly.MatchString(account) {
			return nil, nil, "", invalid("payment_data.account", "account number is invalid")
		}
		return nil, &nmi.Check{Name: name, Routing: routing, Account: account}, "", nil
	case req.Method.Tokenized():
		if strings.TrimSpace(pd.Token) == "" {
			return nil, nil, "", invalid("payment_data.token", "%s payments require a payment token", req.Method)
		}
		return nil, nil, strings.TrimSpace(pd.Token), nil
	case req.Method == types.PaymentMethodPayPal:
		return nil, nil, "", invalid("method", "paypal payments are captured through the paypal flow")
	default:
		return nil, nil, "", invalid("method", "unsupported payment method %q", req.Method)
	}
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

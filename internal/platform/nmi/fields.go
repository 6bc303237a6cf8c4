package nmi

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/fatflowers/creator-cashier/pkg/money"
	"github.com/fatflowers/creator-cashier/pkg/types"
)

// Fields is a parsed key=value gateway body. Unknown keys are kept; missing
// keys read as "".
type Fields map[string]string

func (f Fields) Get(key string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return f[strings.ToLower(key)]
}

// ParseQueryString parses an &-joined body, URL-decoding each side and
// falling back to the raw text when decoding fails.
func ParseQueryString(body string) Fields {
	out := Fields{}
	for _, pair := range strings.Split(body, "&") {
		addPair(out, pair, true)
	}
	return out
}

// ParseLines parses a newline-joined body. Values are taken verbatim.
func ParseLines(body string) Fields {
	out := Fields{}
	for _, line := range strings.Split(body, "\n") {
		addPair(out, strings.TrimSuffix(line, "\r"), false)
	}
	return out
}

// ParseResponse picks the line parser when every non-empty line is a pair
// and there is more than one of them, and the query-string parser otherwise.
func ParseResponse(body string) Fields {
	body = strings.TrimSpace(body)
	lines := 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, "=") {
			return ParseQueryString(body)
		}
		lines++
	}
	if lines > 1 {
		return ParseLines(body)
	}
	return ParseQueryString(body)
}

func addPair(out Fields, pair string, decode bool) {
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return
	}
	// values may themselves contain '='
	k, v, _ := strings.Cut(pair, "=")
	if decode {
		k, v = unescape(k), unescape(v)
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return
	}
	if _, seen := out[k]; !seen {
		out[k] = strings.TrimSpace(v)
	}
}

func unescape(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

var duplicatePattern = regexp.MustCompile(`(?i)duplicate\s+transaction`)

// ChargeResult is the normalized synchronous answer to a sale request or a
// hosted payment page redirect.
type ChargeResult struct {
	Response      string
	ResponseText  string
	ResponseCode  string
	AuthCode      string
	TransactionID string
	AVSResponse   string
	CVVResponse   string
	OrderID       string
	Fields        Fields
}

func NewChargeResult(f Fields) *ChargeResult {
	return &ChargeResult{
		Response:      f.Get("response"),
		ResponseText:  f.Get("responsetext"),
		ResponseCode:  f.Get("response_code"),
		AuthCode:      f.Get("authcode"),
		TransactionID: f.Get("transactionid"),
		AVSResponse:   f.Get("avsresponse"),
		CVVResponse:   f.Get("cvvresponse"),
		OrderID:       f.Get("orderid"),
		Fields:        f,
	}
}

// Approved: response 1 or response_code 100.
func (r *ChargeResult) Approved() bool {
	return r.Response == "1" || r.ResponseCode == "100"
}

func (r *ChargeResult) Duplicate() bool {
	return duplicatePattern.MatchString(r.ResponseText)
}

// Transaction converts the result into the canonical record. The amount is
// only known when the body carries one (hosted page redirects do).
func (r *ChargeResult) Transaction() types.GatewayTransaction {
	t := types.GatewayTransaction{
		TransactionID:   r.TransactionID,
		OrderID:         r.OrderID,
		Condition:       r.Response,
		TransactionType: r.Fields.Get("type"),
		Email:           r.Fields.Get("email"),
		FirstName:       r.Fields.Get("first_name"),
		LastName:        r.Fields.Get("last_name"),
		Raw:             r.Fields,
	}
	if amt := r.Fields.Get("amount"); amt != "" {
		if cents, err := money.ParseCents(amt); err == nil {
			t.AmountCents, t.HasAmount = cents, true
		}
	}
	if ts := r.Fields.Get("time"); ts != "" {
		t.Timestamp = ParseTimestamp(ts)
	}
	return t
}

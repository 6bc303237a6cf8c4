package nmi

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/fatflowers/creator-cashier/pkg/money"
	"github.com/fatflowers/creator-cashier/pkg/types"
)

// Tag synonyms per logical field, most specific first. Report formats differ
// between security-key and username/password accounts.
var (
	tagTransactionID = []string{"transaction_id", "transactionid", "txn_id", "id"}
	tagOrderID       = []string{"order_id", "orderid"}
	tagAmount        = []string{"amount", "total_amount", "amt", "total"}
	tagCondition     = []string{"condition", "status", "transaction_status"}
	tagType          = []string{"transaction_type", "action_type", "type"}
	tagTimestamp     = []string{"date", "transaction_date", "action_date", "timestamp", "created", "time"}
	tagEmail         = []string{"email", "email_address", "customer_email"}
	tagFirstName     = []string{"first_name", "firstname"}
	tagLastName      = []string{"last_name", "lastname"}
)

// ParseTransactions extracts every <transaction> block from a query report.
// Leaf elements are flattened by lower-cased tag name, first occurrence wins,
// so nested <action> values only fill fields the transaction itself lacks.
// Malformed input never fails: parsing stops and the blocks read so far are
// returned.
func ParseTransactions(body []byte) []types.GatewayTransaction {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		out   []types.GatewayTransaction
		cur   map[string]string
		stack []leaf
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if cur == nil {
				if name == "transaction" {
					cur = map[string]string{}
					stack = stack[:0]
				}
				continue
			}
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, leaf{name: name})
		case xml.CharData:
			if cur != nil && len(stack) > 0 {
				stack[len(stack)-1].text = append(stack[len(stack)-1].text, t...)
			}
		case xml.EndElement:
			if cur == nil {
				continue
			}
			if len(stack) == 0 {
				// closing </transaction>
				out = append(out, toTransaction(cur))
				cur = nil
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.hasChild {
				continue
			}
			if _, seen := cur[top.name]; !seen {
				cur[top.name] = strings.TrimSpace(string(top.text))
			}
		}
	}
	if cur != nil && firstOf(cur, tagTransactionID) != "" {
		out = append(out, toTransaction(cur))
	}
	return out
}

type leaf struct {
	name     string
	text     []byte
	hasChild bool
}

func firstOf(fields map[string]string, tags []string) string {
	for _, tag := range tags {
		if v := fields[tag]; v != "" {
			return v
		}
	}
	return ""
}

func toTransaction(fields map[string]string) types.GatewayTransaction {
	t := types.GatewayTransaction{
		TransactionID:   firstOf(fields, tagTransactionID),
		OrderID:         firstOf(fields, tagOrderID),
		Condition:       strings.ToLower(firstOf(fields, tagCondition)),
		TransactionType: strings.ToLower(firstOf(fields, tagType)),
		Email:           strings.ToLower(firstOf(fields, tagEmail)),
		FirstName:       firstOf(fields, tagFirstName),
		LastName:        firstOf(fields, tagLastName),
		Timestamp:       ParseTimestamp(firstOf(fields, tagTimestamp)),
		Raw:             fields,
	}
	if amt := firstOf(fields, tagAmount); amt != "" {
		if cents, err := money.ParseCents(amt); err == nil {
			t.AmountCents, t.HasAmount = cents, true
		}
	}
	return t
}

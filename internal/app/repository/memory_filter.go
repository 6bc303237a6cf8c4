package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
)

func orderFields(o *models.Order) map[string]any {
	fields := map[string]any{
		"id":          o.ID,
		"customer_id": o.CustomerID,
		"order_ref":   o.OrderRef,
		"status":      string(o.Status),
		"source":      string(o.Source),
		"total_cents": o.TotalCents,
		"currency":    o.Currency,
		"created_at":  o.CreatedAt,
		"captured_at": nil,
		"refunded_at": nil,
	}
	if o.CapturedAt != nil {
		fields["captured_at"] = *o.CapturedAt
	}
	if o.RefundedAt != nil {
		fields["refunded_at"] = *o.RefundedAt
	}
	return fields
}

// matchFilter evaluates a CommonFilter the way the SQL it builds would.
func matchFilter(f *types.CommonFilter, fields map[string]any) bool {
	v := fields[f.Field]
	if f.Operator == types.CommonFilterOperatorNull {
		isNull := len(f.Values) == 0 || fmt.Sprint(f.Values[0]) != "false"
		return (v == nil) == isNull
	}
	if len(f.Values) == 0 {
		return true
	}
	if v == nil {
		return false
	}
	first := f.Values[0]
	switch f.Operator {
	case types.CommonFilterOperatorEq:
		return compareValues(v, first) == 0
	case types.CommonFilterOperatorNotEq:
		return compareValues(v, first) != 0
	case types.CommonFilterOperatorLt:
		return compareValues(v, first) < 0
	case types.CommonFilterOperatorLte:
		return compareValues(v, first) <= 0
	case types.CommonFilterOperatorGt:
		return compareValues(v, first) > 0
	case types.CommonFilterOperatorGte:
		return compareValues(v, first) >= 0
	case types.CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return true
		}
		return compareValues(v, f.Values[0]) >= 0 && compareValues(v, f.Values[1]) <= 0
	case types.CommonFilterOperatorIn:
		return lo.SomeBy(f.Values, func(x any) bool { return compareValues(v, x) == 0 })
	}
	return true
}

// compareValues orders a stored field value against a filter operand, which
// arrives from JSON as a string or float64.
func compareValues(stored, operand any) int {
	switch sv := stored.(type) {
	case nil:
		if operand == nil {
			return 0
		}
		return -1
	case int64:
		ov, ok := toInt64(operand)
		if !ok {
			return strings.Compare(strconv.FormatInt(sv, 10), fmt.Sprint(operand))
		}
		switch {
		case sv < ov:
			return -1
		case sv > ov:
			return 1
		}
		return 0
	case time.Time:
		ov, ok := toTime(operand)
		if !ok {
			return strings.Compare(sv.Format(time.RFC3339), fmt.Sprint(operand))
		}
		return sv.Compare(ov)
	default:
		return strings.Compare(fmt.Sprint(stored), fmt.Sprint(operand))
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339, x)
		return t, err == nil
	}
	return time.Time{}, false
}

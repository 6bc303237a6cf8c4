package types

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

// ErrInvalidFilter is returned for filters or sort fields outside the allow-list.
var ErrInvalidFilter = errors.New("invalid filter")

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
	CommonFilterOperatorNull  CommonFilterOperator = "is_null"
)

// CommonFilter is an admin list filter. Fields are column names and must be
// checked against an allow-list with Validate before use.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

func (f *CommonFilter) Validate(allowed []string) error {
	if f == nil {
		return fmt.Errorf("%w: nil filter", ErrInvalidFilter)
	}
	for _, a := range allowed {
		if strings.EqualFold(a, f.Field) {
			f.Field = a
			return nil
		}
	}
	return fmt.Errorf("%w: field not allowed: %s", ErrInvalidFilter, f.Field)
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if f.Operator == CommonFilterOperatorNull {
		isNull := len(f.Values) == 0 || fmt.Sprint(f.Values[0]) != "false"
		if isNull {
			clause.Eq{Column: clause.Column{Name: f.Field}, Value: nil}.Build(builder)
		} else {
			clause.Neq{Column: clause.Column{Name: f.Field}, Value: nil}.Build(builder)
		}
		return
	}
	if len(f.Values) == 0 {
		return
	}

	col := clause.Column{Name: f.Field}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: col, Value: f.Values[0]}, clause.Lte{Column: col, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: col, Values: f.Values}.Build(builder)
	default:
		return
	}
}

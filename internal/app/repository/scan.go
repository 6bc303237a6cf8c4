package repository

import (
	"fmt"
	"strings"

	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
)

const (
	defaultScanSize = 10
	maxScanSize     = 200
)

func normalizeScan(q *OrderScan) error {
	if q == nil {
		return fmt.Errorf("nil scan request")
	}
	if q.Size <= 0 {
		q.Size = defaultScanSize
	}
	if q.Size > maxScanSize {
		q.Size = maxScanSize
	}
	if q.From < 0 {
		q.From = 0
	}
	for _, f := range q.Filters {
		if err := f.Validate(OrderScanFields); err != nil {
			return err
		}
	}
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	sort := q.SortBy
	for _, allowed := range OrderScanFields {
		if strings.EqualFold(allowed, sort) {
			q.SortBy = allowed
			return nil
		}
	}
	return fmt.Errorf("%w: sort field not allowed: %s", types.ErrInvalidFilter, sort)
}

func prepareOrder(o *models.Order) {
	if o.ID == "" {
		o.ID = tool.GenerateUUIDV7()
	}
	for _, it := range o.Items {
		if it.ID == "" {
			it.ID = tool.GenerateUUIDV7()
		}
		it.OrderID = o.ID
	}
}

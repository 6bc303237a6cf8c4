package checkout

import (
	"context"
	"fmt"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
)

type RefundRequest struct {
	OrderID string
	// ReverseCredits takes back the credits the order awarded. The refund
	// fails when the customer has already spent them.
	ReverseCredits bool
	Reason         string
}

// RefundOrder moves a PAID order and its completed payments to REFUNDED.
// The gateway side of the refund is handled outside this service.
func (s *Service) RefundOrder(ctx context.Context, req *RefundRequest) (*models.Order, error) {
	var refunded *models.Order
	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		order, err := tx.GetOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != types.OrderStatusPaid {
			return fmt.Errorf("%w: order %s is %s", ErrOrderNotRefundable, order.ID, order.Status)
		}
		before := *order

		now := s.now().UTC()
		order.Status = types.OrderStatusRefunded
		order.RefundedAt = &now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		payments, err := tx.ListPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}
		for _, p := range payments {
			if p.Status != types.PaymentStatusCompleted {
				continue
			}
			p.Status = types.PaymentStatusRefunded
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return fmt.Errorf("failed to update payment %s: %w", p.ID, err)
			}
		}

		if credits := order.CreditsAwarded(); req.ReverseCredits && credits > 0 {
			reason := "Refund: " + order.OrderRef
			if req.Reason != "" {
				reason = req.Reason
			}
			if _, err := s.ledger.DeductTx(ctx, tx, order.CustomerID, credits, types.LedgerEntryKindRefund, reason, &order.ID); err != nil {
				return err
			}
		}

		cancelled, err := subscription.CancelForOrderTx(ctx, tx, order.CustomerID, order.ID)
		if err != nil {
			return err
		}

		if err := s.logStatus(ctx, tx, &before, order, "refund", map[string]interface{}{
			"reverse_credits":         req.ReverseCredits,
			"reason":                  req.Reason,
			"cancelled_subscriptions": len(cancelled),
		}); err != nil {
			return err
		}
		refunded = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("order_refunded", "order_id", refunded.ID, "reverse_credits", req.ReverseCredits)
	return refunded, nil
}

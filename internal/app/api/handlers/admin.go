package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
)

// Reconciler is the slice of reconcile.Engine the admin routes depend on.
type Reconciler interface {
	SyncGatewayTransactions(ctx context.Context, req reconcile.Request) (*reconcile.Summary, error)
}

type ReconcileRequest struct {
	// StartDate and EndDate accept 2006-01-02 or RFC3339. A bare end date covers the whole day.
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type RefundOrderRequest struct {
	ReverseCredits bool   `json:"reverse_credits"`
	Reason         string `json:"reason"`
}

const defaultEventsLimit = 100

func parseDate(field, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339: %w", field, reconcile.ErrInvalidRange)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

// @Summary      Reconcile gateway transactions
// @Description  Pulls the gateway's transaction report for the range, repairs known payments and imports unknown ones.
// @Description  Defaults to the last reconcile.default_days days. Returns 40900 if a run is already in progress.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.ReconcileRequest false "Date range"
// @Success      200  {object}  handlers.RespReconcileSummary
// @Router       /api/v1/admin/reconcile [post]
func ApiReconcile(rec Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body ReconcileRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		start, err := parseDate("start_date", body.StartDate, false)
		if err != nil {
			badRequest(c, err)
			return
		}
		end, err := parseDate("end_date", body.EndDate, true)
		if err != nil {
			badRequest(c, err)
			return
		}
		summary, err := rec.SyncGatewayTransactions(c.Request.Context(), reconcile.Request{StartDate: start, EndDate: end})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(summary))
	}
}

// @Summary      List orders
// @Description  Paginated order listing with filters.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body checkout.ScanOrdersRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespOrders
// @Router       /api/v1/admin/orders/list [post]
func ApiListOrders(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.ScanOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := co.ScanOrders(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Refund order
// @Description  Marks a paid order and its completed payments refunded, optionally reversing the credits it awarded.
// @Description  The gateway refund itself is issued outside this service.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id      path string                      true  "Order ID"
// @Param        request body handlers.RefundOrderRequest false "Refund options"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/admin/orders/{id}/refund [post]
func ApiRefundOrder(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body RefundOrderRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		order, err := co.RefundOrder(c.Request.Context(), &checkout.RefundRequest{
			OrderID:        c.Param("id"),
			ReverseCredits: body.ReverseCredits,
			Reason:         body.Reason,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(order))
	}
}

// @Summary      Open reconciliation events
// @Description  Lists charges whose bookkeeping failed or whose gateway outcome is unknown, oldest first.
// @Tags         Admin
// @Produce      json
// @Param        limit query int false "Maximum number of events" default(100)
// @Success      200  {object}  handlers.RespReconciliationEvents
// @Router       /api/v1/admin/reconciliation_events [get]
func ApiListReconciliationEvents(events *recon_event.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultEventsLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				badRequest(c, errors.New("limit must be a positive integer"))
				return
			}
			limit = n
		}
		list, err := events.ListOpen(c.Request.Context(), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(list))
	}
}

// @Summary      Delete customer
// @Description  Deletes a customer without history. Customers with orders or ledger entries return 40900; deactivate them instead.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/customers/{id} [delete]
func ApiDeleteCustomer(cust *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cust.Delete(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Deactivate customer
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/customers/{id}/deactivate [post]
func ApiDeactivateCustomer(cust *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := cust.Deactivate(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      Delete offer
// @Description  Deletes an offer no order references. Referenced offers return 40900; deactivate them instead.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Offer ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/offers/{id} [delete]
func ApiDeleteOffer(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cat.Delete(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Deactivate offer
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Offer ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/offers/{id}/deactivate [post]
func ApiDeactivateOffer(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := cat.Deactivate(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      List offers
// @Tags         Admin
// @Produce      json
// @Param        active query bool false "Only active offers"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/offers [get]
func ApiListOffers(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := cat.List(c.Request.Context(), c.Query("active") == "true")
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(list))
	}
}

func RegisterAdminRoutes(r gin.IRouter, rec Reconciler, co *checkout.Service, events *recon_event.Service,
	cust *customer.Service, cat *catalog.Service) {
	r.POST("/reconcile", ApiReconcile(rec))
	r.POST("/orders/list", ApiListOrders(co))
	r.POST("/orders/:id/refund", ApiRefundOrder(co))
	r.GET("/reconciliation_events", ApiListReconciliationEvents(events))
	r.DELETE("/customers/:id", ApiDeleteCustomer(cust))
	r.POST("/customers/:id/deactivate", ApiDeactivateCustomer(cust))
	r.GET("/offers", ApiListOffers(cat))
	r.DELETE("/offers/:id", ApiDeleteOffer(cat))
	r.POST("/offers/:id/deactivate", ApiDeactivateOffer(cat))
}

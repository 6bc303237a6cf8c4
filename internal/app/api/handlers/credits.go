package handlers

import (
	"net/http"

	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
)

type CreditsView struct {
	CustomerID string                       `json:"customer_id"`
	Balance    int64                        `json:"balance"`
	History    []*models.CreditsLedgerEntry `json:"history"`
}

type AdjustCreditsRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Delta      int64  `json:"delta"`
	Reason     string `json:"reason" binding:"required"`
}

type DeductCreditsRequest struct {
	CustomerID string  `json:"customer_id" binding:"required"`
	Amount     int64   `json:"amount"`
	Reason     string  `json:"reason" binding:"required"`
	RefOrderID *string `json:"ref_order_id,omitempty"`
}

// @Summary      Credits balance
// @Description  Returns the customer's current balance and full ledger history, oldest first.
// @Tags         Credits
// @Produce      json
// @Param        customer_id path string true "Customer ID"
// @Success      200  {object}  handlers.RespCredits
// @Router       /api/v1/credits/{customer_id} [get]
func ApiGetCredits(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("customer_id")
		balance, err := led.CurrentBalance(c.Request.Context(), customerID)
		if err != nil {
			fail(c, err)
			return
		}
		history, err := led.History(c.Request.Context(), customerID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&CreditsView{CustomerID: customerID, Balance: balance, History: history}))
	}
}

// @Summary      Adjust credits
// @Description  Appends a signed adjustment to the customer's ledger. Negative deltas cannot overdraw.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.AdjustCreditsRequest true "Adjustment"
// @Success      200  {object}  handlers.RespLedgerEntry
// @Router       /api/v1/admin/credits/adjust [post]
func ApiAdjustCredits(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustCreditsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		entry, err := led.Adjust(c.Request.Context(), req.CustomerID, req.Delta, req.Reason)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(entry))
	}
}

// @Summary      Deduct credits
// @Description  Spends credits. Fails with 40900 when the balance is insufficient.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.DeductCreditsRequest true "Deduction"
// @Success      200  {object}  handlers.RespLedgerEntry
// @Router       /api/v1/admin/credits/deduct [post]
func ApiDeductCredits(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeductCreditsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		entry, err := led.Deduct(c.Request.Context(), req.CustomerID, req.Amount, req.Reason, req.RefOrderID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(entry))
	}
}

// @Summary      Verify ledger
// @Description  Replays the customer's ledger and reports the first entry whose balance or sequence breaks the chain.
// @Tags         Admin
// @Produce      json
// @Param        customer_id path string true "Customer ID"
// @Success      200  {object}  handlers.RespVerifyReport
// @Router       /api/v1/admin/credits/{customer_id}/verify [get]
func ApiVerifyLedger(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := led.Verify(c.Request.Context(), c.Param("customer_id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

func RegisterCreditsRoutes(r gin.IRouter, led *ledger.Service) {
	r.GET("/credits/:customer_id", ApiGetCredits(led))
}

func RegisterAdminCreditsRoutes(r gin.IRouter, led *ledger.Service) {
	r.POST("/credits/adjust", ApiAdjustCredits(led))
	r.POST("/credits/deduct", ApiDeductCredits(led))
	r.GET("/credits/:customer_id/verify", ApiVerifyLedger(led))
}

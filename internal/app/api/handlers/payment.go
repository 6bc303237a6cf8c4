package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
)

// Charger is the slice of charge.Processor the payment routes depend on.
type Charger interface {
	Charge(ctx context.Context, req *charge.ChargeRequest) (*charge.ChargeResponse, error)
	CapturePayPalOrder(ctx context.Context, req *charge.PayPalCaptureRequest) (*charge.ChargeResponse, error)
	CompleteHostedPayment(ctx context.Context, rawQuery string, offerRef string) (*charge.ChargeResponse, error)
}

// respondCharge keeps the {success: ...} body in data for every outcome so
// checkout pages can render one shape.
func respondCharge(c *gin.Context, method string, resp *charge.ChargeResponse, err error) {
	if err != nil {
		code := codeFor(err)
		c.JSON(http.StatusOK, response.ErrorMsgT(code, err.Error(), &charge.ChargeResponse{
			Success:              false,
			Method:               method,
			Error:                err.Error(),
			ReconciliationNeeded: code == response.APIResponseCodeGatewayUnknown,
		}))
		return
	}
	c.JSON(http.StatusOK, response.OKT(resp))
}

// @Summary      Charge
// @Description  Charges a card, ACH account or wallet token through the gateway and books the order,
// @Description  payment, subscription and credits. A decline is returned with code 0 and success=false.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body charge.ChargeRequest true "Charge request"
// @Success      200  {object}  handlers.RespCharge
// @Router       /api/v1/payment/charge [post]
func ApiCharge(p Charger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req charge.ChargeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondCharge(c, "", nil, &charge.ValidationError{Message: "invalid request body: " + err.Error()})
			return
		}
		resp, err := p.Charge(c.Request.Context(), &req)
		respondCharge(c, string(req.Method), resp, err)
	}
}

// @Summary      Capture PayPal order
// @Description  Captures an approved PayPal order and books it.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body charge.PayPalCaptureRequest true "Capture request"
// @Success      200  {object}  handlers.RespCharge
// @Router       /api/v1/payment/paypal/capture [post]
func ApiCapturePayPal(p Charger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req charge.PayPalCaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondCharge(c, "paypal", nil, &charge.ValidationError{Message: "invalid request body: " + err.Error()})
			return
		}
		resp, err := p.CapturePayPalOrder(c.Request.Context(), &req)
		respondCharge(c, "paypal", resp, err)
	}
}

// @Summary      Hosted payment return
// @Description  Completes a hosted payment page checkout. The redirect is verified against the gateway query API before booking.
// @Tags         Payment
// @Produce      json
// @Param        transaction_id query string true  "Gateway transaction id"
// @Param        offer_id       query string false "Offer id or SKU"
// @Success      200  {object}  handlers.RespCharge
// @Router       /api/v1/payment/hosted/return [get]
func ApiHostedReturn(p Charger) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := p.CompleteHostedPayment(c.Request.Context(), c.Request.URL.RawQuery, "")
		respondCharge(c, "card", resp, err)
	}
}

func RegisterPaymentRoutes(r gin.IRouter, p Charger) {
	r.POST("/charge", ApiCharge(p))
	r.POST("/paypal/capture", ApiCapturePayPal(p))
	r.GET("/hosted/return", ApiHostedReturn(p))
}

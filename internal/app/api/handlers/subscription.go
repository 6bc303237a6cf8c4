package handlers

import (
	"net/http"

	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
)

// @Summary      Subscription status
// @Description  Whether the customer holds a valid subscription now, with every subscription on record.
// @Tags         Credits
// @Produce      json
// @Param        customer_id path string true "Customer ID"
// @Success      200  {object}  handlers.RespSubscriptionStatus
// @Router       /api/v1/subscriptions/{customer_id} [get]
func ApiSubscriptionStatus(subs *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := subs.GetStatus(c.Request.Context(), c.Param("customer_id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(st))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, subs *subscription.Service) {
	r.GET("/subscriptions/:customer_id", ApiSubscriptionStatus(subs))
}

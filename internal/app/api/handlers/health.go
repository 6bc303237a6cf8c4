package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fatflowers/creator-cashier/pkg/response"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store answers.
type Pinger func(ctx context.Context) error

const healthPingTimeout = 2 * time.Second

// @Summary      Health check
// @Description  Returns service status. With a database attached, status is "degraded" when it does not answer.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func ApiHealthz(ping Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := map[string]string{"status": "ok"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, response.OKT(status))
	}
}

func RegisterHealthRoutes(r gin.IRouter, ping Pinger) {
	r.GET("/healthz", ApiHealthz(ping))
}

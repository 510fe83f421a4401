package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aq2208/payflow/internal/adapter/http/middleware"
	"github.com/aq2208/payflow/internal/logging"
)

type Handlers struct {
	Orders      *OrderHandler
	Pay         *PayHandler
	Webhooks    *WebhookHandler
	Fulfillment *FulfillmentHandler
	Token       *TokenHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, l *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Info("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", h.Token.IssueToken)

	// Gateways authenticate with payload signatures, not JWTs.
	r.POST("/v1/webhooks/:gateway", h.Webhooks.Receive)

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", authz.Require("orders.write"), h.Orders.CreateOrder)
		v1.GET("/orders/:id", authz.Require("orders.read"), h.Orders.GetOrderByID)
		v1.GET("/orders/:id/status", authz.Require("orders.read"), h.Orders.GetOrderStatus)
		v1.GET("/orders/:id/splits", authz.Require("orders.read"), h.Orders.GetOrderSplits)
		v1.POST("/orders/:id/pay", authz.Require("payments.write"), h.Pay.Pay)
		v1.POST("/orders/:id/fulfillment", authz.Require("fulfillment.write"), h.Fulfillment.Apply)
	}

	return r
}

package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/logging"
	"github.com/aq2208/payflow/internal/usecase"
)

var webhookOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "payflow",
		Name:      "webhook_events_total",
		Help:      "Inbound gateway webhooks by outcome",
	},
	[]string{"gateway", "outcome"},
)

const webhookBodyLimit = 64 * 1024

type WebhookHandler struct {
	process *usecase.ProcessWebhook
}

func NewWebhookHandler(process *usecase.ProcessWebhook) *WebhookHandler {
	return &WebhookHandler{process: process}
}

// Receive ingests a gateway notification. The contract with gateways: 200
// means the event outcome is durable and must not be redelivered; anything
// else invites a retry. Invalid signatures and unknown transactions are
// therefore still 200, with the outcome in the body.
func (h *WebhookHandler) Receive(c *gin.Context) {
	gw, ok := domain.ParseGatewayKind(c.Param("gateway"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_gateway"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	outcome, err := h.process.Execute(ctx, usecase.ProcessWebhookInput{
		Gateway:   gw,
		Payload:   body,
		Signature: c.GetHeader("X-Signature"),
	})
	if err != nil {
		// Nothing durable was recorded; ask the gateway to redeliver.
		logging.From(c).Error("webhook processing failed", "gateway", string(gw), "err", err)
		webhookOutcomes.WithLabelValues(string(gw), "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed"})
		return
	}

	webhookOutcomes.WithLabelValues(string(gw), string(outcome)).Inc()
	c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
}

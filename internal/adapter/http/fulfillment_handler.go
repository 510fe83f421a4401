package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/payflow/internal/usecase"
)

type FulfillmentHandler struct {
	fulfill *usecase.FulfillOrder
}

func NewFulfillmentHandler(fulfill *usecase.FulfillOrder) *FulfillmentHandler {
	return &FulfillmentHandler{fulfill: fulfill}
}

type fulfillReq struct {
	Action          string `json:"action" binding:"required,oneof=process ship deliver cancel refund"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

// Apply is the synchronous twin of the Kafka feed, for collaborators that
// want the conflict surfaced in-band instead of in a consumer log.
func (h *FulfillmentHandler) Apply(c *gin.Context) {
	var req fulfillReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := h.fulfill.Execute(ctx, usecase.FulfillOrderInput{
		OrderID:         c.Param("id"),
		Action:          req.Action,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

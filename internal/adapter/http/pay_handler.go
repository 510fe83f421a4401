package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/payflow/internal/usecase"
)

type PayHandler struct {
	pay *usecase.PayOrder
}

func NewPayHandler(pay *usecase.PayOrder) *PayHandler {
	return &PayHandler{pay: pay}
}

type payOrderReq struct {
	Method   string `json:"method" binding:"required,oneof=card bank cash"`
	BankCode string `json:"bankCode"`
}

type payOrderResp struct {
	AttemptID   string `json:"attemptId"`
	Status      string `json:"status"`
	Gateway     string `json:"gateway"`
	ExternalRef string `json:"externalRef"`
}

// Pay dispatches a payment attempt. The gateway call can legitimately take a
// while (retry with backoff behind the breaker), hence the generous timeout.
func (h *PayHandler) Pay(c *gin.Context) {
	var req payOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	out, err := h.pay.Execute(ctx, usecase.PayOrderInput{
		OrderID:  c.Param("id"),
		Method:   req.Method,
		BankCode: req.BankCode,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, payOrderResp{
		AttemptID:   out.AttemptID,
		Status:      string(out.AttemptStatus),
		Gateway:     string(out.Gateway),
		ExternalRef: out.ExternalRef,
	})
}

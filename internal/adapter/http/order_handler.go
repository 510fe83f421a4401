package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

type OrderHandler struct {
	register *usecase.RegisterOrder
	query    usecase.OrderRepo
	splits   usecase.SplitRepo
	statuses usecase.OrderCache
}

func NewOrderHandler(register *usecase.RegisterOrder, query usecase.OrderRepo, splits usecase.SplitRepo, statuses usecase.OrderCache) *OrderHandler {
	return &OrderHandler{register: register, query: query, splits: splits, statuses: statuses}
}

type orderItemReq struct {
	SellerID  string `json:"sellerId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	UnitPrice int64  `json:"unitPrice" binding:"required,gt=0"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

type createOrderReq struct {
	BuyerID  string         `json:"buyerId" binding:"required"`
	Currency string         `json:"currency" binding:"required"`
	Items    []orderItemReq `json:"items" binding:"required,min=1,dive"`
	Tax      int64          `json:"tax"`
	Shipping int64          `json:"shipping"`
	Discount int64          `json:"discount"`
}

type createOrderResp struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Total   int64  `json:"total"`
}

// CreateOrder handler: translate to use case input
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated requests

	items := make([]usecase.RegisterOrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.RegisterOrderLine{
			SellerID:  it.SellerID,
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	out, err := h.register.Execute(ctx, usecase.RegisterOrderInput{
		BuyerID:        req.BuyerID,
		IdempotencyKey: idemKey,
		Currency:       req.Currency,
		Items:          items,
		TaxUnits:       req.Tax,
		ShippingUnits:  req.Shipping,
		DiscountUnits:  req.Discount,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createOrderResp{
		OrderID: out.OrderID,
		Status:  string(out.Status),
		Total:   out.Total.Units,
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.query.GetByID(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	items := make([]gin.H, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, gin.H{
			"id":         it.ID,
			"seller_id":  it.SellerID,
			"product_id": it.ProductID,
			"unit_price": it.UnitPrice.Units,
			"quantity":   it.Quantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       o.ID,
		"buyer_id": o.BuyerID,
		"status":   string(o.Status),
		"version":  o.Version,
		"currency": o.Total.Currency,
		"subtotal": o.Subtotal.Units,
		"tax":      o.Tax.Units,
		"shipping": o.Shipping.Units,
		"discount": o.Discount.Units,
		"total":    o.Total.Units,
		"items":    items,
	})
}

// GetOrderStatus is the cheap polling endpoint: it answers from the status
// cache when it can and only falls through to the database on a miss.
func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if st, ok, err := h.statuses.GetStatus(ctx, id); err == nil && ok {
		c.JSON(http.StatusOK, gin.H{"order_id": id, "status": st})
		return
	}

	o, err := h.query.GetByID(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	_ = h.statuses.SetStatus(ctx, o.ID, string(o.Status))
	c.JSON(http.StatusOK, gin.H{"order_id": o.ID, "status": string(o.Status)})
}

// GetOrderSplits exposes the commission ledger for an order.
func (h *OrderHandler) GetOrderSplits(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	splits, err := h.splits.ListByOrder(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	out := make([]gin.H, 0, len(splits))
	for _, s := range splits {
		out = append(out, gin.H{
			"id":           s.ID,
			"seller_id":    s.SellerID,
			"entry":        string(s.Entry),
			"gross":        s.Gross.Units,
			"platform_fee": s.PlatformFee.Units,
			"payable":      s.Payable.Units,
			"currency":     s.Gross.Currency,
		})
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "splits": out})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, usecase.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/payflow/internal/entity"
)

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:      "ord-1",
		BuyerID: "buyer-1",
		Items: []domain.LineItem{
			{ID: "li-1", SellerID: "s-a", UnitPrice: vnd(100_000), Quantity: 1},
		},
		Subtotal:  vnd(100_000),
		Tax:       vnd(0),
		Shipping:  vnd(0),
		Discount:  vnd(0),
		Total:     vnd(100_000),
		Status:    domain.StatusPending,
		UpdatedAt: time.Now(),
	}
}

func TestPayOrderDispatchesAndAwaits(t *testing.T) {
	orders := newMemOrders(pendingOrder())
	attempts := newMemAttempts()
	router := newFakeRouter(&fakeGateway{kind: domain.GatewayPrimary})
	uc := NewPayOrder(orders, attempts, router, newKeyLocker(), newMemCache(), testLogger())

	out, err := uc.Execute(context.Background(), PayOrderInput{OrderID: "ord-1", Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPrimary, out.Gateway)
	assert.Equal(t, domain.AttemptPending, out.AttemptStatus)
	assert.Equal(t, "ref-ord-1", out.ExternalRef)

	o, err := orders.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaiting, o.Status)

	at, err := attempts.GetActiveByOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", at.OrderID)
	assert.Equal(t, vnd(100_000), at.Amount)
}

func TestPayOrderOnlyFromPending(t *testing.T) {
	o := pendingOrder()
	o.Status = domain.StatusConfirmed
	uc := NewPayOrder(newMemOrders(o), newMemAttempts(), newFakeRouter(&fakeGateway{kind: domain.GatewayPrimary}),
		newKeyLocker(), newMemCache(), testLogger())

	_, err := uc.Execute(context.Background(), PayOrderInput{OrderID: "ord-1", Method: "card"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPayOrderUnknownMethod(t *testing.T) {
	uc := NewPayOrder(newMemOrders(pendingOrder()), newMemAttempts(), newFakeRouter(&fakeGateway{kind: domain.GatewayPrimary}),
		newKeyLocker(), newMemCache(), testLogger())

	_, err := uc.Execute(context.Background(), PayOrderInput{OrderID: "ord-1", Method: "barter"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPayOrderDispatchFailureLeavesOrderPending(t *testing.T) {
	gw := &fakeGateway{
		kind: domain.GatewayPrimary,
		initiate: func(req InitiateRequest) (InitiateResult, error) {
			return InitiateResult{}, domain.ErrGatewayUnavailable
		},
	}
	orders := newMemOrders(pendingOrder())
	uc := NewPayOrder(orders, newMemAttempts(), newFakeRouter(gw), newKeyLocker(), newMemCache(), testLogger())

	_, err := uc.Execute(context.Background(), PayOrderInput{OrderID: "ord-1", Method: "card"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	o, gerr := orders.GetByID(context.Background(), "ord-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusPending, o.Status, "order stays payable")
}

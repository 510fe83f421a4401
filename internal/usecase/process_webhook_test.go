package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/payflow/internal/entity"
)

type webhookFixture struct {
	orders   *memOrders
	attempts *memAttempts
	webhooks *memWebhooks
	pub      *capturePublisher
	uc       *ProcessWebhook
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	orders := newMemOrders(&domain.Order{
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
		Status:    domain.StatusAwaiting,
		UpdatedAt: time.Now(),
	})
	attempts := newMemAttempts(&domain.PaymentAttempt{
		ID:          "att-1",
		OrderID:     "ord-1",
		Gateway:     domain.GatewayPrimary,
		ExternalRef: "ch-1",
		Status:      domain.AttemptPending,
		Amount:      vnd(100_000),
	})
	webhooks := newMemWebhooks()
	pub := &capturePublisher{}
	cache := newMemCache()
	l := testLogger()
	router := newFakeRouter(&fakeGateway{kind: domain.GatewayPrimary})
	resolver := NewAttemptResolver(orders, attempts, pub, cache, l)
	uc := NewProcessWebhook(router, webhooks, attempts, resolver, newMemIdem(), newKeyLocker(), l)
	return &webhookFixture{orders: orders, attempts: attempts, webhooks: webhooks, pub: pub, uc: uc}
}

func vnd(units int64) domain.Money { return domain.Money{Units: units, Currency: "VND"} }

func approvedPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{"event_id":%q,"ref":"ch-1","status":"APPROVED"}`, eventID))
}

func TestWebhookApprovedConfirmsOrder(t *testing.T) {
	f := newWebhookFixture(t)

	outcome, err := f.uc.Execute(context.Background(), ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookAccepted, outcome)

	o, err := f.orders.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)

	at, err := f.attempts.GetApprovedByOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "att-1", at.ID)

	require.Equal(t, 1, f.pub.requestedCount())
	assert.Equal(t, "ord-1", f.pub.requested[0].OrderID)
	assert.False(t, f.pub.requested[0].Reverse)
}

func TestWebhookRedeliveryIsDuplicate(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	first, err := f.uc.Execute(ctx, ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "good",
	})
	require.NoError(t, err)
	require.Equal(t, domain.WebhookAccepted, first)

	for i := 0; i < 5; i++ {
		out, err := f.uc.Execute(ctx, ProcessWebhookInput{
			Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "good",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.WebhookDuplicate, out)
	}

	assert.Equal(t, 1, f.webhooks.count(), "one durable row per event id")
	assert.Equal(t, 1, f.pub.requestedCount(), "side effects fire once")
}

func TestWebhookConcurrentRedelivery(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	const n = 16
	outcomes := make([]domain.WebhookOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.uc.Execute(ctx, ProcessWebhookInput{
				Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "good",
			})
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, out := range outcomes {
		if out == domain.WebhookAccepted {
			accepted++
		} else {
			assert.Equal(t, domain.WebhookDuplicate, out)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, f.webhooks.count())
	assert.Equal(t, 1, f.pub.requestedCount())

	o, err := f.orders.GetByID(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)
	assert.Equal(t, int64(1), o.Version, "exactly one transition applied")
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)

	out, err := f.uc.Execute(context.Background(), ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "forged",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookInvalidSignature, out)

	o, err := f.orders.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaiting, o.Status, "rejected webhook drives nothing")
	assert.Equal(t, 1, f.webhooks.count(), "rejections still leave an audit row")
	assert.Equal(t, 0, f.pub.requestedCount())
}

func TestWebhookUnknownTransaction(t *testing.T) {
	f := newWebhookFixture(t)

	out, err := f.uc.Execute(context.Background(), ProcessWebhookInput{
		Gateway:   domain.GatewayPrimary,
		Payload:   []byte(`{"event_id":"ev-9","ref":"ch-nope","status":"APPROVED"}`),
		Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookUnknownTransaction, out)
	assert.Equal(t, 0, f.pub.requestedCount())
}

func TestWebhookUnparseablePayload(t *testing.T) {
	f := newWebhookFixture(t)

	out, err := f.uc.Execute(context.Background(), ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: []byte(`not json at all`), Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookInvalidSignature, out)
}

func TestWebhookDistinctEventsSamePaymentResolveOnce(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	out, err := f.uc.Execute(ctx, ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-1"), Signature: "good",
	})
	require.NoError(t, err)
	require.Equal(t, domain.WebhookAccepted, out)

	// A second, distinct notification for the same charge: recorded, but the
	// attempt is already resolved so the state machine does not move again.
	out, err = f.uc.Execute(ctx, ProcessWebhookInput{
		Gateway: domain.GatewayPrimary, Payload: approvedPayload("ev-2"), Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookAccepted, out)

	assert.Equal(t, 2, f.webhooks.count())
	assert.Equal(t, 1, f.pub.requestedCount())
	o, err := f.orders.GetByID(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Version)
}

func TestWebhookDeclinedDeclinesOrder(t *testing.T) {
	f := newWebhookFixture(t)

	out, err := f.uc.Execute(context.Background(), ProcessWebhookInput{
		Gateway:   domain.GatewayPrimary,
		Payload:   []byte(`{"event_id":"ev-1","ref":"ch-1","status":"DECLINED"}`),
		Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookAccepted, out)

	o, err := f.orders.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, o.Status)
	assert.Equal(t, 0, f.pub.requestedCount(), "no settlement for declines")
}

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aq2208/payflow/configs"
	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

// stubGateway lets each test script the initiate outcome.
type stubGateway struct {
	kind  domain.GatewayKind
	calls atomic.Int64
	fail  atomic.Bool
	err   error
}

func (g *stubGateway) Name() domain.GatewayKind { return g.kind }

func (g *stubGateway) Initiate(ctx context.Context, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	g.calls.Add(1)
	if g.fail.Load() {
		if g.err != nil {
			return usecase.InitiateResult{}, g.err
		}
		return usecase.InitiateResult{}, fmt.Errorf("%w: connection refused", domain.ErrNetwork)
	}
	return usecase.InitiateResult{
		ExternalRef: string(g.kind) + "-ref",
		Status:      domain.AttemptPending,
	}, nil
}

func (g *stubGateway) QueryStatus(ctx context.Context, ref string) (domain.AttemptStatus, error) {
	return domain.AttemptApproved, nil
}

func (g *stubGateway) VerifySignature(payload []byte, signature string) bool { return true }

func (g *stubGateway) ParseWebhook(payload []byte) (domain.WebhookNotice, error) {
	return domain.WebhookNotice{}, nil
}

func testRouterConfig() configs.Config {
	var cfg configs.Config
	cfg.Router.FailureThreshold = 2
	cfg.Router.Cooldown = 100 * time.Millisecond
	cfg.Router.MaxRetries = 1
	cfg.Router.RetryBaseDelay = time.Millisecond
	return cfg
}

func newTestRouter() (*Router, *stubGateway, *stubGateway, *stubGateway) {
	primary := &stubGateway{kind: domain.GatewayPrimary}
	secondary := &stubGateway{kind: domain.GatewaySecondary}
	cashnet := &stubGateway{kind: domain.GatewayCashNet}
	r := NewRouter(primary, secondary, cashnet, testRouterConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r, primary, secondary, cashnet
}

func cardRequest() usecase.InitiateRequest {
	return usecase.InitiateRequest{
		OrderID: "ord-1",
		Amount:  domain.Money{Units: 100_000, Currency: "VND"},
		Method:  domain.MethodCard,
	}
}

func TestDispatchPrefersPrimary(t *testing.T) {
	r, primary, secondary, _ := newTestRouter()

	kind, res, err := r.Dispatch(context.Background(), cardRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPrimary, kind)
	assert.Equal(t, "primary-ref", res.ExternalRef)
	assert.Equal(t, int64(1), primary.calls.Load())
	assert.Equal(t, int64(0), secondary.calls.Load())
}

func TestDispatchRetriesNetworkErrorsThenFallsBack(t *testing.T) {
	r, primary, secondary, _ := newTestRouter()
	primary.fail.Store(true)

	kind, res, err := r.Dispatch(context.Background(), cardRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.GatewaySecondary, kind)
	assert.Equal(t, "secondary-ref", res.ExternalRef)
	assert.Equal(t, int64(2), primary.calls.Load(), "initial call plus one retry")
	assert.Equal(t, int64(1), secondary.calls.Load())
}

func TestDispatchOpensBreakerAfterThreshold(t *testing.T) {
	r, primary, _, _ := newTestRouter()
	primary.fail.Store(true)
	ctx := context.Background()

	// two consecutive failed dispatches trip the breaker
	for i := 0; i < 2; i++ {
		kind, _, err := r.Dispatch(ctx, cardRequest())
		require.NoError(t, err)
		assert.Equal(t, domain.GatewaySecondary, kind)
	}

	callsBefore := primary.calls.Load()
	kind, _, err := r.Dispatch(ctx, cardRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.GatewaySecondary, kind)
	assert.Equal(t, callsBefore, primary.calls.Load(), "open breaker sheds primary traffic")
}

func TestDispatchRecoversAfterCooldown(t *testing.T) {
	r, primary, _, _ := newTestRouter()
	primary.fail.Store(true)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := r.Dispatch(ctx, cardRequest())
		require.NoError(t, err)
	}

	primary.fail.Store(false)
	time.Sleep(120 * time.Millisecond) // past the cooldown

	kind, res, err := r.Dispatch(ctx, cardRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPrimary, kind, "half-open probe succeeded")
	assert.Equal(t, "primary-ref", res.ExternalRef)
}

func TestDispatchValidationErrorNoFallback(t *testing.T) {
	r, primary, secondary, _ := newTestRouter()
	primary.fail.Store(true)
	primary.err = fmt.Errorf("%w: amount below floor", domain.ErrValidation)

	kind, _, err := r.Dispatch(context.Background(), cardRequest())
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.GatewayPrimary, kind)
	assert.Equal(t, int64(1), primary.calls.Load(), "no retry for caller mistakes")
	assert.Equal(t, int64(0), secondary.calls.Load(), "no fallback either")
}

func TestDispatchAllGatewaysDown(t *testing.T) {
	r, primary, secondary, _ := newTestRouter()
	primary.fail.Store(true)
	secondary.fail.Store(true)

	_, _, err := r.Dispatch(context.Background(), cardRequest())
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Positive(t, primary.calls.Load())
	assert.Positive(t, secondary.calls.Load())
}

func TestDispatchCashBypassesBreaker(t *testing.T) {
	r, primary, _, cashnet := newTestRouter()
	primary.fail.Store(true)

	req := cardRequest()
	req.Method = domain.MethodCash
	kind, res, err := r.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayCashNet, kind)
	assert.Equal(t, "cashnet-ref", res.ExternalRef)
	assert.Equal(t, int64(0), primary.calls.Load())
	assert.Equal(t, int64(1), cashnet.calls.Load())
}

func TestByNameExhaustive(t *testing.T) {
	r, _, _, _ := newTestRouter()
	for _, kind := range []domain.GatewayKind{domain.GatewayPrimary, domain.GatewaySecondary, domain.GatewayCashNet} {
		gw, ok := r.ByName(kind)
		require.True(t, ok)
		assert.Equal(t, kind, gw.Name())
	}
	_, ok := r.ByName("carrier-pigeon")
	assert.False(t, ok)
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aq2208/payflow/configs"
	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

// Router selects a gateway per payment attempt. A circuit breaker guards the
// primary processor: after the configured run of consecutive failures it opens
// and card/bank traffic routes to the secondary; after the cooldown a single
// half-open probe decides whether the primary is back. Cash payments bypass
// the breaker entirely (only the cash network can serve them). Breaker state
// lives in this value, constructed at startup; a restart resets it to closed.
type Router struct {
	primary   usecase.Gateway
	secondary usecase.Gateway
	cashnet   usecase.Gateway

	cb         *gobreaker.CircuitBreaker
	maxRetries uint64
	baseDelay  time.Duration
	l          *slog.Logger
}

func NewRouter(primary, secondary, cashnet usecase.Gateway, cfg configs.Config, l *slog.Logger) *Router {
	r := &Router{
		primary:    primary,
		secondary:  secondary,
		cashnet:    cashnet,
		maxRetries: cfg.Router.MaxRetries,
		baseDelay:  cfg.Router.RetryBaseDelay,
		l:          l.With("component", "gateway_router"),
	}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "primary-gateway",
		MaxRequests: 1, // one half-open probe
		Timeout:     cfg.Router.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Router.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes are not gateway health signals.
			return err == nil || errors.Is(err, domain.ErrValidation)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.l.Warn("breaker state change", "breaker", name,
				"from", from.String(), "to", to.String())
			breakerState.Set(breakerStateValue(to))
		},
	})
	breakerState.Set(breakerStateValue(gobreaker.StateClosed))
	return r
}

func (r *Router) Dispatch(ctx context.Context, req usecase.InitiateRequest) (domain.GatewayKind, usecase.InitiateResult, error) {
	// Method-specific routing: only the cash network serves cash, so the
	// breaker never sits in that path.
	if req.Method == domain.MethodCash {
		r.l.Info("routing direct to cash network", "order_ref", req.OrderID)
		res, err := r.initiateWithRetry(ctx, r.cashnet, req)
		recordAttempt(domain.GatewayCashNet, res.Status, err)
		return domain.GatewayCashNet, res, err
	}

	res, err := r.throughBreaker(ctx, req)
	recordAttempt(domain.GatewayPrimary, res.Status, err)
	if err == nil {
		r.l.Info("routed via primary", "order_ref", req.OrderID)
		return domain.GatewayPrimary, res, nil
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrAuthentication) {
		// Not transient: no fallback. Credential problems are operational
		// alerts; the order stays in its last known good state.
		return domain.GatewayPrimary, usecase.InitiateResult{}, err
	}

	r.l.Warn("primary unavailable, falling back to secondary",
		"order_ref", req.OrderID, "error", err)
	res, err = r.initiateWithRetry(ctx, r.secondary, req)
	recordAttempt(domain.GatewaySecondary, res.Status, err)
	if err == nil {
		return domain.GatewaySecondary, res, nil
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrAuthentication) {
		return domain.GatewaySecondary, usecase.InitiateResult{}, err
	}
	r.l.Error("all gateways exhausted", "order_ref", req.OrderID, "error", err)
	return domain.GatewaySecondary, usecase.InitiateResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}

func (r *Router) throughBreaker(ctx context.Context, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	out, err := r.cb.Execute(func() (interface{}, error) {
		return r.initiateWithRetry(ctx, r.primary, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return usecase.InitiateResult{}, fmt.Errorf("%w: primary breaker open", domain.ErrNetwork)
		}
		return usecase.InitiateResult{}, err
	}
	return out.(usecase.InitiateResult), nil
}

// initiateWithRetry retries NetworkErrors with exponential backoff up to the
// configured bound. Validation and authentication errors abort immediately.
func (r *Router) initiateWithRetry(ctx context.Context, gw usecase.Gateway, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	var res usecase.InitiateResult
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	op := func() error {
		var err error
		res, err = gw.Initiate(ctx, req)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNetwork) {
			r.l.Debug("retriable gateway failure",
				"gateway", string(gw.Name()), "order_ref", req.OrderID, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxRetries), ctx))
	return res, err
}

func (r *Router) ByName(kind domain.GatewayKind) (usecase.Gateway, bool) {
	switch kind {
	case domain.GatewayPrimary:
		return r.primary, true
	case domain.GatewaySecondary:
		return r.secondary, true
	case domain.GatewayCashNet:
		return r.cashnet, true
	}
	return nil, false
}

// QueryStatus is the reconciliation path; it goes straight to the owning
// adapter, no breaker and no fallback (the reference only exists there).
func (r *Router) QueryStatus(ctx context.Context, kind domain.GatewayKind, externalRef string) (domain.AttemptStatus, error) {
	gw, ok := r.ByName(kind)
	if !ok {
		return "", fmt.Errorf("%w: unknown gateway %q", domain.ErrValidation, kind)
	}
	return gw.QueryStatus(ctx, externalRef)
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

var _ usecase.GatewayRouter = (*Router)(nil)

package domain

import "errors"

// The closed error taxonomy of the payment core. Adapters and gateways wrap
// these with context; callers classify with errors.Is and never see raw
// transport errors.
var (
	// ErrValidation marks malformed caller input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNetwork marks a transient transport failure against a gateway.
	// Retried with backoff, then escalated to the fallback gateway.
	ErrNetwork = errors.New("network error")

	// ErrAuthentication marks a gateway credential rejection. Never retried
	// and never falls back; the order stays in its last known good state.
	ErrAuthentication = errors.New("authentication error")

	// ErrInvalidTransition is the normal outcome of a guarded state-machine
	// transition losing a race or being requested out of order. Low severity.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrDuplicateWebhook is the expected outcome of at-least-once delivery.
	// Audit only, not an operational fault.
	ErrDuplicateWebhook = errors.New("duplicate webhook")

	// ErrSettlementExists is the idempotency guard on settlement; treated as
	// success by callers.
	ErrSettlementExists = errors.New("settlement already exists")

	// ErrVersionConflict means the optimistic version check lost; the caller
	// reloads and re-decides.
	ErrVersionConflict = errors.New("order version conflict")

	// ErrGatewayUnavailable is surfaced only after every fallback gateway has
	// been exhausted.
	ErrGatewayUnavailable = errors.New("payment gateways unavailable")

	ErrNotFound = errors.New("not found")
)

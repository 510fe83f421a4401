package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/payflow/internal/entity"
)

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// ApplyTransition persists o's status and timestamps with an optimistic
	// version check (WHERE version = o.Version). On success o.Version is
	// incremented; on a lost race it returns domain.ErrVersionConflict.
	ApplyTransition(ctx context.Context, o *domain.Order) error
	// ListStaleByStatus returns orders sitting in the given status whose last
	// update is older than cutoff, for the reconciliation sweep.
	ListStaleByStatus(ctx context.Context, status domain.OrderStatus, cutoff time.Time, limit int) ([]*domain.Order, error)
}

type AttemptRepo interface {
	Create(ctx context.Context, a *domain.PaymentAttempt) error
	GetActiveByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)
	// GetLatestByOrder returns the newest attempt for the order regardless of
	// finality, so an already-resolved attempt can still drive a stuck order.
	GetLatestByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)
	GetApprovedByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)
	GetByExternalRef(ctx context.Context, gw domain.GatewayKind, ref string) (*domain.PaymentAttempt, error)
	// UpdateStatusIf performs a guarded status move; false means the attempt
	// was not in fromStatus (someone else already resolved it).
	UpdateStatusIf(ctx context.Context, id string, from, to domain.AttemptStatus) (bool, error)
}

type WebhookRepo interface {
	// Insert persists the event; a unique-key conflict on (gateway, event id)
	// yields domain.ErrDuplicateWebhook. This is the exactly-once primitive.
	Insert(ctx context.Context, ev *domain.WebhookEvent) error
}

type SplitRepo interface {
	// CreateAll inserts every split in one transaction; a unique-key conflict
	// on (order, seller, entry) yields domain.ErrSettlementExists.
	CreateAll(ctx context.Context, splits []domain.CommissionSplit) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.CommissionSplit, error)
}

// IdempotencyStore is the fast-path duplicate filter in front of the durable
// unique-key insert. Best effort: a miss here never admits a duplicate, the
// database does the authoritative check.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// OrderLocker is the per-key serialization point: webhook processing and
// reconciliation for the same payment hold this lock across their
// read-decide-write window.
type OrderLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

type EventPublisher interface {
	PublishSettlementRequested(ctx context.Context, msg SettlementRequestedMsg) error
	PublishSettlementRecorded(ctx context.Context, msg SettlementRecordedMsg) error
}

type InitiateRequest struct {
	OrderID  string
	Amount   domain.Money
	Method   domain.PaymentMethod
	BankCode string
}

type InitiateResult struct {
	ExternalRef string
	Status      domain.AttemptStatus
}

// Gateway is the adapter contract every payment provider variant implements.
type Gateway interface {
	Name() domain.GatewayKind
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	QueryStatus(ctx context.Context, externalRef string) (domain.AttemptStatus, error)
	// VerifySignature returns false, never an error, on malformed input.
	VerifySignature(payload []byte, signature string) bool
	// ParseWebhook extracts the normalized notice from the gateway's own wire
	// format. Malformed payloads come back as domain.ErrValidation.
	ParseWebhook(payload []byte) (domain.WebhookNotice, error)
}

// GatewayRouter selects a gateway per attempt, applying circuit-breaker,
// retry and fallback policy.
type GatewayRouter interface {
	Dispatch(ctx context.Context, req InitiateRequest) (domain.GatewayKind, InitiateResult, error)
	ByName(kind domain.GatewayKind) (Gateway, bool)
	QueryStatus(ctx context.Context, kind domain.GatewayKind, externalRef string) (domain.AttemptStatus, error)
}

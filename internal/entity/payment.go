package domain

import "time"

// GatewayKind is a closed set of payment gateway variants. Adding a gateway is
// a new constant plus one new adapter; the router matches exhaustively.
type GatewayKind string

const (
	GatewayPrimary   GatewayKind = "primary"
	GatewaySecondary GatewayKind = "secondary"
	GatewayCashNet   GatewayKind = "cashnet"
)

func ParseGatewayKind(s string) (GatewayKind, bool) {
	switch GatewayKind(s) {
	case GatewayPrimary, GatewaySecondary, GatewayCashNet:
		return GatewayKind(s), true
	}
	return "", false
}

type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodBank PaymentMethod = "bank"
	MethodCash PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodCard, MethodBank, MethodCash:
		return PaymentMethod(s), true
	}
	return "", false
}

type AttemptStatus string

const (
	AttemptInitiated AttemptStatus = "INITIATED"
	AttemptPending   AttemptStatus = "PENDING"
	AttemptApproved  AttemptStatus = "APPROVED"
	AttemptDeclined  AttemptStatus = "DECLINED"
	AttemptErrored   AttemptStatus = "ERRORED"
)

func (s AttemptStatus) Final() bool {
	switch s {
	case AttemptApproved, AttemptDeclined, AttemptErrored:
		return true
	}
	return false
}

// PaymentAttempt is one dispatch to a gateway for an order. Retries and
// fallbacks create new attempts; at most one per order ever reaches APPROVED.
type PaymentAttempt struct {
	ID          string
	OrderID     string
	Gateway     GatewayKind
	ExternalRef string
	Status      AttemptStatus
	Amount      Money
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

package domain

import "time"

type WebhookOutcome string

const (
	WebhookAccepted           WebhookOutcome = "ACCEPTED"
	WebhookDuplicate          WebhookOutcome = "DUPLICATE"
	WebhookInvalidSignature   WebhookOutcome = "REJECTED_INVALID_SIGNATURE"
	WebhookUnknownTransaction WebhookOutcome = "REJECTED_UNKNOWN_TRANSACTION"
)

// WebhookEvent is the audit record of a received gateway notification. The
// (gateway, event id) pair is unique: the insert into that unique key is the
// serialization primitive that makes duplicate detection race-free. Rows are
// written once and never updated.
type WebhookEvent struct {
	EventID       string
	Gateway       GatewayKind
	ExternalRef   string
	ClaimedStatus AttemptStatus
	Signature     string
	Payload       string
	Outcome       WebhookOutcome
	ReceivedAt    time.Time
}

// WebhookNotice is the normalized content a gateway adapter extracts from its
// own wire format before the processor runs the idempotency algorithm.
type WebhookNotice struct {
	EventID     string
	ExternalRef string
	Status      AttemptStatus
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domain "github.com/aq2208/payflow/internal/entity"
)

type ProcessWebhookInput struct {
	Gateway   domain.GatewayKind
	Payload   []byte
	Signature string
}

// ProcessWebhook deduplicates and serializes inbound gateway notifications
// before they may drive the order state machine. Dedupe order matters: the
// Redis recall is a fast path only; the authoritative duplicate check is the
// unique-key insert into the webhook store.
type ProcessWebhook struct {
	router   GatewayRouter
	webhooks WebhookRepo
	attempts AttemptRepo
	resolver *AttemptResolver
	idem     IdempotencyStore
	locker   OrderLocker
	l        *slog.Logger
}

func NewProcessWebhook(router GatewayRouter, webhooks WebhookRepo, attempts AttemptRepo, resolver *AttemptResolver, idem IdempotencyStore, locker OrderLocker, l *slog.Logger) *ProcessWebhook {
	return &ProcessWebhook{
		router:   router,
		webhooks: webhooks,
		attempts: attempts,
		resolver: resolver,
		idem:     idem,
		locker:   locker,
		l:        l,
	}
}

func (uc *ProcessWebhook) Execute(ctx context.Context, in ProcessWebhookInput) (domain.WebhookOutcome, error) {
	gw, ok := uc.router.ByName(in.Gateway)
	if !ok {
		return "", fmt.Errorf("%w: unknown gateway %q", domain.ErrValidation, in.Gateway)
	}

	notice, perr := gw.ParseWebhook(in.Payload)
	if perr != nil {
		// Unparseable payloads cannot be authenticated; record and reject.
		uc.l.Warn("unparseable webhook payload", "gateway", string(in.Gateway), "error", perr)
		return uc.record(ctx, &domain.WebhookEvent{
			EventID:    "unparsed-" + uuid.NewString(),
			Gateway:    in.Gateway,
			Signature:  in.Signature,
			Payload:    string(in.Payload),
			Outcome:    domain.WebhookInvalidSignature,
			ReceivedAt: time.Now(),
		})
	}

	// Fast path: already seen this event id.
	if _, seen, _ := uc.idem.Recall(ctx, string(in.Gateway), notice.EventID); seen {
		uc.l.Debug("duplicate webhook (cache)", "gateway", string(in.Gateway), "event_id", notice.EventID)
		return domain.WebhookDuplicate, nil
	}

	ev := &domain.WebhookEvent{
		EventID:       notice.EventID,
		Gateway:       in.Gateway,
		ExternalRef:   notice.ExternalRef,
		ClaimedStatus: notice.Status,
		Signature:     in.Signature,
		Payload:       string(in.Payload),
		ReceivedAt:    time.Now(),
	}

	if !gw.VerifySignature(in.Payload, in.Signature) {
		uc.l.Warn("webhook signature rejected",
			"gateway", string(in.Gateway), "event_id", notice.EventID, "external_ref", notice.ExternalRef)
		ev.Outcome = domain.WebhookInvalidSignature
		return uc.record(ctx, ev)
	}

	// Serialize everything for this payment: two webhooks for the same
	// transaction must not both pass the checks below on stale reads.
	unlock, err := uc.locker.Lock(ctx, "payment:"+string(in.Gateway)+":"+notice.ExternalRef)
	if err != nil {
		return "", fmt.Errorf("lock payment %s/%s: %w", in.Gateway, notice.ExternalRef, err)
	}
	defer unlock()

	at, err := uc.attempts.GetByExternalRef(ctx, in.Gateway, notice.ExternalRef)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		uc.l.Warn("webhook references unknown transaction",
			"gateway", string(in.Gateway), "event_id", notice.EventID, "external_ref", notice.ExternalRef)
		ev.Outcome = domain.WebhookUnknownTransaction
		return uc.record(ctx, ev)
	case err != nil:
		return "", err
	}

	// Durable dedupe point: the unique (gateway, event id) insert. Commit the
	// outcome before any side effects so a crash never replays them.
	ev.Outcome = domain.WebhookAccepted
	outcome, err := uc.record(ctx, ev)
	if err != nil || outcome == domain.WebhookDuplicate {
		return outcome, err
	}

	if _, err := uc.resolver.Resolve(ctx, at, notice.Status); err != nil {
		// The event row is already durable; reconciliation re-derives the
		// transition from gateway ground truth, so this is not replayed here.
		uc.l.Error("webhook accepted but resolution failed",
			"gateway", string(in.Gateway), "event_id", notice.EventID, "error", err)
	}
	return domain.WebhookAccepted, nil
}

// record persists the event row, mapping the unique-key conflict to the
// DUPLICATE outcome, and refreshes the fast-path cache.
func (uc *ProcessWebhook) record(ctx context.Context, ev *domain.WebhookEvent) (domain.WebhookOutcome, error) {
	if err := uc.webhooks.Insert(ctx, ev); err != nil {
		if errors.Is(err, domain.ErrDuplicateWebhook) {
			_ = uc.idem.Remember(ctx, string(ev.Gateway), ev.EventID, string(domain.WebhookDuplicate))
			return domain.WebhookDuplicate, nil
		}
		return "", fmt.Errorf("persist webhook event: %w", err)
	}
	_ = uc.idem.Remember(ctx, string(ev.Gateway), ev.EventID, string(ev.Outcome))
	return ev.Outcome, nil
}

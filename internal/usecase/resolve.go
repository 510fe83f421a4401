package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domain "github.com/aq2208/payflow/internal/entity"
)

// AttemptResolver drives the order state machine from a gateway-reported
// attempt outcome. It is shared by the webhook processor and the
// reconciliation sweep so both paths apply identical guards. Callers hold the
// per-order lock.
type AttemptResolver struct {
	orders   OrderRepo
	attempts AttemptRepo
	pub      EventPublisher
	cache    OrderCache
	l        *slog.Logger
}

func NewAttemptResolver(orders OrderRepo, attempts AttemptRepo, pub EventPublisher, cache OrderCache, l *slog.Logger) *AttemptResolver {
	return &AttemptResolver{orders: orders, attempts: attempts, pub: pub, cache: cache, l: l}
}

// Resolve moves the attempt to the reported status and the order to
// CONFIRMED/DECLINED accordingly. A guard rejection is an expected outcome
// under concurrent delivery, reported as applied=false, not an error.
func (r *AttemptResolver) Resolve(ctx context.Context, at *domain.PaymentAttempt, reported domain.AttemptStatus) (applied bool, err error) {
	var target domain.OrderStatus
	switch reported {
	case domain.AttemptApproved:
		target = domain.StatusConfirmed
	case domain.AttemptDeclined, domain.AttemptErrored:
		target = domain.StatusDeclined
	case domain.AttemptPending, domain.AttemptInitiated:
		return false, nil // nothing to resolve yet
	default:
		return false, fmt.Errorf("%w: unknown attempt status %q", domain.ErrValidation, reported)
	}

	// Guarded move: only one resolution ever wins, so at most one attempt per
	// order reaches APPROVED.
	moved, err := r.attempts.UpdateStatusIf(ctx, at.ID, domain.AttemptPending, reported)
	if err != nil {
		return false, fmt.Errorf("update attempt %s: %w", at.ID, err)
	}
	if !moved {
		if moved, err = r.attempts.UpdateStatusIf(ctx, at.ID, domain.AttemptInitiated, reported); err != nil {
			return false, fmt.Errorf("update attempt %s: %w", at.ID, err)
		}
	}
	if !moved {
		// The attempt may already carry the reported status from a run that
		// died before the order moved. Re-read and keep going when the stored
		// status matches; the order transition below is guarded either way.
		cur, err := r.attempts.GetByExternalRef(ctx, at.Gateway, at.ExternalRef)
		if err != nil {
			return false, err
		}
		if cur.Status != reported {
			r.l.Debug("attempt already resolved", "attempt_id", at.ID, "reported", string(reported))
			return false, nil
		}
	}

	o, err := r.orders.GetByID(ctx, at.OrderID)
	if err != nil {
		return false, err
	}
	if err := o.Transition(target); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			r.l.Debug("resolution lost the transition race",
				"order_id", o.ID, "status", string(o.Status), "target", string(target))
			return false, nil
		}
		return false, err
	}
	if err := r.orders.ApplyTransition(ctx, o); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			r.l.Debug("resolution lost the version race", "order_id", o.ID)
			return false, nil
		}
		return false, err
	}
	_ = r.cache.SetStatus(ctx, o.ID, string(o.Status))

	r.l.Info("payment attempt resolved",
		"order_id", o.ID, "attempt_id", at.ID,
		"gateway", string(at.Gateway), "status", string(reported))

	if reported == domain.AttemptApproved {
		// Settlement runs on the queue consumer and is retried until it
		// succeeds; a confirmed order is never rolled back by a settle failure.
		if err := r.pub.PublishSettlementRequested(ctx, SettlementRequestedMsg{OrderID: o.ID}); err != nil {
			r.l.Error("failed to enqueue settlement; reconciliation will retry",
				"order_id", o.ID, "error", err)
		}
	}
	return true, nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domain "github.com/aq2208/payflow/internal/entity"
)

// ReconcilePending is the self-healing sweep. It resolves orders stuck in
// AWAITING_CONFIRMATION past the confirmation timeout, from the attempt's own
// final status when one is already recorded, otherwise by querying the gateway
// directly. It also re-enqueues settlement for confirmed orders that have no
// split rows, which closes the window where the process died (or the broker
// publish failed) between the confirm commit and the settlement publish. The
// state machine always resolves on recorded or gateway ground truth: a client
// abandoning its HTTP call never drives a transition.
type ReconcilePending struct {
	orders   OrderRepo
	attempts AttemptRepo
	splits   SplitRepo
	router   GatewayRouter
	resolver *AttemptResolver
	locker   OrderLocker
	pub      EventPublisher

	confirmTimeout time.Duration
	batchSize      int
	l              *slog.Logger
}

func NewReconcilePending(orders OrderRepo, attempts AttemptRepo, splits SplitRepo, router GatewayRouter, resolver *AttemptResolver, locker OrderLocker, pub EventPublisher, confirmTimeout time.Duration, batchSize int, l *slog.Logger) *ReconcilePending {
	return &ReconcilePending{
		orders:         orders,
		attempts:       attempts,
		splits:         splits,
		router:         router,
		resolver:       resolver,
		locker:         locker,
		pub:            pub,
		confirmTimeout: confirmTimeout,
		batchSize:      batchSize,
		l:              l,
	}
}

// Execute runs one sweep and returns how many orders it acted on.
func (uc *ReconcilePending) Execute(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-uc.confirmTimeout)

	resolved, err := uc.sweepAwaiting(ctx, cutoff)
	if err != nil {
		return resolved, err
	}
	reenqueued, err := uc.sweepUnsettled(ctx, cutoff)
	return resolved + reenqueued, err
}

func (uc *ReconcilePending) sweepAwaiting(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := uc.orders.ListStaleByStatus(ctx, domain.StatusAwaiting, cutoff, uc.batchSize)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		ok, err := uc.reconcileOne(ctx, o)
		if err != nil {
			uc.l.Warn("reconcile failed for order", "order_id", o.ID, "error", err)
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

// sweepUnsettled re-requests settlement for confirmed orders with no split
// rows. The consumer's Settle is idempotent, so re-enqueueing an order whose
// settlement is merely in flight is harmless.
func (uc *ReconcilePending) sweepUnsettled(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := uc.orders.ListStaleByStatus(ctx, domain.StatusConfirmed, cutoff, uc.batchSize)
	if err != nil {
		return 0, err
	}
	reenqueued := 0
	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			return reenqueued, err
		}
		splits, err := uc.splits.ListByOrder(ctx, o.ID)
		if err != nil {
			uc.l.Warn("settlement check failed for order", "order_id", o.ID, "error", err)
			continue
		}
		if len(splits) > 0 {
			continue
		}
		if err := uc.pub.PublishSettlementRequested(ctx, SettlementRequestedMsg{OrderID: o.ID}); err != nil {
			uc.l.Warn("settlement re-enqueue failed", "order_id", o.ID, "error", err)
			continue
		}
		uc.l.Info("settlement re-enqueued for confirmed order", "order_id", o.ID)
		reenqueued++
	}
	return reenqueued, nil
}

func (uc *ReconcilePending) reconcileOne(ctx context.Context, o *domain.Order) (bool, error) {
	at, err := uc.attempts.GetLatestByOrder(ctx, o.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Awaiting with no attempt at all: dispatch failed after the
			// transition. Nothing to query; leave it for operator attention.
			uc.l.Warn("awaiting order has no attempt", "order_id", o.ID)
			return false, nil
		}
		return false, err
	}

	// A final attempt whose order never moved (crash between the attempt
	// update and the order transition) is resolved from the stored status;
	// only genuinely unresolved attempts hit the gateway.
	status := at.Status
	if !status.Final() {
		status, err = uc.router.QueryStatus(ctx, at.Gateway, at.ExternalRef)
		if err != nil {
			return false, err
		}
		if !status.Final() {
			return false, nil // still genuinely pending at the gateway
		}
	}

	unlock, err := uc.locker.Lock(ctx, "payment:"+string(at.Gateway)+":"+at.ExternalRef)
	if err != nil {
		return false, err
	}
	defer unlock()

	applied, err := uc.resolver.Resolve(ctx, at, status)
	if err != nil {
		return false, err
	}
	if applied {
		uc.l.Info("order reconciled",
			"order_id", o.ID, "gateway", string(at.Gateway), "status", string(status))
	}
	return applied, nil
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aq2208/payflow/internal/usecase"
)

// Reconciler periodically sweeps orders stuck waiting for a payment
// confirmation and resolves them against gateway ground truth.
type Reconciler struct {
	sweep    *usecase.ReconcilePending
	interval time.Duration
	l        *slog.Logger
}

func NewReconciler(sweep *usecase.ReconcilePending, interval time.Duration, l *slog.Logger) *Reconciler {
	return &Reconciler{sweep: sweep, interval: interval, l: l}
}

// Run blocks until ctx is cancelled. One sweep runs immediately on start so a
// restart does not wait a full interval to pick up stragglers.
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.l.Info("reconciler stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	n, err := r.sweep.Execute(ctx)
	if err != nil {
		r.l.Error("reconciliation sweep failed", "resolved", n, "err", err)
		return
	}
	if n > 0 {
		r.l.Info("reconciliation sweep done", "resolved", n)
	}
}

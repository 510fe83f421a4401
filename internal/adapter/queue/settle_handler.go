package queue

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

// NewSettleHandler builds the consumer side of the settlement pipeline.
// A returned error is nacked and requeued by the Router; both Settle and
// Reverse are idempotent on the split unique key, so redelivery is safe.
func NewSettleHandler(settle *usecase.SettleOrder, log *slog.Logger) Handler {
	return JSONHandler[usecase.SettlementRequestedMsg]{
		HandleFunc: func(ctx context.Context, msg usecase.SettlementRequestedMsg) error {
			var err error
			if msg.Reverse {
				err = settle.Reverse(ctx, msg.OrderID)
			} else {
				err = settle.Settle(ctx, msg.OrderID)
			}
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
				// Retrying cannot fix a bad message. Drop it and leave a trace.
				log.Error("settlement request rejected",
					"order_id", msg.OrderID, "reverse", msg.Reverse, "err", err)
				return nil
			}
			return err
		},
	}
}

package kafka

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

// NewFulfillmentHandler feeds fulfillment actions from the order-management
// topic into the use case. Domain rejections are final for a given message
// (redelivering an invalid transition never makes it valid), so they are
// consumed rather than retried.
func NewFulfillmentHandler(fulfill *usecase.FulfillOrder, log *slog.Logger) HandlerFunc {
	return func(ctx context.Context, ev usecase.FulfillmentMsg) error {
		err := fulfill.Execute(ctx, usecase.FulfillOrderInput{
			OrderID:         ev.OrderID,
			Action:          ev.Action,
			ExpectedVersion: ev.ExpectedVersion,
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrInvalidTransition),
			errors.Is(err, domain.ErrVersionConflict),
			errors.Is(err, domain.ErrNotFound):
			log.Warn("fulfillment action dropped",
				"order_id", ev.OrderID, "action", ev.Action, "err", err)
			return nil
		default:
			return err
		}
	}
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/aq2208/payflow/internal/entity"
)

type FulfillmentAction string

const (
	ActionProcess FulfillmentAction = "process"
	ActionShip    FulfillmentAction = "ship"
	ActionDeliver FulfillmentAction = "deliver"
	ActionCancel  FulfillmentAction = "cancel"
	ActionRefund  FulfillmentAction = "refund"
)

var actionTargets = map[FulfillmentAction]domain.OrderStatus{
	ActionProcess: domain.StatusProcessing,
	ActionShip:    domain.StatusShipped,
	ActionDeliver: domain.StatusDelivered,
	ActionCancel:  domain.StatusCancelled,
	ActionRefund:  domain.StatusRefunded,
}

type FulfillOrderInput struct {
	OrderID         string
	Action          string
	ExpectedVersion int64
}

// FulfillOrder applies fulfillment actions from the order-management
// collaborator: forward-only ship/deliver moves, pre-shipment cancellation,
// and refunds (which compensate the settlement). Payment events never travel
// through here.
type FulfillOrder struct {
	orders OrderRepo
	locker OrderLocker
	settle *SettleOrder
	pub    EventPublisher
	cache  OrderCache
	l      *slog.Logger
}

func NewFulfillOrder(orders OrderRepo, locker OrderLocker, settle *SettleOrder, pub EventPublisher, cache OrderCache, l *slog.Logger) *FulfillOrder {
	return &FulfillOrder{orders: orders, locker: locker, settle: settle, pub: pub, cache: cache, l: l}
}

func (uc *FulfillOrder) Execute(ctx context.Context, in FulfillOrderInput) error {
	target, ok := actionTargets[FulfillmentAction(in.Action)]
	if !ok {
		return fmt.Errorf("%w: unknown fulfillment action %q", domain.ErrValidation, in.Action)
	}

	unlock, err := uc.locker.Lock(ctx, "order:"+in.OrderID)
	if err != nil {
		return fmt.Errorf("lock order %s: %w", in.OrderID, err)
	}
	defer unlock()

	o, err := uc.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return err
	}
	if o.Version != in.ExpectedVersion {
		return fmt.Errorf("%w: order %s is at version %d, caller expected %d",
			domain.ErrVersionConflict, o.ID, o.Version, in.ExpectedVersion)
	}
	if err := o.Transition(target); err != nil {
		uc.l.Debug("fulfillment action rejected",
			"order_id", o.ID, "action", in.Action, "status", string(o.Status))
		return err
	}
	if err := uc.orders.ApplyTransition(ctx, o); err != nil {
		return err
	}
	_ = uc.cache.SetStatus(ctx, o.ID, string(o.Status))

	uc.l.Info("fulfillment action applied",
		"order_id", o.ID, "action", in.Action, "status", string(o.Status), "version", o.Version)

	if target == domain.StatusRefunded {
		// Compensating splits; retried via the settlement queue if this
		// synchronous pass fails.
		if err := uc.settle.Reverse(ctx, o.ID); err != nil {
			uc.l.Error("refund recorded but reversal failed; enqueueing retry",
				"order_id", o.ID, "error", err)
			if perr := uc.pub.PublishSettlementRequested(ctx, SettlementRequestedMsg{OrderID: o.ID, Reverse: true}); perr != nil {
				uc.l.Error("failed to enqueue reversal retry", "order_id", o.ID, "error", perr)
			}
		}
	}
	return nil
}

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

type PayOrderInput struct {
	OrderID  string
	Method   string
	BankCode string
}

type PayOrderOutput struct {
	AttemptID     string
	AttemptStatus domain.AttemptStatus
	ExternalRef   string
	Gateway       domain.GatewayKind
}

// PayOrder dispatches one payment attempt for an order through the gateway
// router and moves the order to AWAITING_CONFIRMATION.
type PayOrder struct {
	orders   OrderRepo
	attempts AttemptRepo
	router   GatewayRouter
	locker   OrderLocker
	cache    OrderCache
	l        *slog.Logger
}

func NewPayOrder(orders OrderRepo, attempts AttemptRepo, router GatewayRouter, locker OrderLocker, cache OrderCache, l *slog.Logger) *PayOrder {
	return &PayOrder{orders: orders, attempts: attempts, router: router, locker: locker, cache: cache, l: l}
}

func (uc *PayOrder) Execute(ctx context.Context, in PayOrderInput) (PayOrderOutput, error) {
	method, ok := domain.ParsePaymentMethod(in.Method)
	if !ok {
		return PayOrderOutput{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, in.Method)
	}

	unlock, err := uc.locker.Lock(ctx, "order:"+in.OrderID)
	if err != nil {
		return PayOrderOutput{}, fmt.Errorf("lock order %s: %w", in.OrderID, err)
	}
	defer unlock()

	o, err := uc.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return PayOrderOutput{}, err
	}
	if o.Status != domain.StatusPending {
		return PayOrderOutput{}, fmt.Errorf("%w: order %s is %s, not payable", domain.ErrInvalidTransition, o.ID, o.Status)
	}
	if !o.Total.IsPositive() {
		return PayOrderOutput{}, fmt.Errorf("%w: order total must be positive", domain.ErrValidation)
	}

	gw, res, err := uc.router.Dispatch(ctx, InitiateRequest{
		OrderID:  o.ID,
		Amount:   o.Total,
		Method:   method,
		BankCode: in.BankCode,
	})
	if err != nil {
		uc.l.Warn("payment dispatch failed",
			"order_id", o.ID, "method", in.Method, "error", err)
		return PayOrderOutput{}, err
	}

	at := &domain.PaymentAttempt{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Gateway:     gw,
		ExternalRef: res.ExternalRef,
		Status:      res.Status,
		Amount:      o.Total,
		CreatedAt:   time.Now(),
	}
	if err := uc.attempts.Create(ctx, at); err != nil {
		return PayOrderOutput{}, fmt.Errorf("persist attempt: %w", err)
	}

	if err := o.Transition(domain.StatusAwaiting); err != nil {
		return PayOrderOutput{}, err
	}
	if err := uc.orders.ApplyTransition(ctx, o); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// The attempt is already dispatched; the webhook or the
			// reconciliation sweep resolves it against gateway ground truth.
			uc.l.Warn("pay lost version race after dispatch", "order_id", o.ID)
		}
		return PayOrderOutput{}, err
	}
	_ = uc.cache.SetStatus(ctx, o.ID, string(o.Status))

	uc.l.Info("payment attempt dispatched",
		"order_id", o.ID, "attempt_id", at.ID, "gateway", string(gw),
		"external_ref", res.ExternalRef, "status", string(res.Status))

	return PayOrderOutput{
		AttemptID:     at.ID,
		AttemptStatus: res.Status,
		ExternalRef:   res.ExternalRef,
		Gateway:       gw,
	}, nil
}

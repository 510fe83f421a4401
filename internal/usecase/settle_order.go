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

// SettleOrder computes each seller's payable share and the platform fee at the
// moment of settlement. It is a pure function of immutable inputs (the
// approved order and its line items), hence safely retried by the queue
// consumer until it succeeds.
type SettleOrder struct {
	orders      OrderRepo
	attempts    AttemptRepo
	splits      SplitRepo
	pub         EventPublisher
	feePermille int64
	l           *slog.Logger
}

func NewSettleOrder(orders OrderRepo, attempts AttemptRepo, splits SplitRepo, pub EventPublisher, feePermille int64, l *slog.Logger) *SettleOrder {
	return &SettleOrder{orders: orders, attempts: attempts, splits: splits, pub: pub, feePermille: feePermille, l: l}
}

// Settle creates one CommissionSplit per seller. The sum of payables plus fees
// equals the settled total exactly; the unique (order, seller, entry) key makes
// the create-once precondition atomic with creation.
func (uc *SettleOrder) Settle(ctx context.Context, orderID string) error {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if _, err := uc.attempts.GetApprovedByOrder(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: order %s has no approved attempt", domain.ErrValidation, orderID)
		}
		return err
	}

	sellers, err := o.SellerGross()
	if err != nil {
		return err
	}
	now := time.Now()
	splits := make([]domain.CommissionSplit, 0, len(sellers))
	for _, s := range sellers {
		// Fee vs payable via Money.Split so no minor unit is ever created or
		// destroyed, even when the fee percentage does not divide evenly.
		parts, err := s.Gross.Split(uc.feePermille, 1000-uc.feePermille)
		if err != nil {
			return fmt.Errorf("split seller %s gross: %w", s.SellerID, err)
		}
		splits = append(splits, domain.CommissionSplit{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			SellerID:    s.SellerID,
			Entry:       domain.SplitSettlement,
			Gross:       s.Gross,
			PlatformFee: parts[0],
			Payable:     parts[1],
			CreatedAt:   now,
		})
	}
	// Splits carry the goods subtotal only. Tax, shipping and the discount
	// are platform-side amounts and never enter the seller ledger.
	if err := domain.CheckSplitSum(splits, o.Subtotal); err != nil {
		return fmt.Errorf("settlement invariant broken for order %s: %w", o.ID, err)
	}

	if err := uc.splits.CreateAll(ctx, splits); err != nil {
		if errors.Is(err, domain.ErrSettlementExists) {
			uc.l.Info("settlement already recorded", "order_id", o.ID)
			return nil
		}
		return fmt.Errorf("persist splits: %w", err)
	}

	uc.l.Info("order settled",
		"order_id", o.ID, "sellers", len(splits),
		"total", o.Subtotal.Units, "fee_permille", uc.feePermille)
	uc.publishRecorded(ctx, o, splits, domain.SplitSettlement)
	return nil
}

// Reverse emits one negative compensating split per original settlement split.
// Originals are never mutated. Idempotent on the reversal unique key.
func (uc *SettleOrder) Reverse(ctx context.Context, orderID string) error {
	existing, err := uc.splits.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	var originals []domain.CommissionSplit
	for _, s := range existing {
		switch s.Entry {
		case domain.SplitReversal:
			uc.l.Info("reversal already recorded", "order_id", orderID)
			return nil
		case domain.SplitSettlement:
			originals = append(originals, s)
		}
	}
	if len(originals) == 0 {
		// Nothing settled yet; a refund before settlement has nothing to compensate.
		return nil
	}

	now := time.Now()
	reversals := make([]domain.CommissionSplit, 0, len(originals))
	for _, s := range originals {
		r := s.Reversed(uuid.NewString())
		r.CreatedAt = now
		reversals = append(reversals, r)
	}
	if err := uc.splits.CreateAll(ctx, reversals); err != nil {
		if errors.Is(err, domain.ErrSettlementExists) {
			uc.l.Info("reversal already recorded", "order_id", orderID)
			return nil
		}
		return fmt.Errorf("persist reversal splits: %w", err)
	}

	uc.l.Info("settlement reversed", "order_id", orderID, "sellers", len(reversals))
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	uc.publishRecorded(ctx, o, reversals, domain.SplitReversal)
	return nil
}

func (uc *SettleOrder) publishRecorded(ctx context.Context, o *domain.Order, splits []domain.CommissionSplit, entry domain.SplitEntry) {
	ids := make([]string, 0, len(splits))
	var total int64
	for _, s := range splits {
		ids = append(ids, s.ID)
		total += s.Gross.Units
	}
	// Fire and forget: the payout collaborator is idempotent on split ids.
	if err := uc.pub.PublishSettlementRecorded(ctx, SettlementRecordedMsg{
		OrderID:    o.ID,
		Entry:      string(entry),
		Currency:   o.Total.Currency,
		TotalUnits: total,
		SplitIDs:   ids,
	}); err != nil {
		uc.l.Error("failed to publish settlement recorded event", "order_id", o.ID, "error", err)
	}
}

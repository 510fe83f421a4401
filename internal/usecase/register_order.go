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

var ErrDuplicateRequest = errors.New("duplicate idempotency key")

type RegisterOrderLine struct {
	SellerID  string
	ProductID string
	UnitPrice int64
	Quantity  int64
}

type RegisterOrderInput struct {
	BuyerID        string
	IdempotencyKey string
	Currency       string
	Items          []RegisterOrderLine
	TaxUnits       int64
	ShippingUnits  int64
	DiscountUnits  int64
}

type RegisterOrderOutput struct {
	OrderID string
	Status  domain.OrderStatus
	Total   domain.Money
}

// RegisterOrder ingests an order aggregate at the core's boundary: computes
// and verifies the monetary invariant, assigns identifiers, and stores the
// order in PENDING. Duplicate submissions are filtered by caller idempotency
// key.
type RegisterOrder struct {
	orders OrderRepo
	idem   IdempotencyStore
	l      *slog.Logger
}

func NewRegisterOrder(orders OrderRepo, idem IdempotencyStore, l *slog.Logger) *RegisterOrder {
	return &RegisterOrder{orders: orders, idem: idem, l: l}
}

func (uc *RegisterOrder) Execute(ctx context.Context, in RegisterOrderInput) (RegisterOrderOutput, error) {
	if in.BuyerID == "" {
		return RegisterOrderOutput{}, fmt.Errorf("%w: buyer required", domain.ErrValidation)
	}
	if in.IdempotencyKey != "" {
		// Fast path: same submission, same order.
		if id, ok, _ := uc.idem.Recall(ctx, in.BuyerID, in.IdempotencyKey); ok {
			if o, err := uc.orders.GetByID(ctx, id); err == nil {
				return RegisterOrderOutput{OrderID: o.ID, Status: o.Status, Total: o.Total}, nil
			}
		}
		ok, err := uc.idem.TryLock(ctx, in.BuyerID, in.IdempotencyKey)
		if err != nil {
			return RegisterOrderOutput{}, err
		}
		if !ok {
			return RegisterOrderOutput{}, ErrDuplicateRequest
		}
	}

	o, err := buildOrder(in)
	if err != nil {
		return RegisterOrderOutput{}, err
	}
	if err := uc.orders.Create(ctx, o); err != nil {
		return RegisterOrderOutput{}, fmt.Errorf("persist order: %w", err)
	}
	if in.IdempotencyKey != "" {
		_ = uc.idem.Remember(ctx, in.BuyerID, in.IdempotencyKey, o.ID)
	}

	uc.l.Info("order registered",
		"order_id", o.ID, "buyer_id", o.BuyerID, "total", o.Total.Units, "items", len(o.Items))
	return RegisterOrderOutput{OrderID: o.ID, Status: o.Status, Total: o.Total}, nil
}

func buildOrder(in RegisterOrderInput) (*domain.Order, error) {
	subtotal := domain.Money{Currency: in.Currency}
	items := make([]domain.LineItem, 0, len(in.Items))
	for _, li := range in.Items {
		price, err := domain.NewMoney(li.UnitPrice, in.Currency)
		if err != nil {
			return nil, err
		}
		item := domain.LineItem{
			ID:        uuid.NewString(),
			SellerID:  li.SellerID,
			ProductID: li.ProductID,
			UnitPrice: price,
			Quantity:  li.Quantity,
		}
		items = append(items, item)
		if subtotal, err = subtotal.Add(item.Gross()); err != nil {
			return nil, err
		}
	}

	tax := domain.Money{Units: in.TaxUnits, Currency: in.Currency}
	shipping := domain.Money{Units: in.ShippingUnits, Currency: in.Currency}
	discount := domain.Money{Units: in.DiscountUnits, Currency: in.Currency}
	total, err := subtotal.Add(tax)
	if err != nil {
		return nil, err
	}
	if total, err = total.Add(shipping); err != nil {
		return nil, err
	}
	if total, err = total.Sub(discount); err != nil {
		return nil, err
	}

	now := time.Now()
	o := &domain.Order{
		ID:        uuid.NewString(),
		BuyerID:   in.BuyerID,
		Items:     items,
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Discount:  discount,
		Total:     total,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

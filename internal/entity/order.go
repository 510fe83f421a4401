package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusAwaiting   OrderStatus = "AWAITING_CONFIRMATION"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRefunded   OrderStatus = "REFUNDED"
	StatusDeclined   OrderStatus = "DECLINED"
)

// transitions is the guard table of the order lifecycle. Anything not listed
// here is rejected. Cancellation is reachable only pre-shipment; once shipped,
// reversals go through REFUNDED.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusAwaiting, StatusCancelled},
	StatusAwaiting:   {StatusConfirmed, StatusDeclined},
	StatusConfirmed:  {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

// Terminal states accept no transition at all. DELIVERED is not terminal:
// the refund edge stays open after delivery.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusRefunded, StatusDeclined:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is in the guard table.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type LineItem struct {
	ID        string
	SellerID  string
	ProductID string
	UnitPrice Money
	Quantity  int64
}

func (li LineItem) Gross() Money {
	return li.UnitPrice.MulInt(li.Quantity)
}

// Order is the aggregate root. It owns its line items and is never deleted,
// only transitioned; every mutation goes through Transition plus the
// repository's version-checked update.
type Order struct {
	ID       string
	BuyerID  string
	Items    []LineItem
	Subtotal Money
	Tax      Money
	Shipping Money
	Discount Money
	Total    Money
	Status   OrderStatus
	Version  int64

	ConfirmedAt  *time.Time
	ProcessingAt *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the monetary invariant total = subtotal + tax + shipping - discount
// and that the subtotal matches the line items, all integer-exact.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no line items", ErrValidation)
	}
	items := Money{Currency: o.Subtotal.Currency}
	for _, li := range o.Items {
		if li.Quantity <= 0 {
			return fmt.Errorf("%w: line item %s has non-positive quantity", ErrValidation, li.ID)
		}
		if li.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line item %s has negative unit price", ErrValidation, li.ID)
		}
		var err error
		items, err = items.Add(li.Gross())
		if err != nil {
			return err
		}
	}
	if items != o.Subtotal {
		return fmt.Errorf("%w: subtotal %s does not match line items %s", ErrValidation, o.Subtotal, items)
	}
	sum, err := o.Subtotal.Add(o.Tax)
	if err != nil {
		return err
	}
	sum, err = sum.Add(o.Shipping)
	if err != nil {
		return err
	}
	sum, err = sum.Sub(o.Discount)
	if err != nil {
		return err
	}
	if sum != o.Total {
		return fmt.Errorf("%w: total %s does not match computed %s", ErrValidation, o.Total, sum)
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: negative order total", ErrValidation)
	}
	return nil
}

// Transition applies a guarded lifecycle transition in memory. On rejection it
// returns ErrInvalidTransition and mutates nothing. The version bump happens in
// the repository, conditioned on the version this Order was loaded with.
func (o *Order) Transition(to OrderStatus) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is terminal in %s", ErrInvalidTransition, o.ID, o.Status)
	}
	if !o.Status.CanTransition(to) {
		return fmt.Errorf("%w: order %s cannot go %s -> %s", ErrInvalidTransition, o.ID, o.Status, to)
	}
	now := time.Now()
	switch to {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusProcessing:
		o.ProcessingAt = &now
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	case StatusRefunded:
		o.RefundedAt = &now
	}
	o.Status = to
	return nil
}

// SellerGross sums each seller's line item contribution, keyed by seller and
// ordered by first appearance. The ordering matters: it is the tie-break order
// of the largest-remainder split downstream.
func (o *Order) SellerGross() ([]SellerAmount, error) {
	idx := make(map[string]int, len(o.Items))
	var out []SellerAmount
	for _, li := range o.Items {
		g := li.Gross()
		if i, ok := idx[li.SellerID]; ok {
			sum, err := out[i].Gross.Add(g)
			if err != nil {
				return nil, err
			}
			out[i].Gross = sum
			continue
		}
		idx[li.SellerID] = len(out)
		out = append(out, SellerAmount{SellerID: li.SellerID, Gross: g})
	}
	return out, nil
}

type SellerAmount struct {
	SellerID string
	Gross    Money
}

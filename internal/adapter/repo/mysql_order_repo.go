package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO orders
  (id, buyer_id, status, subtotal_units, tax_units, shipping_units, discount_units,
   total_units, currency, version, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,0,NOW(),NOW())`,
		o.ID, o.BuyerID, o.Status, o.Subtotal.Units, o.Tax.Units, o.Shipping.Units,
		o.Discount.Units, o.Total.Units, o.Total.Currency)
	if err != nil {
		return err
	}
	for _, li := range o.Items {
		_, err = tx.ExecContext(ctx, `
INSERT INTO order_items (id, order_id, seller_id, product_id, unit_price_units, quantity)
VALUES (?,?,?,?,?,?)`,
			li.ID, o.ID, li.SellerID, li.ProductID, li.UnitPrice.Units, li.Quantity)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, buyer_id, status, subtotal_units, tax_units, shipping_units, discount_units,
       total_units, currency, version,
       confirmed_at, processing_at, shipped_at, delivered_at, cancelled_at, refunded_at,
       created_at, updated_at
FROM orders WHERE id=?`, id)

	var o domain.Order
	var cur string
	if err := row.Scan(&o.ID, &o.BuyerID, &o.Status,
		&o.Subtotal.Units, &o.Tax.Units, &o.Shipping.Units, &o.Discount.Units,
		&o.Total.Units, &cur, &o.Version,
		&o.ConfirmedAt, &o.ProcessingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.RefundedAt,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	o.Subtotal.Currency, o.Tax.Currency, o.Shipping.Currency = cur, cur, cur
	o.Discount.Currency, o.Total.Currency = cur, cur

	rows, err := r.db.QueryContext(ctx, `
SELECT id, seller_id, product_id, unit_price_units, quantity
FROM order_items WHERE order_id=? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.SellerID, &li.ProductID, &li.UnitPrice.Units, &li.Quantity); err != nil {
			return nil, err
		}
		li.UnitPrice.Currency = cur
		o.Items = append(o.Items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// ApplyTransition is the optimistic-concurrency write: the row is updated only
// if it still carries the version the caller loaded, and the version bumps by
// exactly one per applied transition.
func (r *MySQLOrderRepo) ApplyTransition(ctx context.Context, o *domain.Order) error {
	set := "status=?, version=version+1, updated_at=NOW()"
	args := []any{o.Status}
	if col, at := transitionStamp(o); col != "" {
		set += ", " + col + "=?"
		args = append(args, at)
	}
	args = append(args, o.ID, o.Version)

	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET "+set+" WHERE id=? AND version=?", args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: order %s at version %d", domain.ErrVersionConflict, o.ID, o.Version)
	}
	o.Version++
	return nil
}

func (r *MySQLOrderRepo) ListStaleByStatus(ctx context.Context, status domain.OrderStatus, cutoff time.Time, limit int) ([]*domain.Order, error) {
	// Index on (status, updated_at) serves this sweep.
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM orders
WHERE status=? AND updated_at < ?
ORDER BY updated_at
LIMIT ?`, status, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func transitionStamp(o *domain.Order) (string, *time.Time) {
	switch o.Status {
	case domain.StatusConfirmed:
		return "confirmed_at", o.ConfirmedAt
	case domain.StatusProcessing:
		return "processing_at", o.ProcessingAt
	case domain.StatusShipped:
		return "shipped_at", o.ShippedAt
	case domain.StatusDelivered:
		return "delivered_at", o.DeliveredAt
	case domain.StatusCancelled:
		return "cancelled_at", o.CancelledAt
	case domain.StatusRefunded:
		return "refunded_at", o.RefundedAt
	}
	return "", nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)

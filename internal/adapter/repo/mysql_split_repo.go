package repo

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

type MySQLSplitRepo struct{ db *sql.DB }

func NewMySQLSplitRepo(db *sql.DB) *MySQLSplitRepo { return &MySQLSplitRepo{db: db} }

// CreateAll writes the whole settlement (or reversal) in one transaction. The
// unique key on (order_id, seller_id, entry) makes the created-exactly-once
// precondition atomic with creation: a concurrent second settlement hits the
// conflict, not a stale read.
func (r *MySQLSplitRepo) CreateAll(ctx context.Context, splits []domain.CommissionSplit) error {
	if len(splits) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range splits {
		_, err := tx.ExecContext(ctx, `
INSERT INTO commission_splits
  (id, order_id, seller_id, entry, gross_units, fee_units, payable_units, currency, created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
			s.ID, s.OrderID, s.SellerID, s.Entry,
			s.Gross.Units, s.PlatformFee.Units, s.Payable.Units, s.Gross.Currency, s.CreatedAt)
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: order %s seller %s", domain.ErrSettlementExists, s.OrderID, s.SellerID)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *MySQLSplitRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.CommissionSplit, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, order_id, seller_id, entry, gross_units, fee_units, payable_units, currency, created_at
FROM commission_splits WHERE order_id=? ORDER BY created_at, seller_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CommissionSplit
	for rows.Next() {
		var s domain.CommissionSplit
		var cur string
		if err := rows.Scan(&s.ID, &s.OrderID, &s.SellerID, &s.Entry,
			&s.Gross.Units, &s.PlatformFee.Units, &s.Payable.Units, &cur, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Gross.Currency, s.PlatformFee.Currency, s.Payable.Currency = cur, cur, cur
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ usecase.SplitRepo = (*MySQLSplitRepo)(nil)

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

type MySQLAttemptRepo struct{ db *sql.DB }

func NewMySQLAttemptRepo(db *sql.DB) *MySQLAttemptRepo { return &MySQLAttemptRepo{db: db} }

const attemptCols = `id, order_id, gateway, external_ref, status, amount_units, currency, created_at, updated_at`

func (r *MySQLAttemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_attempts
  (id, order_id, gateway, external_ref, status, amount_units, currency, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,NOW(),NOW())`,
		a.ID, a.OrderID, a.Gateway, a.ExternalRef, a.Status, a.Amount.Units, a.Amount.Currency)
	return err
}

func (r *MySQLAttemptRepo) GetActiveByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	// The active attempt is the newest one that is still unresolved.
	row := r.db.QueryRowContext(ctx, `
SELECT `+attemptCols+` FROM payment_attempts
WHERE order_id=? AND status IN (?,?)
ORDER BY created_at DESC LIMIT 1`,
		orderID, domain.AttemptInitiated, domain.AttemptPending)
	return scanAttempt(row, "active attempt for order "+orderID)
}

func (r *MySQLAttemptRepo) GetLatestByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+attemptCols+` FROM payment_attempts
WHERE order_id=?
ORDER BY created_at DESC LIMIT 1`, orderID)
	return scanAttempt(row, "latest attempt for order "+orderID)
}

func (r *MySQLAttemptRepo) GetApprovedByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+attemptCols+` FROM payment_attempts
WHERE order_id=? AND status=? LIMIT 1`,
		orderID, domain.AttemptApproved)
	return scanAttempt(row, "approved attempt for order "+orderID)
}

func (r *MySQLAttemptRepo) GetByExternalRef(ctx context.Context, gw domain.GatewayKind, ref string) (*domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+attemptCols+` FROM payment_attempts
WHERE gateway=? AND external_ref=?`, gw, ref)
	return scanAttempt(row, fmt.Sprintf("attempt %s/%s", gw, ref))
}

// UpdateStatusIf performs the guarded move: rows==0 means someone else
// resolved the attempt first.
func (r *MySQLAttemptRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.AttemptStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_attempts SET status=?, updated_at=NOW()
WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func scanAttempt(row *sql.Row, what string) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	err := row.Scan(&a.ID, &a.OrderID, &a.Gateway, &a.ExternalRef, &a.Status,
		&a.Amount.Units, &a.Amount.Currency, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, what)
		}
		return nil, err
	}
	return &a, nil
}

var _ usecase.AttemptRepo = (*MySQLAttemptRepo)(nil)

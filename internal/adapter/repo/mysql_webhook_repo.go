package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

type MySQLWebhookRepo struct{ db *sql.DB }

func NewMySQLWebhookRepo(db *sql.DB) *MySQLWebhookRepo { return &MySQLWebhookRepo{db: db} }

// Insert is the serialization primitive of webhook processing: the unique key
// on (gateway, event_id) turns duplicate-check-then-insert into a single
// atomic insert-or-conflict, so two concurrent deliveries of the same event
// cannot both pass.
func (r *MySQLWebhookRepo) Insert(ctx context.Context, ev *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO webhook_events
  (event_id, gateway, external_ref, claimed_status, signature, payload, outcome, received_at)
VALUES (?,?,?,?,?,?,?,?)`,
		ev.EventID, ev.Gateway, ev.ExternalRef, ev.ClaimedStatus,
		ev.Signature, ev.Payload, ev.Outcome, ev.ReceivedAt)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateWebhook, ev.Gateway, ev.EventID)
	}
	return err
}

const mysqlDupEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

var _ usecase.WebhookRepo = (*MySQLWebhookRepo)(nil)

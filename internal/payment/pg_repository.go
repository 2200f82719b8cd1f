package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const paymentColumns = `id, appointment_id, external_txn_id, amount_cents, status, raw_payload, processed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.ExternalTxnID,
		&p.AmountCents,
		&p.Status,
		&p.RawPayload,
		&p.ProcessedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetByExternalID(ctx context.Context, externalTxnID string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE external_txn_id = $1
	`, externalTxnID)
	return scanPayment(row)
}

func (r *PgRepository) InsertIfAbsent(ctx context.Context, tx pgx.Tx, p *Payment) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, external_txn_id, amount_cents, status, raw_payload, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (external_txn_id) DO NOTHING
	`, p.ID, p.AppointmentID, p.ExternalTxnID, p.AmountCents, p.Status, p.RawPayload, p.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

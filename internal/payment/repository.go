package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Repository contains all DB interactions needed by the processor.
type Repository interface {
	GetByExternalID(ctx context.Context, externalTxnID string) (*Payment, error)

	// InsertIfAbsent inserts the payment and reports whether the row was
	// created. A false return means another delivery of the same external
	// transaction won the race; the uniqueness constraint decides.
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, p *Payment) (bool, error)
}

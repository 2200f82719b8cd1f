package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var (
	// ErrTxBusy means a transaction slot could not be acquired within the
	// configured wait bound. The caller may retry the whole operation.
	ErrTxBusy = errors.New("transaction not acquired, store busy")
	// ErrTxTimeout means the unit of work exceeded its execution deadline
	// and was rolled back in full.
	ErrTxTimeout = errors.New("transaction timed out and was rolled back")
)

// TxOptions bounds a single transactional unit of work.
type TxOptions struct {
	MaxWait time.Duration // bound on acquiring a connection before ErrTxBusy
	Timeout time.Duration // bound on execution before rollback and ErrTxTimeout
}

// TxFunc is a unit of work executed against an open transaction. All writes
// performed through tx commit together or not at all.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// Runner executes units of work atomically. Mutations that touch more than
// one entity (slot + appointment + payment) must run inside a single Run call.
type Runner interface {
	Run(ctx context.Context, fn TxFunc) error
	RunWith(ctx context.Context, opts TxOptions, fn TxFunc) error
}

// txConn is one checked-out connection, released after the unit of work.
type txConn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Release()
}

type connSource interface {
	acquire(ctx context.Context) (txConn, error)
}

type poolSource struct {
	pool *pgxpool.Pool
}

func (s poolSource) acquire(ctx context.Context) (txConn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type TxRunner struct {
	src      connSource
	defaults TxOptions
	log      zerolog.Logger
}

func NewTxRunner(pool *pgxpool.Pool, defaults TxOptions, log zerolog.Logger) *TxRunner {
	return newTxRunner(poolSource{pool: pool}, defaults, log)
}

func newTxRunner(src connSource, defaults TxOptions, log zerolog.Logger) *TxRunner {
	return &TxRunner{
		src:      src,
		defaults: defaults,
		log:      log.With().Str("component", "tx_runner").Logger(),
	}
}

func (r *TxRunner) Run(ctx context.Context, fn TxFunc) error {
	return r.RunWith(ctx, r.defaults, fn)
}

// RunWith acquires a connection within opts.MaxWait, opens a serializable
// transaction and executes fn with a deadline of opts.Timeout. Serializable
// isolation makes the read-check-write inside fn the arbiter for concurrent
// writers on the same rows.
func (r *TxRunner) RunWith(ctx context.Context, opts TxOptions, fn TxFunc) error {
	if opts.MaxWait <= 0 {
		opts.MaxWait = r.defaults.MaxWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = r.defaults.Timeout
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, opts.MaxWait)
	conn, err := r.src.acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		// Only our own wait bound maps to busy; a dead caller context is
		// the caller's failure, not the pool's.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTxBusy
		}
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	runCtx, cancelRun := context.WithTimeout(ctx, opts.Timeout)
	defer cancelRun()

	tx, err := conn.BeginTx(runCtx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(runCtx, tx); err != nil {
		r.rollback(tx)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			r.log.Warn().Dur("timeout", opts.Timeout).Msg("transaction exceeded deadline, rolled back")
			return ErrTxTimeout
		}
		return err
	}

	if err := tx.Commit(runCtx); err != nil {
		r.rollback(tx)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			r.log.Warn().Dur("timeout", opts.Timeout).Msg("commit exceeded deadline, rolled back")
			return ErrTxTimeout
		}
		r.log.Error().Err(err).Msg("commit failed")
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *TxRunner) rollback(tx pgx.Tx) {
	// Rollback with a fresh context: the run context may already be dead.
	rbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.log.Error().Err(err).Msg("rollback failed")
	}
}

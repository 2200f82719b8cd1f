package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/db"
)

// StateMachine is the slice of the booking service the processor drives.
// Both methods run inside the processor's transaction and report false when
// the appointment cannot be transitioned anymore.
type StateMachine interface {
	ApplyPaymentVerified(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error)
	ApplyPaymentFailed(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error)
}

// Processor reconciles inbound payment events against appointments.
// Deliveries are at-least-once, so everything here is idempotent: the first
// delivery applies effects, every replay is inert.
type Processor struct {
	repo     Repository
	verifier Verifier
	machine  StateMachine
	runner   db.Runner
	log      zerolog.Logger
}

func NewProcessor(repo Repository, verifier Verifier, machine StateMachine, runner db.Runner, log zerolog.Logger) *Processor {
	return &Processor{
		repo:     repo,
		verifier: verifier,
		machine:  machine,
		runner:   runner,
		log:      log.With().Str("component", "reconciliation").Logger(),
	}
}

// Process handles one authenticated webhook event.
//
// Order matters: dedupe first (cheap read), verify second (slow external
// call, no transaction held open), apply third (one transaction covering
// payment row + appointment + slot).
func (p *Processor) Process(ctx context.Context, ev WebhookEvent) (*Result, error) {
	if ev.ExternalTxnID == "" {
		return nil, fmt.Errorf("external transaction id is required")
	}

	existing, err := p.repo.GetByExternalID(ctx, ev.ExternalTxnID)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("dedupe lookup: %w", err)
	}
	if existing != nil {
		return &Result{Outcome: OutcomeAlreadyProcessed, Payment: existing}, nil
	}

	confirmed := false
	amount := ev.AmountCents

	verification, err := p.verifier.Verify(ctx, ev.ExternalTxnID)
	switch {
	case err == nil:
		confirmed = verification.Confirmed
		if verification.AmountCents > 0 {
			amount = verification.AmountCents
		}
	case errors.Is(err, ErrVerificationNotFound):
		// Negative result: reconcile as a failed payment.
	default:
		return nil, fmt.Errorf("verify transaction: %w", err)
	}

	now := time.Now()
	pay := &Payment{
		ExternalTxnID: ev.ExternalTxnID,
		AmountCents:   amount,
		RawPayload:    ev.RawPayload,
		ProcessedAt:   &now,
	}
	if ev.AppointmentID != uuid.Nil {
		apptID := ev.AppointmentID
		pay.AppointmentID = &apptID
	}
	if confirmed {
		pay.Status = StatusVerified
	} else {
		pay.Status = StatusFailed
	}

	outcome := OutcomeVerificationFailed

	err = p.runner.Run(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		inserted, err := p.repo.InsertIfAbsent(txCtx, tx, pay)
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent delivery of the same transaction committed first.
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		if !confirmed {
			// Record the negative outcome and release the slot if the
			// appointment is still waiting on this payment.
			_, err := p.machine.ApplyPaymentFailed(txCtx, tx, ev.AppointmentID, pay.ID)
			return err
		}

		applied, err := p.machine.ApplyPaymentVerified(txCtx, tx, ev.AppointmentID, pay.ID)
		if err != nil {
			return err
		}
		if applied {
			outcome = OutcomeApplied
		} else {
			outcome = OutcomeNotTransitionable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome == OutcomeAlreadyProcessed {
		existing, err := p.repo.GetByExternalID(ctx, ev.ExternalTxnID)
		if err != nil {
			return nil, fmt.Errorf("reload deduplicated payment: %w", err)
		}
		return &Result{Outcome: OutcomeAlreadyProcessed, Payment: existing}, nil
	}

	if outcome == OutcomeNotTransitionable {
		p.log.Warn().
			Str("external_txn_id", ev.ExternalTxnID).
			Str("appointment_id", ev.AppointmentID.String()).
			Msg("payment recorded but appointment not transitionable")
	}

	return &Result{Outcome: outcome, Payment: pay}, nil
}

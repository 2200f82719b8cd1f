package payment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the reconciliation verdict for a recorded payment. Rows are only
// written once the verifier has answered, so there is no earlier state.
type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Payment tracks one external transaction. The unique index on
// external_txn_id is the authoritative webhook de-duplication mechanism:
// at most one row exists per external identifier, however many times the
// provider redelivers.
type Payment struct {
	ID            uuid.UUID
	AppointmentID *uuid.UUID
	ExternalTxnID string
	AmountCents   int64
	Status        Status
	RawPayload    []byte
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebhookEvent is an inbound payment notification, already authenticated by
// the HTTP layer.
type WebhookEvent struct {
	ExternalTxnID string
	AppointmentID uuid.UUID
	AmountCents   int64
	RawPayload    []byte
}

// Outcome reports what a reconciliation pass did.
type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeNotTransitionable  Outcome = "appointment_not_transitionable"
	OutcomeVerificationFailed Outcome = "verification_failed"
)

// Result is returned to the webhook caller. Replays after the first delivery
// always report OutcomeAlreadyProcessed.
type Result struct {
	Outcome Outcome
	Payment *Payment
}

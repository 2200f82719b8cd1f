package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careloop/clinic-booking/internal/schedule"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable means the caller lost the booking race or asked for
	// a slot that is not free. Re-query availability and pick another slot.
	ErrSlotUnavailable = errors.New("slot is not available")
)

// Repository contains all DB interactions needed by the booking service.
// Methods taking a pgx.Tx participate in a unit of work managed by the
// transaction runner; the others read committed state.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// GetAppointmentForUpdate locks the row for the rest of the transaction.
	GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Appointment, error)

	// TransitionSlot flips a slot's status only if it still holds the
	// expected one; ErrSlotUnavailable otherwise. This conditional update is
	// what makes concurrent bookings of the same slot lose cleanly.
	TransitionSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, from, to schedule.SlotStatus) error

	CreateAppointment(ctx context.Context, tx pgx.Tx, a *Appointment) error

	// UpdateStatus applies a conditional status move; ErrInvalidTransition
	// if the row is no longer in the expected state.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) (*Appointment, error)

	// MarkCancelled is UpdateStatus to cancelled plus reason/note recording.
	MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, from Status, reason CancelReason, note *string) (*Appointment, error)

	LinkPayment(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) error

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

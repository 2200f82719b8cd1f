package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CancelReason is the closed set of reasons an appointment may be cancelled.
type CancelReason string

const (
	ReasonPatientRequest    CancelReason = "patient_request"
	ReasonDoctorUnavailable CancelReason = "doctor_unavailable"
	ReasonPaymentFailed     CancelReason = "payment_failed"
	ReasonAdministrative    CancelReason = "administrative"
	ReasonNoShow            CancelReason = "no_show"
	ReasonOther             CancelReason = "other"
)

func ValidCancelReason(r CancelReason) bool {
	switch r {
	case ReasonPatientRequest, ReasonDoctorUnavailable, ReasonPaymentFailed,
		ReasonAdministrative, ReasonNoShow, ReasonOther:
		return true
	}
	return false
}

// Event is a state-machine input.
type Event string

const (
	EventPaymentVerified Event = "payment_verified"
	EventPaymentFailed   Event = "payment_failed"
	EventCancel          Event = "cancel"
	EventComplete        Event = "complete"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the full legality table. Completed and cancelled are
// terminal: they have no outgoing edges.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventPaymentVerified: StatusConfirmed,
		EventPaymentFailed:   StatusCancelled,
		EventCancel:          StatusCancelled,
	},
	StatusConfirmed: {
		EventCancel:   StatusCancelled,
		EventComplete: StatusCompleted,
	},
}

// NextStatus returns the status reached by applying ev in from, or
// ErrInvalidTransition. It is a pure function checked before any write.
func NextStatus(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", ErrInvalidTransition
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment links a patient to a booked slot. Cancellation and completion
// are terminal states, never deletions.
type Appointment struct {
	ID           uuid.UUID
	SlotID       uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Status       Status
	CancelReason *CancelReason
	CancelNote   *string
	PaymentID    *uuid.UUID
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

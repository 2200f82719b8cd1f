package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/db"
	redisclient "github.com/careloop/clinic-booking/internal/redis"
	"github.com/careloop/clinic-booking/internal/schedule"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

var (
	ErrInvalidCancelReason = errors.New("cancellation reason is not in the allowed set")
	ErrNoteTooLong         = errors.New("cancellation note exceeds the allowed length")
)

// SlotReader is the slice of the schedule store the booking service needs.
type SlotReader interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*schedule.TimeSlot, error)
}

// Service owns the appointment state machine. Every mutation runs inside a
// single transaction-runner invocation so slot, appointment and payment rows
// move together or not at all.
type Service struct {
	repo       Repository
	slots      SlotReader
	locker     redisclient.Locker
	runner     db.Runner
	pendingTTL time.Duration
	maxNoteLen int
	log        zerolog.Logger
}

func NewService(repo Repository, slots SlotReader, locker redisclient.Locker, runner db.Runner, pendingTTL time.Duration, maxNoteLen int, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		slots:      slots,
		locker:     locker,
		runner:     runner,
		pendingTTL: pendingTTL,
		maxNoteLen: maxNoteLen,
		log:        log.With().Str("component", "booking").Logger(),
	}
}

// Book reserves a slot for a patient. The slot lock keeps most concurrent
// bookers out of the critical section; the free→held conditional update
// inside the transaction decides the race for the ones that get through.
// Exactly one booker commits, the rest observe ErrSlotUnavailable.
func (s *Service) Book(ctx context.Context, slotID, patientID uuid.UUID) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.slots.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.Status != schedule.SlotFree {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return s.runner.Run(lockCtx, func(txCtx context.Context, tx pgx.Tx) error {
			// Re-check under isolation: free→held fails if anyone committed
			// in between the availability read and here.
			if err := s.repo.TransitionSlot(txCtx, tx, slotID, schedule.SlotFree, schedule.SlotHeld); err != nil {
				return err
			}

			expiresAt := time.Now().Add(s.pendingTTL)
			a := &Appointment{
				SlotID:    slotID,
				PatientID: patientID,
				DoctorID:  slot.DoctorID,
				Status:    StatusPending,
				ExpiresAt: &expiresAt,
			}
			if err := s.repo.CreateAppointment(txCtx, tx, a); err != nil {
				return fmt.Errorf("create pending appointment: %w", err)
			}

			if err := s.repo.TransitionSlot(txCtx, tx, slotID, schedule.SlotHeld, schedule.SlotBooked); err != nil {
				return err
			}

			created = a
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is mid-booking on this slot; same answer as
			// losing the race outright.
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
		"expires_at": created.ExpiresAt,
	})

	return created, nil
}

// Cancel moves a pending or confirmed appointment to cancelled and returns
// its slot to the free pool, in one transaction.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason CancelReason, note *string) (*Appointment, error) {
	if !ValidCancelReason(reason) {
		return nil, ErrInvalidCancelReason
	}
	if note != nil && utf8.RuneCountInString(*note) > s.maxNoteLen {
		return nil, ErrNoteTooLong
	}

	var updated *Appointment

	err := s.runner.Run(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		a, err := s.repo.GetAppointmentForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}

		if _, err := NextStatus(a.Status, EventCancel); err != nil {
			return err
		}

		updated, err = s.repo.MarkCancelled(txCtx, tx, id, a.Status, reason, note)
		if err != nil {
			return err
		}

		return s.repo.TransitionSlot(txCtx, tx, a.SlotID, schedule.SlotBooked, schedule.SlotFree)
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason": string(reason),
	})

	return updated, nil
}

// Complete marks a confirmed appointment as completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var updated *Appointment

	err := s.runner.Run(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		a, err := s.repo.GetAppointmentForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}

		to, err := NextStatus(a.Status, EventComplete)
		if err != nil {
			return err
		}

		updated, err = s.repo.UpdateStatus(txCtx, tx, id, a.Status, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})

	return updated, nil
}

// ApplyPaymentVerified drives pending→confirmed inside the caller's
// transaction. Returns false without error when the appointment is past the
// point of confirmation: that is the legitimate webhook race, not a failure.
func (s *Service) ApplyPaymentVerified(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error) {
	a, err := s.repo.GetAppointmentForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, err
	}

	to, err := NextStatus(a.Status, EventPaymentVerified)
	if err != nil {
		return false, nil
	}

	if _, err := s.repo.UpdateStatus(ctx, tx, appointmentID, a.Status, to); err != nil {
		return false, err
	}
	if err := s.repo.LinkPayment(ctx, tx, appointmentID, paymentID); err != nil {
		return false, err
	}

	s.logEvent(ctx, appointmentID, EventAppointmentConfirmed, map[string]any{
		"payment_id": paymentID.String(),
	})

	return true, nil
}

// ApplyPaymentFailed drives pending→cancelled (reason payment_failed) and
// releases the slot, inside the caller's transaction. Same no-op semantics
// as ApplyPaymentVerified for non-transitionable appointments.
func (s *Service) ApplyPaymentFailed(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error) {
	a, err := s.repo.GetAppointmentForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, err
	}

	if _, err := NextStatus(a.Status, EventPaymentFailed); err != nil {
		return false, nil
	}

	if _, err := s.repo.MarkCancelled(ctx, tx, appointmentID, a.Status, ReasonPaymentFailed, nil); err != nil {
		return false, err
	}
	if err := s.repo.TransitionSlot(ctx, tx, a.SlotID, schedule.SlotBooked, schedule.SlotFree); err != nil {
		return false, err
	}
	if err := s.repo.LinkPayment(ctx, tx, appointmentID, paymentID); err != nil {
		return false, err
	}

	s.logEvent(ctx, appointmentID, EventAppointmentCancelled, map[string]any{
		"reason":     string(ReasonPaymentFailed),
		"payment_id": paymentID.String(),
	})

	return true, nil
}

// ExpireStalePending cancels pending appointments whose payment window has
// elapsed, releasing their slots. Called periodically by the worker.
func (s *Service) ExpireStalePending(ctx context.Context) error {
	candidates, err := s.repo.FindExpiredPending(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("find expired pending appointments: %w", err)
	}

	note := "payment window elapsed"
	for _, a := range candidates {
		apptID := a.ID
		slotID := a.SlotID

		err := s.runner.Run(ctx, func(txCtx context.Context, tx pgx.Tx) error {
			if _, err := s.repo.MarkCancelled(txCtx, tx, apptID, StatusPending, ReasonPaymentFailed, &note); err != nil {
				return err
			}
			return s.repo.TransitionSlot(txCtx, tx, slotID, schedule.SlotBooked, schedule.SlotFree)
		})
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// A payment landed between the scan and here. Leave it be.
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", apptID.String()).Msg("failed to expire appointment")
			continue
		}

		s.logEvent(ctx, apptID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appointmentID.String()).Msg("failed to insert event log")
	}
}

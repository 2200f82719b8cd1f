package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type CancelAppointmentRequest struct {
	Reason string  `json:"reason"`
	Note   *string `json:"note,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	Status       string     `json:"status"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
	CancelNote   *string    `json:"cancel_note,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type SlotResponse struct {
	ID    uuid.UUID `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DayAvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type CreateTemplateRequest struct {
	DoctorID    string       `json:"doctor_id"`
	StartDate   string       `json:"start_date"` // YYYY-MM-DD
	EndDate     string       `json:"end_date"`
	Weekdays    []int        `json:"weekdays"` // 0 = Sunday
	DayStartMin int          `json:"day_start_min"`
	DayEndMin   int          `json:"day_end_min"`
	SlotMinutes int          `json:"slot_minutes"`
	Breaks      []BreakInput `json:"breaks,omitempty"`
}

type BreakInput struct {
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

type TemplateResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Active   bool      `json:"active"`
}

type GenerateSlotsRequest struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`
}

type GenerateSlotsResponse struct {
	Inserted int `json:"inserted"`
}

type PaymentWebhookRequest struct {
	TransactionID string          `json:"transaction_id"`
	AppointmentID string          `json:"appointment_id"`
	AmountCents   int64           `json:"amount_cents,omitempty"`
	Provider      json.RawMessage `json:"provider,omitempty"`
}

type PaymentWebhookResponse struct {
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transaction_id"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrSlotNotFound     = errors.New("slot not found")
)

// Repository contains all DB interactions needed by the generator and the
// availability index.
type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error)
	ListActiveTemplates(ctx context.Context) ([]Template, error)

	// InsertSlots persists newly generated slots only; rows that collide on
	// (doctor_id, start_time) are skipped. Returns the number inserted.
	InsertSlots(ctx context.Context, slots []TimeSlot) (int, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)

	// ListFreeSlots returns FREE slots for the doctor in [from, to),
	// ordered by start time. Reads through to the store on every call.
	ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error)
}

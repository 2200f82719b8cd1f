package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTemplate wraps every template validation failure. Callers match
// with errors.Is and surface the detail message to the client.
var ErrInvalidTemplate = errors.New("invalid schedule template")

type SlotStatus string

const (
	SlotFree   SlotStatus = "free"
	SlotHeld   SlotStatus = "held"
	SlotBooked SlotStatus = "booked"
)

// TimeSlot is a bounded interval during which a doctor can be booked.
// For a given doctor, slots never overlap; the unique index on
// (doctor_id, start_time) plus deterministic generation guarantees it.
type TimeSlot struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	TemplateID *uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     SlotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Weekdays is a bitmask over time.Weekday (bit 0 = Sunday).
type Weekdays int

func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << d
	}
	return w
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<d) != 0
}

// BreakWindow is a pause inside the working day, in minutes from midnight.
type BreakWindow struct {
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

// Template is a doctor's recurring availability definition. Templates are
// only applied to not-yet-generated ranges: materialized slots are never
// rewritten when a template changes.
type Template struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	StartDate   time.Time // date, midnight UTC
	EndDate     time.Time // inclusive
	Weekdays    Weekdays
	DayStartMin int // working window start, minutes from midnight
	DayEndMin   int
	SlotMinutes int
	Breaks      []BreakWindow
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the recurrence definition before any slot is generated.
func (t *Template) Validate() error {
	if t.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor id is required", ErrInvalidTemplate)
	}
	if t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: recurrence window is empty", ErrInvalidTemplate)
	}
	if t.Weekdays == 0 {
		return fmt.Errorf("%w: no active weekdays", ErrInvalidTemplate)
	}
	if t.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidTemplate)
	}
	if t.DayStartMin < 0 || t.DayEndMin > 24*60 || t.DayEndMin <= t.DayStartMin {
		return fmt.Errorf("%w: working window %d-%d is not a valid interval", ErrInvalidTemplate, t.DayStartMin, t.DayEndMin)
	}

	breaks := append([]BreakWindow(nil), t.Breaks...)
	sort.Slice(breaks, func(i, j int) bool { return breaks[i].StartMin < breaks[j].StartMin })

	prevEnd := t.DayStartMin
	for _, b := range breaks {
		if b.EndMin <= b.StartMin {
			return fmt.Errorf("%w: break %d-%d is not a valid interval", ErrInvalidTemplate, b.StartMin, b.EndMin)
		}
		if b.StartMin < t.DayStartMin || b.EndMin > t.DayEndMin {
			return fmt.Errorf("%w: break %d-%d falls outside the working window", ErrInvalidTemplate, b.StartMin, b.EndMin)
		}
		if b.StartMin < prevEnd {
			return fmt.Errorf("%w: breaks overlap at minute %d", ErrInvalidTemplate, b.StartMin)
		}
		prevEnd = b.EndMin
	}

	return nil
}

// sortedBreaks returns the template's breaks ordered by start.
func (t *Template) sortedBreaks() []BreakWindow {
	breaks := append([]BreakWindow(nil), t.Breaks...)
	sort.Slice(breaks, func(i, j int) bool { return breaks[i].StartMin < breaks[j].StartMin })
	return breaks
}

// ConflictsWith reports whether the two templates can materialize slots for
// the same doctor on the same day with intersecting working windows. Slot
// grids from such a pair would overlap in wall-clock time.
func (t *Template) ConflictsWith(other *Template) bool {
	if t.DoctorID != other.DoctorID {
		return false
	}
	if t.EndDate.Before(other.StartDate) || other.EndDate.Before(t.StartDate) {
		return false
	}
	if t.Weekdays&other.Weekdays == 0 {
		return false
	}
	return t.DayStartMin < other.DayEndMin && other.DayStartMin < t.DayEndMin
}

// CheckNoConflict rejects a template that collides with any active template
// in existing. The slot store's overlap constraint is the final guard; this
// keeps conflicting definitions from being created in the first place.
func CheckNoConflict(t *Template, existing []Template) error {
	for i := range existing {
		if !existing[i].Active || existing[i].ID == t.ID {
			continue
		}
		if t.ConflictsWith(&existing[i]) {
			return fmt.Errorf("%w: working window overlaps active template %s for this doctor", ErrInvalidTemplate, existing[i].ID)
		}
	}
	return nil
}

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability answers "which slots are free for doctor D on date X". It is
// read-only and reads through to the store on every call; a stale answer here
// would let a booked slot look free downstream.
type Availability struct {
	repo Repository
}

func NewAvailability(repo Repository) *Availability {
	return &Availability{repo: repo}
}

// DayAvailability groups a day's free slots, ordered by start time.
type DayAvailability struct {
	Date  time.Time
	Slots []TimeSlot
}

// ListFree returns the doctor's free slots for one calendar day.
func (a *Availability) ListFree(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	from := dateOnly(day)
	to := from.AddDate(0, 0, 1)

	slots, err := a.repo.ListFreeSlots(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	return slots, nil
}

// ListFreeRange returns the doctor's free slots over [from, to] grouped by
// date. Days without free slots are omitted.
func (a *Availability) ListFreeRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]DayAvailability, error) {
	start := dateOnly(from)
	end := dateOnly(to).AddDate(0, 0, 1)

	slots, err := a.repo.ListFreeSlots(ctx, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}

	var days []DayAvailability
	for _, s := range slots {
		d := dateOnly(s.StartTime)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(d) {
			days = append(days, DayAvailability{Date: d})
		}
		days[len(days)-1].Slots = append(days[len(days)-1].Slots, s)
	}

	return days, nil
}

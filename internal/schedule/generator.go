package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator expands templates into concrete time slots. Generation is
// deterministic: re-running it for an already-materialized range inserts
// nothing, because existing rows win on (doctor_id, start_time).
type Generator struct {
	repo Repository
	log  zerolog.Logger
}

func NewGenerator(repo Repository, log zerolog.Logger) *Generator {
	return &Generator{
		repo: repo,
		log:  log.With().Str("component", "slot_generator").Logger(),
	}
}

// Generate materializes slots for the template over [from, to], clamped to
// the template's own window, and returns how many new slots were persisted.
func (g *Generator) Generate(ctx context.Context, t *Template, from, to time.Time) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	from = dateOnly(from)
	to = dateOnly(to)
	if from.Before(dateOnly(t.StartDate)) {
		from = dateOnly(t.StartDate)
	}
	if to.After(dateOnly(t.EndDate)) {
		to = dateOnly(t.EndDate)
	}

	var slots []TimeSlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !t.Weekdays.Has(day.Weekday()) {
			continue
		}
		slots = append(slots, expandDay(t, day)...)
	}

	if len(slots) == 0 {
		return 0, nil
	}

	inserted, err := g.repo.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("persist generated slots: %w", err)
	}

	g.log.Info().
		Str("doctor_id", t.DoctorID.String()).
		Str("template_id", t.ID.String()).
		Int("candidates", len(slots)).
		Int("inserted", inserted).
		Msg("slots generated")

	return inserted, nil
}

// expandDay partitions one working day into contiguous slots, skipping break
// windows. A remainder shorter than one slot duration at the end of a
// segment is dropped.
func expandDay(t *Template, day time.Time) []TimeSlot {
	var out []TimeSlot
	tplID := t.ID

	for _, seg := range workingSegments(t) {
		for cursor := seg.start; cursor+t.SlotMinutes <= seg.end; cursor += t.SlotMinutes {
			out = append(out, TimeSlot{
				ID:         uuid.New(),
				DoctorID:   t.DoctorID,
				TemplateID: &tplID,
				StartTime:  day.Add(time.Duration(cursor) * time.Minute),
				EndTime:    day.Add(time.Duration(cursor+t.SlotMinutes) * time.Minute),
				Status:     SlotFree,
			})
		}
	}

	return out
}

type segment struct {
	start, end int
}

// workingSegments splits the working window into the stretches between breaks.
func workingSegments(t *Template) []segment {
	var segs []segment
	start := t.DayStartMin
	for _, b := range t.sortedBreaks() {
		if b.StartMin > start {
			segs = append(segs, segment{start: start, end: b.StartMin})
		}
		start = b.EndMin
	}
	if start < t.DayEndMin {
		segs = append(segs, segment{start: start, end: t.DayEndMin})
	}
	return segs
}

func dateOnly(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestListFreeExcludesTakenSlots(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())
	tpl := testTemplate()

	if _, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Take two slots out of circulation.
	repo.slots[0].Status = SlotBooked
	repo.slots[3].Status = SlotHeld

	avail := NewAvailability(repo)
	free, err := avail.ListFree(context.Background(), tpl.DoctorID, tpl.StartDate)
	if err != nil {
		t.Fatalf("ListFree() error = %v", err)
	}

	if len(free) != 4 {
		t.Fatalf("ListFree() returned %d slots, want 4", len(free))
	}
	for _, s := range free {
		if s.Status != SlotFree {
			t.Errorf("ListFree() returned slot with status %s", s.Status)
		}
	}
}

func TestListFreeEmptyDay(t *testing.T) {
	repo := newFakeScheduleRepo()
	avail := NewAvailability(repo)

	free, err := avail.ListFree(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("ListFree() error = %v", err)
	}
	if len(free) != 0 {
		t.Errorf("ListFree() returned %d slots for empty store, want 0", len(free))
	}
}

func TestListFreeRangeGroupsByDate(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	tpl := testTemplate()
	tpl.StartDate = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	tpl.EndDate = time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	tpl.Weekdays = WeekdaysOf(time.Monday, time.Thursday)

	if _, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	avail := NewAvailability(repo)
	days, err := avail.ListFreeRange(context.Background(), tpl.DoctorID, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("ListFreeRange() error = %v", err)
	}

	// Monday and Thursday only; the five empty days are omitted.
	if len(days) != 2 {
		t.Fatalf("ListFreeRange() returned %d days, want 2", len(days))
	}
	if days[0].Date.Weekday() != time.Monday || days[1].Date.Weekday() != time.Thursday {
		t.Errorf("ListFreeRange() days = %s, %s; want Monday, Thursday",
			days[0].Date.Weekday(), days[1].Date.Weekday())
	}
	for _, d := range days {
		if len(d.Slots) != 6 {
			t.Errorf("day %s has %d slots, want 6", d.Date.Format("2006-01-02"), len(d.Slots))
		}
	}
}

func TestListFreeScopedToDoctor(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	tplA := testTemplate()
	tplB := testTemplate()
	tplB.ID = uuid.New()
	tplB.DoctorID = uuid.New()

	for _, tpl := range []*Template{tplA, tplB} {
		if _, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
	}

	avail := NewAvailability(repo)
	free, err := avail.ListFree(context.Background(), tplA.DoctorID, tplA.StartDate)
	if err != nil {
		t.Fatalf("ListFree() error = %v", err)
	}
	if len(free) != 6 {
		t.Fatalf("ListFree() returned %d slots, want 6", len(free))
	}
	for _, s := range free {
		if s.DoctorID != tplA.DoctorID {
			t.Errorf("ListFree() leaked slot for doctor %s", s.DoctorID)
		}
	}
}

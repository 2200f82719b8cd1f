package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeScheduleRepo struct {
	templates map[uuid.UUID]*Template
	slots     []TimeSlot
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		templates: make(map[uuid.UUID]*Template),
	}
}

func (r *fakeScheduleRepo) CreateTemplate(ctx context.Context, t *Template) error {
	r.templates[t.ID] = t
	return nil
}

func (r *fakeScheduleRepo) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return t, nil
}

func (r *fakeScheduleRepo) ListActiveTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	for _, t := range r.templates {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

// InsertSlots skips candidates that collide with an existing row for the
// doctor, on the start timestamp or anywhere in the slot's time range, the
// same way the store's unique index and overlap constraint do.
func (r *fakeScheduleRepo) InsertSlots(ctx context.Context, slots []TimeSlot) (int, error) {
	inserted := 0
	for _, s := range slots {
		if r.collides(s) {
			continue
		}
		r.slots = append(r.slots, s)
		inserted++
	}
	return inserted, nil
}

func (r *fakeScheduleRepo) collides(s TimeSlot) bool {
	for _, e := range r.slots {
		if e.DoctorID != s.DoctorID {
			continue
		}
		if e.StartTime.Equal(s.StartTime) {
			return true
		}
		if s.StartTime.Before(e.EndTime) && e.StartTime.Before(s.EndTime) {
			return true
		}
	}
	return false
}

func (r *fakeScheduleRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	for i := range r.slots {
		if r.slots[i].ID == id {
			return &r.slots[i], nil
		}
	}
	return nil, ErrSlotNotFound
}

func (r *fakeScheduleRepo) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	var out []TimeSlot
	for _, s := range r.slots {
		if s.DoctorID != doctorID || s.Status != SlotFree {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func testTemplate() *Template {
	// Mondays only, 09:00-12:00, 30 minute slots.
	return &Template{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		StartDate:   time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), // a Monday
		EndDate:     time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		Weekdays:    WeekdaysOf(time.Monday),
		DayStartMin: 9 * 60,
		DayEndMin:   12 * 60,
		SlotMinutes: 30,
		Active:      true,
	}
}

func TestGenerateSingleDay(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())
	tpl := testTemplate()

	inserted, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if inserted != 6 {
		t.Fatalf("Generate() inserted = %d, want 6", inserted)
	}

	wantStarts := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for i, s := range repo.slots {
		got := s.StartTime.UTC().Format("15:04")
		if got != wantStarts[i] {
			t.Errorf("slot %d start = %s, want %s", i, got, wantStarts[i])
		}
		if s.EndTime.Sub(s.StartTime) != 30*time.Minute {
			t.Errorf("slot %d duration = %s, want 30m", i, s.EndTime.Sub(s.StartTime))
		}
		if s.Status != SlotFree {
			t.Errorf("slot %d status = %s, want free", i, s.Status)
		}
		if s.DoctorID != tpl.DoctorID {
			t.Errorf("slot %d doctor = %s, want %s", i, s.DoctorID, tpl.DoctorID)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())
	tpl := testTemplate()

	first, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	second, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if first != 6 || second != 0 {
		t.Errorf("Generate() inserted = (%d, %d), want (6, 0)", first, second)
	}
	if len(repo.slots) != 6 {
		t.Errorf("stored slots = %d, want 6", len(repo.slots))
	}
}

func TestGenerateSkipsBreaks(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	tpl := testTemplate()
	tpl.DayEndMin = 14 * 60
	tpl.Breaks = []BreakWindow{{StartMin: 12 * 60, EndMin: 13 * 60}}

	inserted, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// 09:00-12:00 gives 6 slots, 13:00-14:00 gives 2, nothing inside the break.
	if inserted != 8 {
		t.Fatalf("Generate() inserted = %d, want 8", inserted)
	}
	for _, s := range repo.slots {
		h := s.StartTime.UTC().Hour()
		if h == 12 {
			t.Errorf("slot generated inside break: %s", s.StartTime.Format("15:04"))
		}
	}
}

func TestGenerateDropsShortRemainder(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	// 09:00-10:50 with 30 minute slots: the trailing 20 minutes is unusable.
	tpl := testTemplate()
	tpl.DayEndMin = 10*60 + 50

	inserted, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if inserted != 3 {
		t.Errorf("Generate() inserted = %d, want 3", inserted)
	}
}

func TestGenerateHonorsWeekdays(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	tpl := testTemplate()
	tpl.StartDate = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)  // Monday
	tpl.EndDate = time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)   // Sunday
	tpl.Weekdays = WeekdaysOf(time.Monday, time.Wednesday)

	inserted, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// Two matching days, 6 slots each.
	if inserted != 12 {
		t.Errorf("Generate() inserted = %d, want 12", inserted)
	}
	for _, s := range repo.slots {
		wd := s.StartTime.UTC().Weekday()
		if wd != time.Monday && wd != time.Wednesday {
			t.Errorf("slot on unexpected weekday %s", wd)
		}
	}
}

func TestGenerateClampsToTemplateWindow(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())
	tpl := testTemplate()

	// Request a much wider range than the template covers.
	from := tpl.StartDate.AddDate(0, 0, -30)
	to := tpl.EndDate.AddDate(0, 0, 30)

	inserted, err := gen.Generate(context.Background(), tpl, from, to)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if inserted != 6 {
		t.Errorf("Generate() inserted = %d, want 6", inserted)
	}
}

func TestGenerateRejectsInvalidTemplate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"missing doctor", func(t *Template) { t.DoctorID = uuid.Nil }},
		{"empty window", func(t *Template) { t.EndDate = t.StartDate.AddDate(0, 0, -1) }},
		{"no weekdays", func(t *Template) { t.Weekdays = 0 }},
		{"zero slot duration", func(t *Template) { t.SlotMinutes = 0 }},
		{"negative slot duration", func(t *Template) { t.SlotMinutes = -15 }},
		{"inverted working window", func(t *Template) { t.DayStartMin = 12 * 60; t.DayEndMin = 9 * 60 }},
		{"break outside window", func(t *Template) {
			t.Breaks = []BreakWindow{{StartMin: 8 * 60, EndMin: 9*60 + 30}}
		}},
		{"inverted break", func(t *Template) {
			t.Breaks = []BreakWindow{{StartMin: 11 * 60, EndMin: 10 * 60}}
		}},
		{"overlapping breaks", func(t *Template) {
			t.DayEndMin = 17 * 60
			t.Breaks = []BreakWindow{
				{StartMin: 12 * 60, EndMin: 13 * 60},
				{StartMin: 12*60 + 30, EndMin: 14 * 60},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeScheduleRepo()
			gen := NewGenerator(repo, zerolog.Nop())

			tpl := testTemplate()
			tt.mutate(tpl)

			_, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("Generate() error = %v, want ErrInvalidTemplate", err)
			}
			if len(repo.slots) != 0 {
				t.Errorf("slots generated for invalid template: %d", len(repo.slots))
			}
		})
	}
}

func TestGenerateOffsetGridsDoNotOverlap(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	// Two templates for the same doctor with grids shifted by 15 minutes.
	// The second grid's slots all overlap the first's and must be skipped.
	first := testTemplate()
	first.DayStartMin = 9 * 60
	first.DayEndMin = 10 * 60

	second := testTemplate()
	second.ID = uuid.New()
	second.DoctorID = first.DoctorID
	second.DayStartMin = 9*60 + 15
	second.DayEndMin = 10*60 + 15

	insertedFirst, err := gen.Generate(context.Background(), first, first.StartDate, first.EndDate)
	if err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	insertedSecond, err := gen.Generate(context.Background(), second, second.StartDate, second.EndDate)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if insertedFirst != 2 || insertedSecond != 0 {
		t.Errorf("Generate() inserted = (%d, %d), want (2, 0)", insertedFirst, insertedSecond)
	}

	// No pair of persisted slots for the doctor may intersect in time.
	for i := range repo.slots {
		for j := i + 1; j < len(repo.slots); j++ {
			a, b := repo.slots[i], repo.slots[j]
			if a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime) {
				t.Errorf("overlapping slots persisted: [%s, %s) and [%s, %s)",
					a.StartTime.Format("15:04"), a.EndTime.Format("15:04"),
					b.StartTime.Format("15:04"), b.EndTime.Format("15:04"))
			}
		}
	}
}

func TestGenerateOffsetGridDifferentDoctors(t *testing.T) {
	repo := newFakeScheduleRepo()
	gen := NewGenerator(repo, zerolog.Nop())

	first := testTemplate()
	second := testTemplate()
	second.ID = uuid.New()
	second.DoctorID = uuid.New()
	second.DayStartMin = 9*60 + 15
	second.DayEndMin = 12*60 + 15

	for _, tpl := range []*Template{first, second} {
		inserted, err := gen.Generate(context.Background(), tpl, tpl.StartDate, tpl.EndDate)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if inserted != 6 {
			t.Errorf("Generate() inserted = %d, want 6; overlap rule must be per doctor", inserted)
		}
	}
}

func TestWeekdaysBitmask(t *testing.T) {
	w := WeekdaysOf(time.Monday, time.Friday)

	if !w.Has(time.Monday) || !w.Has(time.Friday) {
		t.Error("Has() = false for included weekday")
	}
	if w.Has(time.Sunday) || w.Has(time.Wednesday) {
		t.Error("Has() = true for excluded weekday")
	}
}

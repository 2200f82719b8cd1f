package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTemplateConflictsWith(t *testing.T) {
	base := testTemplate()

	tests := []struct {
		name   string
		mutate func(*Template)
		want   bool
	}{
		{"identical recurrence", func(o *Template) {}, true},
		{"offset grid, same window", func(o *Template) {
			o.DayStartMin = 9*60 + 15
			o.DayEndMin = 12*60 + 15
		}, true},
		{"different doctor", func(o *Template) { o.DoctorID = uuid.New() }, false},
		{"disjoint date ranges", func(o *Template) {
			o.StartDate = base.EndDate.AddDate(0, 0, 1)
			o.EndDate = base.EndDate.AddDate(0, 0, 7)
		}, false},
		{"disjoint weekdays", func(o *Template) { o.Weekdays = WeekdaysOf(time.Tuesday) }, false},
		{"working windows back to back", func(o *Template) {
			o.DayStartMin = base.DayEndMin
			o.DayEndMin = base.DayEndMin + 2*60
		}, false},
		{"working windows intersect at the edge", func(o *Template) {
			o.DayStartMin = base.DayEndMin - 15
			o.DayEndMin = base.DayEndMin + 2*60
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testTemplate()
			other.ID = uuid.New()
			other.DoctorID = base.DoctorID
			tt.mutate(other)

			if got := base.ConflictsWith(other); got != tt.want {
				t.Errorf("ConflictsWith() = %v, want %v", got, tt.want)
			}
			if got := other.ConflictsWith(base); got != tt.want {
				t.Errorf("ConflictsWith() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckNoConflict(t *testing.T) {
	existing := testTemplate()

	conflicting := testTemplate()
	conflicting.ID = uuid.New()
	conflicting.DoctorID = existing.DoctorID
	conflicting.DayStartMin = 9*60 + 15
	conflicting.DayEndMin = 12*60 + 15

	if err := CheckNoConflict(conflicting, []Template{*existing}); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("CheckNoConflict() error = %v, want ErrInvalidTemplate", err)
	}

	// Inactive templates do not block.
	inactive := *existing
	inactive.Active = false
	if err := CheckNoConflict(conflicting, []Template{inactive}); err != nil {
		t.Errorf("CheckNoConflict() against inactive error = %v", err)
	}

	// A template never conflicts with its own row.
	if err := CheckNoConflict(existing, []Template{*existing}); err != nil {
		t.Errorf("CheckNoConflict() against self error = %v", err)
	}

	// Another doctor's identical recurrence is fine.
	elsewhere := *existing
	elsewhere.ID = uuid.New()
	elsewhere.DoctorID = uuid.New()
	if err := CheckNoConflict(conflicting, []Template{elsewhere}); err != nil {
		t.Errorf("CheckNoConflict() across doctors error = %v", err)
	}
}

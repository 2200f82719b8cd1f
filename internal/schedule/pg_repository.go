package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var weekdays int
	var breaksJSON []byte

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&t.StartDate,
		&t.EndDate,
		&weekdays,
		&t.DayStartMin,
		&t.DayEndMin,
		&t.SlotMinutes,
		&breaksJSON,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.Weekdays = Weekdays(weekdays)
	if len(breaksJSON) > 0 {
		if err := json.Unmarshal(breaksJSON, &t.Breaks); err != nil {
			return nil, fmt.Errorf("decode template breaks: %w", err)
		}
	}
	return &t, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.TemplateID,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

// Interface methods

func (r *PgRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	breaksJSON, err := json.Marshal(t.Breaks)
	if err != nil {
		return fmt.Errorf("encode template breaks: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_templates
			(id, doctor_id, start_date, end_date, weekdays, day_start_min, day_end_min, slot_minutes, breaks, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at
	`, t.ID, t.DoctorID, t.StartDate, t.EndDate, int(t.Weekdays), t.DayStartMin, t.DayEndMin, t.SlotMinutes, breaksJSON, t.Active)

	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *PgRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_date, end_date, weekdays, day_start_min, day_end_min, slot_minutes, breaks, active, created_at, updated_at
		FROM schedule_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) ListActiveTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_date, end_date, weekdays, day_start_min, day_end_min, slot_minutes, breaks, active, created_at, updated_at
		FROM schedule_templates
		WHERE active = true
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []TimeSlot) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range slots {
		// Targetless ON CONFLICT covers both the (doctor_id, start_time)
		// unique index and the doctor overlap exclusion constraint: a
		// candidate colliding with either existing row is skipped, so a
		// second template with an offset grid cannot double-book a doctor.
		tag, err := tx.Exec(ctx, `
			INSERT INTO time_slots (id, doctor_id, template_id, start_time, end_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT DO NOTHING
		`, s.ID, s.DoctorID, s.TemplateID, s.StartTime, s.EndTime, s.Status)
		if err != nil {
			return 0, fmt.Errorf("insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, template_id, start_time, end_time, status, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, template_id, start_time, end_time, status, created_at, updated_at
		FROM time_slots
		WHERE doctor_id = $1
		  AND status = 'free'
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

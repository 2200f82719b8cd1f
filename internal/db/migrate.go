package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so every binary can
// run them unconditionally.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		specialty  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_templates (
		id            UUID PRIMARY KEY,
		doctor_id     UUID NOT NULL REFERENCES doctors(id),
		start_date    DATE NOT NULL,
		end_date      DATE NOT NULL,
		weekdays      INTEGER NOT NULL,
		day_start_min INTEGER NOT NULL,
		day_end_min   INTEGER NOT NULL,
		slot_minutes  INTEGER NOT NULL,
		breaks        JSONB NOT NULL DEFAULT '[]',
		active        BOOLEAN NOT NULL DEFAULT true,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS time_slots (
		id          UUID PRIMARY KEY,
		doctor_id   UUID NOT NULL REFERENCES doctors(id),
		template_id UUID REFERENCES schedule_templates(id),
		start_time  TIMESTAMPTZ NOT NULL,
		end_time    TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL DEFAULT 'free',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// Uniqueness on (doctor_id, start_time) is what makes slot generation
	// idempotent and keeps a doctor's slots from overlapping at the head.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_time_slots_doctor_start
		ON time_slots (doctor_id, start_time)`,
	// No two slots for a doctor may overlap in wall-clock time, whichever
	// template produced them.
	`DO $$ BEGIN
		ALTER TABLE time_slots ADD CONSTRAINT ex_time_slots_doctor_overlap
			EXCLUDE USING gist (doctor_id WITH =, tstzrange(start_time, end_time) WITH &&);
	EXCEPTION WHEN duplicate_object THEN NULL; WHEN duplicate_table THEN NULL;
	END $$`,
	`CREATE INDEX IF NOT EXISTS ix_time_slots_doctor_status
		ON time_slots (doctor_id, status, start_time)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id            UUID PRIMARY KEY,
		slot_id       UUID NOT NULL REFERENCES time_slots(id),
		patient_id    UUID NOT NULL REFERENCES patients(id),
		doctor_id     UUID NOT NULL REFERENCES doctors(id),
		status        TEXT NOT NULL DEFAULT 'pending',
		cancel_reason TEXT,
		cancel_note   TEXT,
		payment_id    UUID,
		expires_at    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// At most one non-cancelled appointment per slot.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_active_slot
		ON appointments (slot_id) WHERE status <> 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS ix_appointments_patient
		ON appointments (patient_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              UUID PRIMARY KEY,
		appointment_id  UUID REFERENCES appointments(id),
		external_txn_id TEXT NOT NULL,
		amount_cents    BIGINT NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		raw_payload     JSONB,
		processed_at    TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// The authoritative webhook de-duplication mechanism.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_external_txn
		ON payments (external_txn_id)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id UUID,
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema against the given pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

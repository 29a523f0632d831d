package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes lifecycle records and derived rows to Postgres
// using multi-row INSERTs. Batches are idempotent: replaying a batch after
// a crash hits the conflict targets and writes nothing twice.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in stokvault.events
type EventRow struct {
	Sequence  int64
	EventType string
	RoundID   int64
	MemberID  *string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// RoundRow represents a row in stokvault.rounds, written at settlement.
type RoundRow struct {
	RoundID         int64
	Recipient       string
	HealthFactorBps int64
	Violation       bool
	DeficitTotal    int64
	PenaltyTotal    int64
	CompletedAt     time.Time
}

// ViolationRow represents a row in stokvault.violations
type ViolationRow struct {
	RoundID         int64
	MemberID        string
	HealthFactorBps int64
	DeficitTotal    int64
	PenaltyTotal    int64
	RecordedAt      time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// DB exposes the handle for transaction control.
func (w *EventLogWriter) DB() *sql.DB {
	return w.db
}

// WriteEventBatch writes a batch of lifecycle records inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO stokvault.events
		(sequence, event_type, round_id, member_id, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*6)

	for i, e := range events {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			e.Sequence, e.EventType, e.RoundID, e.MemberID, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteRound upserts the settlement summary for a round.
func (w *EventLogWriter) WriteRound(ctx context.Context, tx *sql.Tx, r RoundRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stokvault.rounds
			(round_id, recipient, health_factor_bps, violation, deficit_total, penalty_total, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (round_id) DO UPDATE SET
			health_factor_bps = EXCLUDED.health_factor_bps,
			violation = EXCLUDED.violation,
			deficit_total = EXCLUDED.deficit_total,
			penalty_total = EXCLUDED.penalty_total,
			completed_at = EXCLUDED.completed_at`,
		r.RoundID, r.Recipient, r.HealthFactorBps, r.Violation, r.DeficitTotal, r.PenaltyTotal, r.CompletedAt,
	)
	return err
}

// WriteViolation appends a violation record.
func (w *EventLogWriter) WriteViolation(ctx context.Context, tx *sql.Tx, v ViolationRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stokvault.violations
			(round_id, member_id, health_factor_bps, deficit_total, penalty_total, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id, member_id) DO NOTHING`,
		v.RoundID, v.MemberID, v.HealthFactorBps, v.DeficitTotal, v.PenaltyTotal, v.RecordedAt,
	)
	return err
}

// WriteHealthFactor upserts a member's latest settled health factor.
func (w *EventLogWriter) WriteHealthFactor(ctx context.Context, tx *sql.Tx, memberID string, healthFactorBps int64, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stokvault.member_health (member_id, health_factor_bps, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO UPDATE SET
			health_factor_bps = EXCLUDED.health_factor_bps,
			updated_at = EXCLUDED.updated_at`,
		memberID, healthFactorBps, at,
	)
	return err
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"StokVault/internal/event"
	"StokVault/internal/observability"
)

// Worker drains the lifecycle event channel and batch-writes to Postgres.
// Settlement events additionally project into the rounds, violations, and
// member_health tables so history queries don't scan the raw log.
type Worker struct {
	writer       *EventLogWriter
	input        <-chan event.Record
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	input <-chan event.Record,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          observability.NewLogger("persistence"),
	}
}

// Run batches incoming records and flushes when the batch fills or the
// flush timeout expires. Blocks until ctx is cancelled or the channel
// closes; a final flush runs on either exit path.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]event.Record, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case rec, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or the context is cancelled. Records are never dropped; on shutdown a
// final flush runs on a background context.
func (w *Worker) flushWithRetry(ctx context.Context, batch []event.Record) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Int("records", len(batch)).Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []event.Record) error {
	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	rows := make([]EventRow, 0, len(batch))
	for _, rec := range batch {
		var memberID *string
		if rec.MemberID != nil {
			s := rec.MemberID.String()
			memberID = &s
		}
		rows = append(rows, EventRow{
			Sequence:  rec.Sequence,
			EventType: rec.Type.String(),
			RoundID:   rec.RoundID,
			MemberID:  memberID,
			Payload:   rec.Payload,
			Timestamp: rec.Timestamp,
		})
	}

	if err := w.writer.WriteEventBatch(ctx, tx, rows); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	for _, rec := range batch {
		if err := w.project(ctx, tx, rec); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("project").Inc()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistEventsWritten.Add(float64(len(batch)))
		w.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Sequence))
	}
	return nil
}

// roundRowFromEvent maps a settled round's payload onto its projection row.
func roundRowFromEvent(rec event.Record, p event.RoundCompleted) RoundRow {
	recipient := ""
	if rec.MemberID != nil {
		recipient = rec.MemberID.String()
	}
	return RoundRow{
		RoundID:         p.RoundID,
		Recipient:       recipient,
		HealthFactorBps: p.HealthFactorBps,
		Violation:       p.Violation,
		DeficitTotal:    p.DeficitTotal,
		PenaltyTotal:    p.PenaltyTotal,
		CompletedAt:     rec.Timestamp,
	}
}

// violationRowFromEvent maps a violation payload onto its projection row.
func violationRowFromEvent(rec event.Record, p event.ViolationRecorded) ViolationRow {
	return ViolationRow{
		RoundID:         p.RoundID,
		MemberID:        p.MemberID.String(),
		HealthFactorBps: p.HealthFactorBps,
		DeficitTotal:    p.DeficitTotal,
		PenaltyTotal:    p.PenaltyTotal,
		RecordedAt:      rec.Timestamp,
	}
}

// project derives summary rows from settlement events.
func (w *Worker) project(ctx context.Context, tx *sql.Tx, rec event.Record) error {
	switch rec.Type {
	case event.EventTypeRoundCompleted:
		var p event.RoundCompleted
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			w.log.Warn().Err(err).Int64("sequence", rec.Sequence).Msg("malformed RoundCompleted payload, skipping projection")
			return nil
		}
		return w.writer.WriteRound(ctx, tx, roundRowFromEvent(rec, p))

	case event.EventTypeViolationRecorded:
		var p event.ViolationRecorded
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			w.log.Warn().Err(err).Int64("sequence", rec.Sequence).Msg("malformed ViolationRecorded payload, skipping projection")
			return nil
		}
		if err := w.writer.WriteViolation(ctx, tx, violationRowFromEvent(rec, p)); err != nil {
			return err
		}
		return w.writer.WriteHealthFactor(ctx, tx, p.MemberID.String(), p.HealthFactorBps, rec.Timestamp)

	default:
		return nil
	}
}

package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"StokVault/internal/event"
)

// ============================================================================
// Test: Settlement projections
// ============================================================================

// A violation round's deficit and penalty must survive the trip through the
// RoundCompleted payload into the rounds projection row, or history queries
// report every violation as zero-cost.
func TestProjection_RoundRowCarriesDeficitAndPenalty(t *testing.T) {
	recipient := uuid.New()
	at := time.Unix(1_757_000_000, 0)

	rec := event.NewRecord(7, event.EventTypeRoundCompleted, 3, &recipient, at, event.RoundCompleted{
		RoundID:         3,
		HealthFactorBps: 3_000,
		Violation:       true,
		DeficitTotal:    900,
		PenaltyTotal:    180,
		ScoreBps:        3_000,
	})

	// Decode the way the worker does, from the marshaled payload.
	var p event.RoundCompleted
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	row := roundRowFromEvent(rec, p)
	if row.RoundID != 3 || row.Recipient != recipient.String() {
		t.Errorf("row identity: %+v", row)
	}
	if !row.Violation || row.HealthFactorBps != 3_000 {
		t.Errorf("row assessment: %+v", row)
	}
	if row.DeficitTotal != 900 {
		t.Errorf("deficit: got %d, want 900", row.DeficitTotal)
	}
	if row.PenaltyTotal != 180 {
		t.Errorf("penalty: got %d, want 180", row.PenaltyTotal)
	}
	if !row.CompletedAt.Equal(at) {
		t.Errorf("completed at: got %v, want %v", row.CompletedAt, at)
	}
}

func TestProjection_CleanRoundRowZeroPenalty(t *testing.T) {
	recipient := uuid.New()
	rec := event.NewRecord(8, event.EventTypeRoundCompleted, 4, &recipient, time.Unix(1_757_000_100, 0), event.RoundCompleted{
		RoundID:         4,
		HealthFactorBps: 9_800,
		Violation:       false,
		ScoreBps:        10_100,
	})

	var p event.RoundCompleted
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	row := roundRowFromEvent(rec, p)
	if row.Violation || row.DeficitTotal != 0 || row.PenaltyTotal != 0 {
		t.Errorf("clean round row: %+v", row)
	}
}

func TestProjection_ViolationRow(t *testing.T) {
	member := uuid.New()
	at := time.Unix(1_757_000_200, 0)

	rec := event.NewRecord(9, event.EventTypeViolationRecorded, 3, &member, at, event.ViolationRecorded{
		RoundID:         3,
		MemberID:        member,
		HealthFactorBps: 3_000,
		DeficitTotal:    900,
		PenaltyTotal:    180,
	})

	var p event.ViolationRecorded
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	row := violationRowFromEvent(rec, p)
	if row.RoundID != 3 || row.MemberID != member.String() {
		t.Errorf("row identity: %+v", row)
	}
	if row.DeficitTotal != 900 || row.PenaltyTotal != 180 {
		t.Errorf("row amounts: %+v", row)
	}
	if !row.RecordedAt.Equal(at) {
		t.Errorf("recorded at: got %v, want %v", row.RecordedAt, at)
	}
}

package state

import (
	"github.com/google/uuid"
)

// PenaltyMode selects how a health violation maps to a score deduction.
type PenaltyMode int32

const (
	// PenaltyModeDynamic deducts the health-factor shortfall itself: a
	// recipient who preserved 40% of the pool loses more score than one
	// who preserved 94%.
	PenaltyModeDynamic PenaltyMode = iota

	// PenaltyModeFixed deducts a flat amount per violation regardless of
	// shortfall size.
	PenaltyModeFixed
)

func (m PenaltyMode) String() string {
	switch m {
	case PenaltyModeDynamic:
		return "dynamic"
	case PenaltyModeFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// ScoringPolicy holds the score parameters in basis points.
type ScoringPolicy struct {
	BaseBps      int64
	BonusBps     int64
	CeilingBps   int64
	FixedPenalty int64
	Mode         PenaltyMode
}

// DefaultScoringPolicy: members start at 10000, earn 100 per clean round up
// to 15000, and lose either the dynamic shortfall or a flat 2000 per
// violation. Floor is zero.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		BaseBps:      10_000,
		BonusBps:     100,
		CeilingBps:   15_000,
		FixedPenalty: 2_000,
		Mode:         PenaltyModeDynamic,
	}
}

// ApplyClean returns the score after a clean round completion, clamped to
// the ceiling.
func (sp ScoringPolicy) ApplyClean(score int64) int64 {
	score += sp.BonusBps
	if score > sp.CeilingBps {
		score = sp.CeilingBps
	}
	return score
}

// ApplyViolation returns the score after a health violation. In dynamic
// mode the deduction is base minus the measured health factor (the
// shortfall); in fixed mode it is the flat penalty. Floor is zero.
func (sp ScoringPolicy) ApplyViolation(score, healthFactorBps int64) int64 {
	var deduction int64
	switch sp.Mode {
	case PenaltyModeFixed:
		deduction = sp.FixedPenalty
	default:
		deduction = sp.BaseBps - healthFactorBps
		if deduction < 0 {
			deduction = 0
		}
	}

	score -= deduction
	if score < 0 {
		score = 0
	}
	return score
}

// ScoreRecord is a member's cumulative scoring history.
type ScoreRecord struct {
	MemberID        uuid.UUID
	ScoreBps        int64
	RoundsCompleted int64
	ViolationCount  int64
	LastUpdateRound int64
}

// ScoreBook tracks per-member score history alongside the live registry
// score. The book survives member exit, so a returning member's record
// carries its violation count.
type ScoreBook struct {
	records map[uuid.UUID]*ScoreRecord
}

func NewScoreBook() *ScoreBook {
	return &ScoreBook{
		records: make(map[uuid.UUID]*ScoreRecord),
	}
}

func (b *ScoreBook) record(id uuid.UUID, base int64) *ScoreRecord {
	rec := b.records[id]
	if rec == nil {
		rec = &ScoreRecord{MemberID: id, ScoreBps: base}
		b.records[id] = rec
	}
	return rec
}

// RecordClean applies a clean-completion bonus to the member's book score.
func (b *ScoreBook) RecordClean(id uuid.UUID, round int64, policy ScoringPolicy) *ScoreRecord {
	rec := b.record(id, policy.BaseBps)
	rec.ScoreBps = policy.ApplyClean(rec.ScoreBps)
	rec.RoundsCompleted++
	rec.LastUpdateRound = round
	return rec
}

// RecordViolation applies a violation deduction to the member's book score.
func (b *ScoreBook) RecordViolation(id uuid.UUID, round, healthFactorBps int64, policy ScoringPolicy) *ScoreRecord {
	rec := b.record(id, policy.BaseBps)
	rec.ScoreBps = policy.ApplyViolation(rec.ScoreBps, healthFactorBps)
	rec.RoundsCompleted++
	rec.ViolationCount++
	rec.LastUpdateRound = round
	return rec
}

// Get returns the member's record, or nil if the member never completed a
// round.
func (b *ScoreBook) Get(id uuid.UUID) *ScoreRecord {
	return b.records[id]
}

package state

import (
	"time"

	"github.com/google/uuid"

	"StokVault/internal/ledger"
)

// RoundState tracks the lifecycle of a savings round
type RoundState int32

const (
	RoundStateDeposit RoundState = iota
	RoundStateActive
	RoundStatePayout
	RoundStateCompleted
)

func (rs RoundState) String() string {
	switch rs {
	case RoundStateDeposit:
		return "Deposit"
	case RoundStateActive:
		return "Active"
	case RoundStatePayout:
		return "Payout"
	case RoundStateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions. The machine only moves
// forward; a completed round is terminal.
func (rs RoundState) CanTransitionTo(next RoundState) bool {
	validTransitions := map[RoundState][]RoundState{
		RoundStateDeposit: {
			RoundStateActive,
		},
		RoundStateActive: {
			RoundStatePayout,
			RoundStateCompleted, // unclaimed round settled directly
		},
		RoundStatePayout: {
			RoundStateCompleted,
		},
	}

	allowed, ok := validTransitions[rs]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if next == allowedState {
			return true
		}
	}
	return false
}

// PoolAsset is one asset leg of a round's pool snapshot.
type PoolAsset struct {
	Asset         ledger.AssetID
	WeightLib     int64 // lib precision
	InitialAmount int64 // custody balance at round start
	LockedAmount  int64 // re-locked on the recipient at claim, 0 if unclaimed
}

// Round is one payout cycle of the rotation.
type Round struct {
	ID        int64
	Recipient uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Assets    []PoolAsset
	State     RoundState
	Claimed   bool

	// Settlement results, populated once when the round is assessed. A
	// retried completion after a failed transfer-back must not re-apply
	// penalties, so assessment is recorded separately from completion.
	Assessed        bool
	HealthFactorBps int64
	DeficitTotal    int64
	PenaltyTotal    int64

	Version int64
}

// TransitionTo applies a state change after validating it.
func (r *Round) TransitionTo(next RoundState) bool {
	if !r.State.CanTransitionTo(next) {
		return false
	}
	r.State = next
	r.Version++
	return true
}

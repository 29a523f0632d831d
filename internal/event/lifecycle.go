package event

import (
	"github.com/google/uuid"
)

// AssetAmount is one asset leg in an event payload. Asset is the wrapped
// symbol, amounts are base units.
type AssetAmount struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// MemberJoined is emitted after a deposit settles and the member is
// registered.
type MemberJoined struct {
	MemberID   uuid.UUID     `json:"member_id"`
	Position   int           `json:"position"`
	Deposits   []AssetAmount `json:"deposits"`
	WeightsBps []int64       `json:"weights_bps"`
	TotalValue int64         `json:"total_value"`
}

// MemberExited is emitted after deposits are returned and the member is
// deactivated.
type MemberExited struct {
	MemberID uuid.UUID     `json:"member_id"`
	Returned []AssetAmount `json:"returned"`
	ScoreBps int64         `json:"score_bps"`
}

// RoundStarted is emitted when a round opens with a pool snapshot.
type RoundStarted struct {
	RoundID   int64         `json:"round_id"`
	Recipient uuid.UUID     `json:"recipient"`
	Pool      []AssetAmount `json:"pool"`
	EndTime   int64         `json:"end_time_unix"`
}

// PayoutClaimed is emitted when the recipient takes custody of the pool.
type PayoutClaimed struct {
	RoundID   int64         `json:"round_id"`
	Recipient uuid.UUID     `json:"recipient"`
	Granted   []AssetAmount `json:"granted"`
}

// RoundCompleted is emitted when a round settles, clean or not. Deficit and
// penalty are zero on a clean settlement.
type RoundCompleted struct {
	RoundID         int64 `json:"round_id"`
	HealthFactorBps int64 `json:"health_factor_bps"`
	Violation       bool  `json:"violation"`
	DeficitTotal    int64 `json:"deficit_total"`
	PenaltyTotal    int64 `json:"penalty_total"`
	ScoreBps        int64 `json:"score_bps"`
}

// ViolationRecorded is emitted alongside RoundCompleted when the health
// factor fell below threshold.
type ViolationRecorded struct {
	RoundID         int64         `json:"round_id"`
	MemberID        uuid.UUID     `json:"member_id"`
	HealthFactorBps int64         `json:"health_factor_bps"`
	DeficitTotal    int64         `json:"deficit_total"`
	PenaltyTotal    int64         `json:"penalty_total"`
	PenaltySplit    []AssetAmount `json:"penalty_split"`
}

// InsuranceDistributed is emitted after the insurance pool is paid out.
type InsuranceDistributed struct {
	Payouts []struct {
		MemberID uuid.UUID `json:"member_id"`
		Asset    string    `json:"asset"`
		Amount   int64     `json:"amount"`
	} `json:"payouts"`
	TotalByAsset []AssetAmount `json:"total_by_asset"`
}

package query

import "github.com/google/uuid"

// MemberResponse represents a member record for API queries.
type MemberResponse struct {
	MemberID           uuid.UUID `json:"member_id"`
	Position           int       `json:"position"`
	JoinedRound        int64     `json:"joined_round"`
	IsActive           bool      `json:"is_active"`
	HasReceivedPayout  bool      `json:"has_received_payout"`
	ScoreBps           int64     `json:"score_bps"`
	Assets             []string  `json:"assets"`
	Deposits           []int64   `json:"deposits"`
	WeightsBps         []int64   `json:"weights_bps"`
	TotalValue         int64     `json:"total_value"`
	LatestHealthFactor int64     `json:"latest_health_factor_bps"`
}

// PoolAssetResponse is one asset leg of a round for API queries.
type PoolAssetResponse struct {
	Asset         string `json:"asset"`
	WeightBps     int64  `json:"weight_bps"`
	InitialAmount int64  `json:"initial_amount"`
}

// RoundResponse represents a round for API queries.
type RoundResponse struct {
	RoundID         int64               `json:"round_id"`
	Recipient       uuid.UUID           `json:"recipient"`
	State           string              `json:"state"`
	Claimed         bool                `json:"claimed"`
	StartTime       int64               `json:"start_time_unix"`
	EndTime         int64               `json:"end_time_unix"`
	Assets          []PoolAssetResponse `json:"assets"`
	HealthFactorBps int64               `json:"health_factor_bps,omitempty"`
	DeficitTotal    int64               `json:"deficit_total,omitempty"`
	PenaltyTotal    int64               `json:"penalty_total,omitempty"`
}

// RoundHistoryEntry is a settled round read from the projection tables.
type RoundHistoryEntry struct {
	RoundID         int64     `json:"round_id"`
	Recipient       uuid.UUID `json:"recipient"`
	HealthFactorBps int64     `json:"health_factor_bps"`
	Violation       bool      `json:"violation"`
	DeficitTotal    int64     `json:"deficit_total"`
	PenaltyTotal    int64     `json:"penalty_total"`
	CompletedAt     int64     `json:"completed_at_unix"`
}

// ViolationHistoryEntry is a violation record read from the projection
// tables.
type ViolationHistoryEntry struct {
	RoundID         int64     `json:"round_id"`
	MemberID        uuid.UUID `json:"member_id"`
	HealthFactorBps int64     `json:"health_factor_bps"`
	DeficitTotal    int64     `json:"deficit_total"`
	PenaltyTotal    int64     `json:"penalty_total"`
	RecordedAt      int64     `json:"recorded_at_unix"`
}

// CompositionLegResponse is one asset slice of a pool composition.
type CompositionLegResponse struct {
	Asset     string `json:"asset"`
	Balance   int64  `json:"balance"`
	WeightBps int64  `json:"weight_bps"`
}

// SpotPriceResponse quotes the out asset in units of the in asset, at 1e18
// fixed-point precision.
type SpotPriceResponse struct {
	AssetIn  string `json:"asset_in"`
	AssetOut string `json:"asset_out"`
	Price    int64  `json:"price"`
}

// CompositionResponse is the current round's pool composition.
type CompositionResponse struct {
	RoundID    int64                    `json:"round_id"`
	Invariant  int64                    `json:"invariant"`
	Legs       []CompositionLegResponse `json:"legs"`
	SpotPrices []SpotPriceResponse      `json:"spot_prices"`
}

// ScoreResponse represents a member's scoring history for API queries.
type ScoreResponse struct {
	MemberID        uuid.UUID `json:"member_id"`
	ScoreBps        int64     `json:"score_bps"`
	RoundsCompleted int64     `json:"rounds_completed"`
	ViolationCount  int64     `json:"violation_count"`
	LastUpdateRound int64     `json:"last_update_round"`
}

package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"StokVault/internal/core"
	"StokVault/internal/ledger"
	"StokVault/internal/member"
	"StokVault/internal/poolmath"
	"StokVault/internal/state"
)

// Service provides read-only access: live state comes from the vault,
// history comes from the Postgres projection tables. The db handle may be
// nil, in which case history queries fail cleanly.
type Service struct {
	vault *core.Vault
	db    *sql.DB
}

func NewService(vault *core.Vault, db *sql.DB) *Service {
	return &Service{vault: vault, db: db}
}

// Member returns a member's registry record.
func (s *Service) Member(id uuid.UUID) (*MemberResponse, error) {
	m := s.vault.Member(id)
	if m == nil {
		return nil, member.ErrNotMember
	}
	return memberResponse(m), nil
}

// NextRecipient previews the upcoming payout recipient.
func (s *Service) NextRecipient() (*MemberResponse, error) {
	m, err := s.vault.NextRecipient()
	if err != nil {
		return nil, err
	}
	return memberResponse(m), nil
}

func memberResponse(m *member.Member) *MemberResponse {
	assets := make([]string, len(m.Assets))
	for i, a := range m.Assets {
		assets[i], _ = ledger.GetAssetName(a)
	}
	return &MemberResponse{
		MemberID:           m.ID,
		Position:           m.Position,
		JoinedRound:        m.JoinedRound,
		IsActive:           m.IsActive,
		HasReceivedPayout:  m.HasReceivedPayout,
		ScoreBps:           m.ScoreBps,
		Assets:             assets,
		Deposits:           m.Deposits,
		WeightsBps:         m.WeightsBps,
		TotalValue:         m.TotalValue(),
		LatestHealthFactor: m.LatestHealthFactor,
	}
}

// CurrentRound returns the most recent round, or ErrRoundNotActive when no
// round has ever started.
func (s *Service) CurrentRound() (*RoundResponse, error) {
	r := s.vault.CurrentRound()
	if r == nil {
		return nil, core.ErrRoundNotActive
	}
	return roundResponse(r), nil
}

// Round returns a round by id.
func (s *Service) Round(id int64) (*RoundResponse, error) {
	r := s.vault.Round(id)
	if r == nil {
		return nil, core.ErrRoundNotActive
	}
	return roundResponse(r), nil
}

func roundResponse(r *state.Round) *RoundResponse {
	assets := make([]PoolAssetResponse, len(r.Assets))
	for i, pa := range r.Assets {
		name, _ := ledger.GetAssetName(pa.Asset)
		assets[i] = PoolAssetResponse{
			Asset:         name,
			WeightBps:     poolmath.ToBpsWeight(pa.WeightLib),
			InitialAmount: pa.InitialAmount,
		}
	}
	return &RoundResponse{
		RoundID:         r.ID,
		Recipient:       r.Recipient,
		State:           r.State.String(),
		Claimed:         r.Claimed,
		StartTime:       r.StartTime.Unix(),
		EndTime:         r.EndTime.Unix(),
		Assets:          assets,
		HealthFactorBps: r.HealthFactorBps,
		DeficitTotal:    r.DeficitTotal,
		PenaltyTotal:    r.PenaltyTotal,
	}
}

// Composition reports the current round's pool composition: custody
// balances, weights, pairwise spot prices, and the pool invariant.
func (s *Service) Composition() (*CompositionResponse, error) {
	comp, err := s.vault.Composition()
	if err != nil {
		return nil, err
	}

	resp := &CompositionResponse{
		RoundID:   comp.RoundID,
		Invariant: comp.Invariant,
	}
	for _, leg := range comp.Legs {
		name, _ := ledger.GetAssetName(leg.Asset)
		resp.Legs = append(resp.Legs, CompositionLegResponse{
			Asset:     name,
			Balance:   leg.Balance,
			WeightBps: leg.WeightBps,
		})
	}
	for _, sp := range comp.SpotPrices {
		in, _ := ledger.GetAssetName(sp.AssetIn)
		out, _ := ledger.GetAssetName(sp.AssetOut)
		resp.SpotPrices = append(resp.SpotPrices, SpotPriceResponse{
			AssetIn:  in,
			AssetOut: out,
			Price:    sp.Price,
		})
	}
	return resp, nil
}

// HealthFactor returns the member's last settled health factor in bps.
func (s *Service) HealthFactor(id uuid.UUID) (int64, error) {
	return s.vault.HealthFactor(id)
}

// InsuranceBalance returns the insurance pool balance for an asset.
func (s *Service) InsuranceBalance(asset string) (int64, error) {
	return s.vault.InsuranceBalance(asset)
}

// Score returns the member's scoring history.
func (s *Service) Score(id uuid.UUID) (*ScoreResponse, error) {
	rec := s.vault.ScoreRecord(id)
	if rec == nil {
		return nil, member.ErrNotMember
	}
	return &ScoreResponse{
		MemberID:        rec.MemberID,
		ScoreBps:        rec.ScoreBps,
		RoundsCompleted: rec.RoundsCompleted,
		ViolationCount:  rec.ViolationCount,
		LastUpdateRound: rec.LastUpdateRound,
	}, nil
}

// RoundHistory lists settled rounds from the projection tables, most
// recent first.
func (s *Service) RoundHistory(ctx context.Context, limit int) ([]RoundHistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("round history: no database configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, recipient, health_factor_bps, violation, deficit_total, penalty_total,
		       EXTRACT(EPOCH FROM completed_at)::BIGINT
		FROM stokvault.rounds
		ORDER BY round_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("round history: %w", err)
	}
	defer rows.Close()

	var out []RoundHistoryEntry
	for rows.Next() {
		var e RoundHistoryEntry
		if err := rows.Scan(&e.RoundID, &e.Recipient, &e.HealthFactorBps, &e.Violation,
			&e.DeficitTotal, &e.PenaltyTotal, &e.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ViolationHistory lists a member's violations from the projection tables.
func (s *Service) ViolationHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]ViolationHistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("violation history: no database configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, member_id, health_factor_bps, deficit_total, penalty_total,
		       EXTRACT(EPOCH FROM recorded_at)::BIGINT
		FROM stokvault.violations
		WHERE member_id = $1
		ORDER BY round_id DESC
		LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("violation history: %w", err)
	}
	defer rows.Close()

	var out []ViolationHistoryEntry
	for rows.Next() {
		var e ViolationHistoryEntry
		if err := rows.Scan(&e.RoundID, &e.MemberID, &e.HealthFactorBps,
			&e.DeficitTotal, &e.PenaltyTotal, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

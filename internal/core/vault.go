package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StokVault/internal/event"
	"StokVault/internal/ledger"
	"StokVault/internal/member"
	"StokVault/internal/observability"
	"StokVault/internal/state"
)

// Vault is the top-level façade for one pool instance. It serializes every
// mutating entry point behind one lock (the engine itself is
// single-threaded), emits lifecycle events, and records metrics. Read
// queries share the lock in read mode.
type Vault struct {
	mu      sync.RWMutex
	engine  *RoundEngine
	log     zerolog.Logger
	metrics *observability.Metrics

	// events receives lifecycle records. Sends never block: a full
	// channel drops the record and counts the drop, the same policy as
	// any other non-critical downstream.
	events   chan<- event.Record
	sequence int64
}

func NewVault(engine *RoundEngine, events chan<- event.Record, metrics *observability.Metrics) *Vault {
	return &Vault{
		engine:  engine,
		log:     observability.NewLogger("vault"),
		metrics: metrics,
		events:  events,
	}
}

// Engine exposes the underlying engine for tests and wiring.
func (v *Vault) Engine() *RoundEngine {
	return v.engine
}

func (v *Vault) emit(et event.EventType, roundID int64, memberID *uuid.UUID, payload interface{}) {
	if v.events == nil {
		return
	}
	v.sequence++
	rec := event.NewRecord(v.sequence, et, roundID, memberID, v.engine.now(), payload)

	select {
	case v.events <- rec:
		if v.metrics != nil {
			v.metrics.EventsEmitted.Inc()
		}
	default:
		if v.metrics != nil {
			v.metrics.EventsDropped.Inc()
		}
		v.log.Warn().Str("event", et.String()).Int64("sequence", rec.Sequence).Msg("event channel full, record dropped")
	}
}

func (v *Vault) observe(op string, start time.Time, err error) {
	if v.metrics == nil {
		return
	}
	v.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		v.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	} else {
		v.metrics.OpsApplied.WithLabelValues(op).Inc()
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnregisteredAsset),
		errors.Is(err, ErrBelowMinStake),
		errors.Is(err, member.ErrInvalidInput),
		errors.Is(err, member.ErrAlreadyMember):
		return "validation"
	case errors.Is(err, ErrRoundNotActive),
		errors.Is(err, ErrPreviousRoundNotCompleted),
		errors.Is(err, ErrNotRecipient),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrRoundNotEnded),
		errors.Is(err, ErrMustCompleteRound),
		errors.Is(err, ErrRoundInProgress),
		errors.Is(err, member.ErrNotMember),
		errors.Is(err, member.ErrNoMembers),
		errors.Is(err, state.ErrNoEligibleMembers):
		return "precondition"
	default:
		return "resource"
	}
}

func assetAmounts(assets []ledger.AssetID, amounts []int64) []event.AssetAmount {
	out := make([]event.AssetAmount, 0, len(assets))
	for i, a := range assets {
		name, _ := ledger.GetAssetName(a)
		out = append(out, event.AssetAmount{Asset: name, Amount: amounts[i]})
	}
	return out
}

// Join admits a member with multi-asset deposits at declared weights.
func (v *Vault) Join(id uuid.UUID, assetNames []string, deposits, weightsBps []int64) (m *member.Member, err error) {
	start := time.Now()
	defer func() { v.observe("join", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	m, err = v.engine.Join(id, assetNames, deposits, weightsBps)
	if err != nil {
		v.log.Debug().Err(err).Str("member", id.String()).Msg("join rejected")
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.ActiveMembers.Set(float64(v.engine.registry.ActiveCount()))
	}
	v.log.Info().Str("member", id.String()).Int("position", m.Position).Int64("total_value", m.TotalValue()).Msg("member joined")

	v.emit(event.EventTypeMemberJoined, 0, &m.ID, event.MemberJoined{
		MemberID:   m.ID,
		Position:   m.Position,
		Deposits:   assetAmounts(m.Assets, m.Deposits),
		WeightsBps: m.WeightsBps,
		TotalValue: m.TotalValue(),
	})
	return m, nil
}

// Exit returns a member's deposits and deactivates them.
func (v *Vault) Exit(id uuid.UUID) (m *member.Member, err error) {
	start := time.Now()
	defer func() { v.observe("exit", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	m, err = v.engine.Exit(id)
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.ActiveMembers.Set(float64(v.engine.registry.ActiveCount()))
	}
	v.log.Info().Str("member", id.String()).Int64("score_bps", m.ScoreBps).Msg("member exited")

	v.emit(event.EventTypeMemberExited, 0, &m.ID, event.MemberExited{
		MemberID: m.ID,
		Returned: assetAmounts(m.Assets, m.Deposits),
		ScoreBps: m.ScoreBps,
	})
	return m, nil
}

// StartRound opens a round over the named assets at the given weights.
func (v *Vault) StartRound(caller uuid.UUID, assetNames []string, weightsBps []int64) (r *state.Round, err error) {
	start := time.Now()
	defer func() { v.observe("start_round", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	r, err = v.engine.StartRound(caller, assetNames, weightsBps)
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.RoundsStarted.Inc()
		v.metrics.CurrentRoundID.Set(float64(r.ID))
	}
	v.log.Info().Int64("round", r.ID).Str("recipient", r.Recipient.String()).Time("end_time", r.EndTime).Msg("round started")

	pool := make([]event.AssetAmount, 0, len(r.Assets))
	for _, pa := range r.Assets {
		name, _ := ledger.GetAssetName(pa.Asset)
		pool = append(pool, event.AssetAmount{Asset: name, Amount: pa.InitialAmount})
	}
	rec := r.Recipient
	v.emit(event.EventTypeRoundStarted, r.ID, &rec, event.RoundStarted{
		RoundID:   r.ID,
		Recipient: r.Recipient,
		Pool:      pool,
		EndTime:   r.EndTime.Unix(),
	})
	return r, nil
}

// Claim hands the current round's pool to its recipient.
func (v *Vault) Claim(caller uuid.UUID) (r *state.Round, err error) {
	start := time.Now()
	defer func() { v.observe("claim", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	r, err = v.engine.Claim(caller)
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.PayoutsClaimed.Inc()
	}
	v.log.Info().Int64("round", r.ID).Str("recipient", r.Recipient.String()).Msg("payout claimed")

	granted := make([]event.AssetAmount, 0, len(r.Assets))
	for _, pa := range r.Assets {
		name, _ := ledger.GetAssetName(pa.Asset)
		granted = append(granted, event.AssetAmount{Asset: name, Amount: pa.InitialAmount})
	}
	rec := r.Recipient
	v.emit(event.EventTypePayoutClaimed, r.ID, &rec, event.PayoutClaimed{
		RoundID:   r.ID,
		Recipient: r.Recipient,
		Granted:   granted,
	})
	return r, nil
}

// Complete settles the current round.
func (v *Vault) Complete(caller uuid.UUID) (res *CompleteResult, err error) {
	start := time.Now()
	defer func() { v.observe("complete", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	res, err = v.engine.Complete(caller)
	if err != nil {
		v.log.Warn().Err(err).Msg("round completion failed")
		return res, err
	}

	r := res.Round
	if v.metrics != nil {
		v.metrics.RoundsCompleted.Inc()
		v.metrics.HealthFactorBps.Observe(float64(res.HealthFactorBps))
		if res.Violation {
			v.metrics.ViolationsTotal.Inc()
			for _, leg := range res.PenaltySplit {
				name, _ := ledger.GetAssetName(leg.Asset)
				v.metrics.PenaltyUnits.WithLabelValues(name).Add(float64(leg.Amount))
				v.metrics.InsuranceBalance.WithLabelValues(name).Set(float64(v.engine.insurance.Balance(leg.Asset)))
			}
		}
	}
	v.log.Info().
		Int64("round", r.ID).
		Int64("health_factor_bps", res.HealthFactorBps).
		Bool("violation", res.Violation).
		Int64("penalty", res.PenaltyTotal).
		Msg("round completed")

	rec := r.Recipient
	if res.Violation {
		split := make([]event.AssetAmount, 0, len(res.PenaltySplit))
		for _, leg := range res.PenaltySplit {
			name, _ := ledger.GetAssetName(leg.Asset)
			split = append(split, event.AssetAmount{Asset: name, Amount: leg.Amount})
		}
		v.emit(event.EventTypeViolationRecorded, r.ID, &rec, event.ViolationRecorded{
			RoundID:         r.ID,
			MemberID:        r.Recipient,
			HealthFactorBps: res.HealthFactorBps,
			DeficitTotal:    res.DeficitTotal,
			PenaltyTotal:    res.PenaltyTotal,
			PenaltySplit:    split,
		})
	}
	v.emit(event.EventTypeRoundCompleted, r.ID, &rec, event.RoundCompleted{
		RoundID:         r.ID,
		HealthFactorBps: res.HealthFactorBps,
		Violation:       res.Violation,
		DeficitTotal:    res.DeficitTotal,
		PenaltyTotal:    res.PenaltyTotal,
		ScoreBps:        res.ScoreBps,
	})
	return res, nil
}

// DistributeInsurance pays the accumulated penalty pool out by score.
func (v *Vault) DistributeInsurance(caller uuid.UUID) (res *DistributeResult, err error) {
	start := time.Now()
	defer func() { v.observe("distribute_insurance", start, err) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	res, err = v.engine.DistributeInsurance(caller)
	if err != nil {
		return nil, err
	}

	payload := event.InsuranceDistributed{}
	totals := make([]event.AssetAmount, 0, len(res.Totals))
	for asset, amount := range res.Totals {
		name, _ := ledger.GetAssetName(asset)
		totals = append(totals, event.AssetAmount{Asset: name, Amount: amount})
		if v.metrics != nil {
			v.metrics.InsuranceDistributed.WithLabelValues(name).Add(float64(amount))
			v.metrics.InsuranceBalance.WithLabelValues(name).Set(0)
		}
	}
	payload.TotalByAsset = totals
	for _, po := range res.Payouts {
		name, _ := ledger.GetAssetName(po.Asset)
		payload.Payouts = append(payload.Payouts, struct {
			MemberID uuid.UUID `json:"member_id"`
			Asset    string    `json:"asset"`
			Amount   int64     `json:"amount"`
		}{MemberID: po.Member, Asset: name, Amount: po.Amount})
	}

	v.log.Info().Int("payouts", len(res.Payouts)).Msg("insurance distributed")
	v.emit(event.EventTypeInsuranceDistributed, 0, nil, payload)
	return res, nil
}

// ============================================================================
// Read-only queries
// ============================================================================

// Member returns a member record, or nil.
func (v *Vault) Member(id uuid.UUID) *member.Member {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.registry.Get(id)
}

// CurrentRound returns the most recent round, or nil.
func (v *Vault) CurrentRound() *state.Round {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.current
}

// Round returns a round by id, or nil.
func (v *Vault) Round(id int64) *state.Round {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.Round(id)
}

// HealthFactor returns the member's last settled health factor in bps.
func (v *Vault) HealthFactor(id uuid.UUID) (int64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m := v.engine.registry.Get(id)
	if m == nil {
		return 0, member.ErrNotMember
	}
	return m.LatestHealthFactor, nil
}

// InsuranceBalance returns the pool's earmarked balance for an asset name.
func (v *Vault) InsuranceBalance(assetName string) (int64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	asset, ok := ledger.GetAssetID(assetName)
	if !ok {
		return 0, ErrUnregisteredAsset
	}
	return v.engine.insurance.Balance(asset), nil
}

// NextRecipient previews the next payout recipient without mutating the
// rotation.
func (v *Vault) NextRecipient() (*member.Member, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.registry.PeekNextRecipient()
}

// Composition reports the current round's pool composition.
func (v *Vault) Composition() (*PoolComposition, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.Composition()
}

// ScoreRecord returns the member's scoring history, or nil.
func (v *Vault) ScoreRecord(id uuid.UUID) *state.ScoreRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.scoreBook.Get(id)
}

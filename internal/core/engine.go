package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"StokVault/internal/ledger"
	"StokVault/internal/member"
	"StokVault/internal/poolmath"
	"StokVault/internal/state"
)

// Params are the per-pool tunables, all score-facing values in basis points.
type Params struct {
	RoundDuration  time.Duration
	ThresholdBps   int64
	PenaltyRateBps int64
	MinStake       int64 // weighted deposit units
}

func DefaultParams() Params {
	return Params{
		RoundDuration:  30 * 24 * time.Hour,
		ThresholdBps:   9_500,
		PenaltyRateBps: 2_000,
		MinStake:       100,
	}
}

// PenaltyLeg is one asset's share of an assessed penalty.
type PenaltyLeg struct {
	Asset  ledger.AssetID
	Amount int64
}

// CompleteResult carries everything a round settlement produced.
type CompleteResult struct {
	Round           *state.Round
	HealthFactorBps int64
	Violation       bool
	DeficitTotal    int64
	PenaltyTotal    int64
	PenaltySplit    []PenaltyLeg
	ScoreBps        int64
	ScoreRecord     *state.ScoreRecord
}

// DistributeResult carries an executed insurance distribution.
type DistributeResult struct {
	Payouts []state.InsurancePayout
	Totals  map[ledger.AssetID]int64
}

// RoundEngine drives the round state machine for one pool instance. It is
// single-threaded: the orchestrator serializes every mutating entry point,
// so no two state transitions ever interleave on the same pool.
type RoundEngine struct {
	registry  *member.Registry
	assets    ledger.AssetLedger
	insurance *state.InsurancePool
	scoreBook *state.ScoreBook
	scoring   state.ScoringPolicy
	params    Params

	// custody is the pool's own ledger identity; deposits, unclaimed pool
	// funds, and insurance earmarks all live on this account.
	custody uuid.UUID

	rounds  map[int64]*state.Round
	current *state.Round
	nextID  int64

	now func() time.Time
}

func NewRoundEngine(assets ledger.AssetLedger, params Params, scoring state.ScoringPolicy) *RoundEngine {
	return &RoundEngine{
		registry:  member.NewRegistry(),
		assets:    assets,
		insurance: state.NewInsurancePool(),
		scoreBook: state.NewScoreBook(),
		scoring:   scoring,
		params:    params,
		custody:   uuid.New(),
		rounds:    make(map[int64]*state.Round),
		nextID:    1,
		now:       time.Now,
	}
}

// SetClock overrides the engine clock. Test hook.
func (e *RoundEngine) SetClock(now func() time.Time) {
	e.now = now
}

// Custody returns the pool's custodial ledger identity.
func (e *RoundEngine) Custody() uuid.UUID {
	return e.custody
}

// Registry exposes the member set for read paths.
func (e *RoundEngine) Registry() *member.Registry {
	return e.registry
}

// Insurance exposes the penalty pool for read paths.
func (e *RoundEngine) Insurance() *state.InsurancePool {
	return e.insurance
}

// ScoreBook exposes per-member scoring history for read paths.
func (e *RoundEngine) ScoreBook() *state.ScoreBook {
	return e.scoreBook
}

// resolveAssets maps symbols to IDs, failing on any unregistered asset.
func resolveAssets(assetNames []string) ([]ledger.AssetID, error) {
	ids := make([]ledger.AssetID, len(assetNames))
	for i, name := range assetNames {
		id, ok := ledger.GetAssetID(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredAsset, name)
		}
		ids[i] = id
	}
	return ids, nil
}

func toLibWeights(weightsBps []int64) []int64 {
	lib := make([]int64, len(weightsBps))
	for i, w := range weightsBps {
		lib[i] = poolmath.ToLibWeight(w)
	}
	return lib
}

// Join admits a new member: validate, settle the deposit transfers into
// custody, then record the member. Validation happens up front so a
// rejected join never moves funds; a transfer failure mid-way refunds the
// legs already settled.
func (e *RoundEngine) Join(id uuid.UUID, assetNames []string, deposits, weightsBps []int64) (*member.Member, error) {
	if e.registry.Active(id) {
		return nil, member.ErrAlreadyMember
	}
	if len(assetNames) == 0 || len(assetNames) != len(deposits) || len(assetNames) != len(weightsBps) {
		return nil, ErrInvalidInput
	}
	for _, d := range deposits {
		if d <= 0 {
			return nil, ErrInvalidInput
		}
	}

	assetIDs, err := resolveAssets(assetNames)
	if err != nil {
		return nil, err
	}
	if !poolmath.ValidateWeights(toLibWeights(weightsBps)) {
		return nil, ErrInvalidInput
	}

	var totalValue int64
	for i := range deposits {
		totalValue += poolmath.MulDiv(deposits[i], weightsBps[i], poolmath.BasisPoints)
	}
	if totalValue < e.params.MinStake {
		return nil, ErrBelowMinStake
	}

	for i, asset := range assetIDs {
		if err := e.assets.Transfer(asset, id, e.custody, deposits[i]); err != nil {
			for j := 0; j < i; j++ {
				e.assets.Transfer(assetIDs[j], e.custody, id, deposits[j])
			}
			return nil, fmt.Errorf("deposit transfer %s: %w", assetNames[i], err)
		}
	}

	currentRound := int64(0)
	if e.current != nil {
		currentRound = e.current.ID
	}
	m, err := e.registry.Join(id, assetIDs, deposits, weightsBps, currentRound, e.scoring.BaseBps)
	if err != nil {
		// Registry validation mirrors ours; reaching here means the two
		// disagree. Refund and surface it.
		for i, asset := range assetIDs {
			e.assets.Transfer(asset, e.custody, id, deposits[i])
		}
		return nil, err
	}

	return m, nil
}

// Exit returns a member's deposits and deactivates them. No member may
// leave while a round is open: StartRound snapshotted custody balances as
// the round's initial amounts, and withdrawing deposits mid-round would
// both strand an unclaimed payout and charge the recipient for funds that
// left through the exit.
func (e *RoundEngine) Exit(id uuid.UUID) (*member.Member, error) {
	m := e.registry.Get(id)
	if m == nil || !m.IsActive {
		return nil, member.ErrNotMember
	}
	if e.current != nil && e.current.State != state.RoundStateCompleted {
		if e.current.Recipient == id {
			return nil, ErrMustCompleteRound
		}
		return nil, ErrRoundInProgress
	}

	for i, asset := range m.Assets {
		if err := e.assets.Transfer(asset, e.custody, id, m.Deposits[i]); err != nil {
			for j := 0; j < i; j++ {
				e.assets.Transfer(m.Assets[j], id, e.custody, m.Deposits[j])
			}
			return nil, fmt.Errorf("deposit return: %w", err)
		}
	}

	return e.registry.Deactivate(id)
}

// StartRound opens a new round: pick the next recipient, snapshot the
// custody balance of every pool asset, and arm the deadline. Any active
// member may start a round once the previous one is completed.
func (e *RoundEngine) StartRound(caller uuid.UUID, assetNames []string, weightsBps []int64) (*state.Round, error) {
	if !e.registry.Active(caller) {
		return nil, member.ErrNotMember
	}
	if e.current != nil && e.current.State != state.RoundStateCompleted {
		return nil, ErrPreviousRoundNotCompleted
	}
	if len(assetNames) == 0 || len(assetNames) != len(weightsBps) {
		return nil, ErrInvalidInput
	}

	assetIDs, err := resolveAssets(assetNames)
	if err != nil {
		return nil, err
	}
	libWeights := toLibWeights(weightsBps)
	if !poolmath.ValidateWeights(libWeights) {
		return nil, ErrInvalidInput
	}

	recipient, err := e.registry.NextRecipient()
	if err != nil {
		return nil, err
	}

	poolAssets := make([]state.PoolAsset, len(assetIDs))
	for i, asset := range assetIDs {
		poolAssets[i] = state.PoolAsset{
			Asset:         asset,
			WeightLib:     libWeights[i],
			InitialAmount: e.assets.BalanceOf(asset, e.custody),
		}
	}

	now := e.now()
	r := &state.Round{
		ID:        e.nextID,
		Recipient: recipient.ID,
		StartTime: now,
		EndTime:   now.Add(e.params.RoundDuration),
		Assets:    poolAssets,
		State:     state.RoundStateDeposit,
	}
	r.TransitionTo(state.RoundStateActive)

	e.rounds[r.ID] = r
	e.current = r
	e.nextID++

	return r, nil
}

// Claim hands the pool to the recipient. The claimed flag and the payout
// transition are set before any transfer so a re-entrant claim observes
// the guard; a failed transfer leg rolls the guard and prior legs back.
func (e *RoundEngine) Claim(caller uuid.UUID) (*state.Round, error) {
	r := e.current
	if r == nil || r.State != state.RoundStateActive {
		return nil, ErrRoundNotActive
	}
	if caller != r.Recipient {
		return nil, ErrNotRecipient
	}
	if r.Claimed {
		return nil, ErrAlreadyClaimed
	}

	r.Claimed = true
	r.TransitionTo(state.RoundStatePayout)

	rollback := func(upto int) {
		for j := 0; j < upto; j++ {
			pa := &r.Assets[j]
			if pa.LockedAmount > 0 {
				e.assets.Unlock(pa.Asset, r.Recipient, pa.LockedAmount)
				pa.LockedAmount = 0
			}
			if pa.InitialAmount > 0 {
				e.assets.Transfer(pa.Asset, r.Recipient, e.custody, pa.InitialAmount)
			}
		}
		r.Claimed = false
		r.State = state.RoundStateActive
		r.Version++
	}

	for i := range r.Assets {
		pa := &r.Assets[i]
		if pa.InitialAmount <= 0 {
			continue
		}
		if err := e.assets.Transfer(pa.Asset, e.custody, r.Recipient, pa.InitialAmount); err != nil {
			rollback(i)
			return nil, fmt.Errorf("payout transfer: %w", err)
		}
		// Granted assets stay locked against unwrap while deployed; the
		// recipient reclaims transferability only at settlement.
		if err := e.assets.Lock(pa.Asset, r.Recipient, pa.InitialAmount); err != nil {
			e.assets.Transfer(pa.Asset, r.Recipient, e.custody, pa.InitialAmount)
			rollback(i)
			return nil, fmt.Errorf("payout lock: %w", err)
		}
		pa.LockedAmount = pa.InitialAmount
	}

	if m := e.registry.Get(r.Recipient); m != nil {
		m.HasReceivedPayout = true
		m.Version++
	}

	return r, nil
}

// Complete settles the round: measure preservation, assess any penalty,
// recover custody, close.
//
// Steps apply strictly in order and the assessment (health factor, penalty,
// score) commits exactly once even if the custody-recovery transfer fails
// and the call is retried — penalties are based on the snapshot already
// taken and are not undone by a later transfer failure. A round whose
// recovery keeps failing stays open; there is no silent write-off.
func (e *RoundEngine) Complete(caller uuid.UUID) (*CompleteResult, error) {
	r := e.current
	if r == nil || (r.State != state.RoundStateActive && r.State != state.RoundStatePayout) {
		return nil, ErrRoundNotActive
	}
	if !e.registry.Active(caller) {
		return nil, member.ErrNotMember
	}
	if caller != r.Recipient && e.now().Before(r.EndTime) {
		return nil, ErrRoundNotEnded
	}

	rec := e.registry.Get(r.Recipient)

	res := &CompleteResult{Round: r}

	if !r.Assessed {
		// Measurement runs against the recipient's wallet when the pool
		// was claimed (assets were transferred out), against custody when
		// it never was.
		source := r.Recipient
		if !r.Claimed {
			source = e.custody
		}

		n := len(r.Assets)
		initials := make([]int64, n)
		currents := make([]int64, n)
		weights := make([]int64, n)
		for i := range r.Assets {
			pa := &r.Assets[i]
			initials[i] = pa.InitialAmount
			currents[i] = e.assets.BalanceOf(pa.Asset, source)
			weights[i] = pa.WeightLib
		}

		hfLib := poolmath.CalculateHealthFactor(initials, currents, weights)
		r.HealthFactorBps = poolmath.ToBpsWeight(hfLib)

		if r.HealthFactorBps < e.params.ThresholdBps {
			var deficit int64
			for i := range r.Assets {
				if d := initials[i] - currents[i]; d > 0 {
					deficit += d
				}
			}
			penalty := poolmath.MulDiv(deficit, e.params.PenaltyRateBps, poolmath.BasisPoints)

			for i := range r.Assets {
				leg := poolmath.MulDiv(penalty, weights[i], poolmath.LibPrecision)
				if leg > 0 {
					e.insurance.Contribute(r.Assets[i].Asset, leg)
					res.PenaltySplit = append(res.PenaltySplit, PenaltyLeg{Asset: r.Assets[i].Asset, Amount: leg})
				}
			}

			rec.ScoreBps = e.scoring.ApplyViolation(rec.ScoreBps, r.HealthFactorBps)
			res.ScoreRecord = e.scoreBook.RecordViolation(rec.ID, r.ID, r.HealthFactorBps, e.scoring)

			r.DeficitTotal = deficit
			r.PenaltyTotal = penalty
			res.Violation = true
		} else {
			rec.ScoreBps = e.scoring.ApplyClean(rec.ScoreBps)
			res.ScoreRecord = e.scoreBook.RecordClean(rec.ID, r.ID, e.scoring)
		}

		rec.LatestHealthFactor = r.HealthFactorBps
		rec.Version++
		r.Assessed = true
	}

	res.HealthFactorBps = r.HealthFactorBps
	res.Violation = r.HealthFactorBps < e.params.ThresholdBps
	res.DeficitTotal = r.DeficitTotal
	res.PenaltyTotal = r.PenaltyTotal
	res.ScoreBps = rec.ScoreBps
	if res.ScoreRecord == nil {
		res.ScoreRecord = e.scoreBook.Get(rec.ID)
	}

	// Recover whatever the recipient currently holds of every pool asset.
	// Re-read balances here rather than reusing the assessment snapshot:
	// on a retried completion the recipient may have topped up.
	if r.Claimed {
		for i := range r.Assets {
			pa := &r.Assets[i]
			if pa.LockedAmount > 0 {
				if err := e.assets.Unlock(pa.Asset, r.Recipient, pa.LockedAmount); err != nil {
					return res, fmt.Errorf("settlement unlock: %w", err)
				}
				pa.LockedAmount = 0
			}
			holding := e.assets.BalanceOf(pa.Asset, r.Recipient)
			if holding > 0 {
				if err := e.assets.Transfer(pa.Asset, r.Recipient, e.custody, holding); err != nil {
					return res, fmt.Errorf("custody recovery: %w", err)
				}
			}
		}
	}

	r.TransitionTo(state.RoundStateCompleted)
	rec.HasReceivedPayout = true

	return res, nil
}

// DistributeInsurance pays the accumulated penalty pool out to active
// members proportionally to score. Pool bookkeeping zeroes before the
// transfers are issued.
func (e *RoundEngine) DistributeInsurance(caller uuid.UUID) (*DistributeResult, error) {
	if !e.registry.Active(caller) {
		return nil, member.ErrNotMember
	}

	members := e.registry.ActiveMembers()
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	payouts, err := e.insurance.Distribute(ids, func(id uuid.UUID) int64 {
		return e.registry.Get(id).ScoreBps
	})
	if err != nil {
		return nil, err
	}

	totals := make(map[ledger.AssetID]int64)
	for _, po := range payouts {
		if err := e.assets.Transfer(po.Asset, e.custody, po.Member, po.Amount); err != nil {
			return nil, fmt.Errorf("insurance payout: %w", err)
		}
		totals[po.Asset] += po.Amount
	}

	return &DistributeResult{Payouts: payouts, Totals: totals}, nil
}

// CompositionLeg is one asset's slice of the pool composition.
type CompositionLeg struct {
	Asset     ledger.AssetID
	Balance   int64
	WeightBps int64
}

// SpotPrice quotes the out asset in units of the in asset at lib precision.
type SpotPrice struct {
	AssetIn  ledger.AssetID
	AssetOut ledger.AssetID
	Price    int64
}

// PoolComposition is a point-in-time view of the current round's pool:
// custody balances, weights, pairwise spot prices, and the weighted-product
// invariant.
type PoolComposition struct {
	RoundID    int64
	Invariant  int64
	Legs       []CompositionLeg
	SpotPrices []SpotPrice
}

// Composition reports the current round's pool composition measured against
// custody holdings.
func (e *RoundEngine) Composition() (*PoolComposition, error) {
	r := e.current
	if r == nil {
		return nil, ErrRoundNotActive
	}

	n := len(r.Assets)
	comp := &PoolComposition{RoundID: r.ID}
	balances := make([]int64, n)
	weights := make([]int64, n)
	for i := range r.Assets {
		pa := &r.Assets[i]
		balances[i] = e.assets.BalanceOf(pa.Asset, e.custody)
		weights[i] = pa.WeightLib
		comp.Legs = append(comp.Legs, CompositionLeg{
			Asset:     pa.Asset,
			Balance:   balances[i],
			WeightBps: poolmath.ToBpsWeight(pa.WeightLib),
		})
	}

	comp.Invariant = poolmath.CalculateInvariant(balances, weights)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			comp.SpotPrices = append(comp.SpotPrices, SpotPrice{
				AssetIn:  r.Assets[i].Asset,
				AssetOut: r.Assets[j].Asset,
				Price:    poolmath.CalculateSpotPrice(balances[i], weights[i], balances[j], weights[j]),
			})
		}
	}

	return comp, nil
}

// CurrentRound returns the most recent round, completed or not.
func (e *RoundEngine) CurrentRound() *state.Round {
	return e.current
}

// Round returns a round by id.
func (e *RoundEngine) Round(id int64) *state.Round {
	return e.rounds[id]
}

package member

import (
	"errors"

	"github.com/google/uuid"

	"StokVault/internal/ledger"
	"StokVault/internal/poolmath"
)

var (
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not an active member")
	ErrNoMembers     = errors.New("no active members")
	ErrInvalidInput  = errors.New("invalid member input")
)

// Member is a participant's registry record. Deposits, weights, and the
// wrapped assets they apply to are parallel arrays fixed at join time.
type Member struct {
	ID                 uuid.UUID
	Position           int // join order, never reused
	JoinedRound        int64
	IsActive           bool
	HasReceivedPayout  bool
	ScoreBps           int64
	Assets             []ledger.AssetID
	Deposits           []int64 // base units per asset
	WeightsBps         []int64
	LatestHealthFactor int64 // bps, set when a round the member received settles
	Version            int64
}

// TotalValue returns the weighted deposit value used for the minimum-stake
// gate: sum(deposit_i * weight_i / B). Weighted units, not a market price.
func (m *Member) TotalValue() int64 {
	var total int64
	for i := range m.Deposits {
		total += poolmath.MulDiv(m.Deposits[i], m.WeightsBps[i], poolmath.BasisPoints)
	}
	return total
}

// Registry holds the member set and the payout rotation order.
type Registry struct {
	members map[uuid.UUID]*Member
	order   []uuid.UUID // join order; exited members keep their slot
	totals  map[ledger.AssetID]int64
	cycle   int64
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[uuid.UUID]*Member),
		totals:  make(map[ledger.AssetID]int64),
	}
}

// Join validates and records a new member. The caller settles the deposit
// transfers; Join only mutates registry state, so a failed transfer can
// abort cleanly before this call.
func (r *Registry) Join(id uuid.UUID, assets []ledger.AssetID, deposits, weightsBps []int64, currentRound, baseScoreBps int64) (*Member, error) {
	if existing := r.members[id]; existing != nil && existing.IsActive {
		return nil, ErrAlreadyMember
	}

	if len(assets) == 0 || len(assets) != len(deposits) || len(assets) != len(weightsBps) {
		return nil, ErrInvalidInput
	}
	for _, d := range deposits {
		if d <= 0 {
			return nil, ErrInvalidInput
		}
	}

	libWeights := make([]int64, len(weightsBps))
	for i, w := range weightsBps {
		libWeights[i] = poolmath.ToLibWeight(w)
	}
	if !poolmath.ValidateWeights(libWeights) {
		return nil, ErrInvalidInput
	}

	m := &Member{
		ID:          id,
		Position:    len(r.order),
		JoinedRound: currentRound,
		IsActive:    true,
		ScoreBps:    baseScoreBps,
		Assets:      append([]ledger.AssetID(nil), assets...),
		Deposits:    append([]int64(nil), deposits...),
		WeightsBps:  append([]int64(nil), weightsBps...),
	}

	r.members[id] = m
	r.order = append(r.order, id)
	for i, asset := range assets {
		r.totals[asset] += deposits[i]
	}

	return m, nil
}

// Deactivate marks a member exited and removes its deposits from the
// aggregate totals. The rotation slot stays occupied so remaining members
// keep their positions.
func (r *Registry) Deactivate(id uuid.UUID) (*Member, error) {
	m := r.members[id]
	if m == nil || !m.IsActive {
		return nil, ErrNotMember
	}

	m.IsActive = false
	m.Version++
	for i, asset := range m.Assets {
		r.totals[asset] -= m.Deposits[i]
	}

	return m, nil
}

// Get returns the member record, active or not.
func (r *Registry) Get(id uuid.UUID) *Member {
	return r.members[id]
}

// Active reports whether id is an active member.
func (r *Registry) Active(id uuid.UUID) bool {
	m := r.members[id]
	return m != nil && m.IsActive
}

// NextRecipient returns the first active member in join order that has not
// yet received a payout this cycle. When every active member has been paid,
// the cycle resets: payout flags clear explicitly and rotation restarts
// from the front.
func (r *Registry) NextRecipient() (*Member, error) {
	if m := r.scanUnpaid(); m != nil {
		return m, nil
	}

	// All paid (or nobody active). Reset flags and rescan.
	var anyActive bool
	for _, id := range r.order {
		m := r.members[id]
		if m.IsActive {
			m.HasReceivedPayout = false
			anyActive = true
		}
	}
	if !anyActive {
		return nil, ErrNoMembers
	}
	r.cycle++

	return r.scanUnpaid(), nil
}

// PeekNextRecipient is the read-only variant for queries: it reports who the
// next recipient would be without clearing any payout flags.
func (r *Registry) PeekNextRecipient() (*Member, error) {
	if m := r.scanUnpaid(); m != nil {
		return m, nil
	}
	for _, id := range r.order {
		if m := r.members[id]; m.IsActive {
			return m, nil
		}
	}
	return nil, ErrNoMembers
}

func (r *Registry) scanUnpaid() *Member {
	for _, id := range r.order {
		m := r.members[id]
		if m.IsActive && !m.HasReceivedPayout {
			return m
		}
	}
	return nil
}

// Cycle returns the number of completed rotation cycles.
func (r *Registry) Cycle() int64 {
	return r.cycle
}

// ActiveCount returns the number of active members.
func (r *Registry) ActiveCount() int {
	var n int
	for _, m := range r.members {
		if m.IsActive {
			n++
		}
	}
	return n
}

// ActiveMembers returns active members in join order.
func (r *Registry) ActiveMembers() []*Member {
	out := make([]*Member, 0, len(r.order))
	for _, id := range r.order {
		if m := r.members[id]; m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// TotalDeposits returns the aggregate deposited amount for an asset across
// active members.
func (r *Registry) TotalDeposits(asset ledger.AssetID) int64 {
	return r.totals[asset]
}

package state

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"StokVault/internal/ledger"
	"StokVault/internal/poolmath"
)

// ErrNoEligibleMembers is returned when a distribution is requested but no
// member carries a positive score.
var ErrNoEligibleMembers = errors.New("no eligible members for distribution")

// InsurancePayout is one member's share of one asset, computed by a
// distribution. The caller settles the transfers.
type InsurancePayout struct {
	Member uuid.UUID
	Asset  ledger.AssetID
	Amount int64
}

// InsurancePool is the mutualized penalty sink. Balances here are
// bookkeeping earmarks on the vault's custody account; the custody funds
// back them 1:1.
type InsurancePool struct {
	balances map[ledger.AssetID]int64
}

func NewInsurancePool() *InsurancePool {
	return &InsurancePool{
		balances: make(map[ledger.AssetID]int64),
	}
}

// Contribute earmarks a penalty amount for an asset.
func (p *InsurancePool) Contribute(asset ledger.AssetID, amount int64) error {
	if amount <= 0 {
		return ledger.ErrNonPositiveAmount
	}
	p.balances[asset] += amount
	return nil
}

// Balance returns the earmarked amount for one asset.
func (p *InsurancePool) Balance(asset ledger.AssetID) int64 {
	return p.balances[asset]
}

// Balances returns a copy of all non-zero earmarks.
func (p *InsurancePool) Balances() map[ledger.AssetID]int64 {
	out := make(map[ledger.AssetID]int64, len(p.balances))
	for asset, bal := range p.balances {
		if bal > 0 {
			out[asset] = bal
		}
	}
	return out
}

// Distribute splits every earmarked balance across members in proportion to
// score, zeroing the pool. Truncation dust is discarded with the zeroed
// balances, never carried forward. Members are processed in the order given
// so payouts are deterministic.
//
// An empty pool is a no-op and returns no payouts. A pool with funds but no
// positive-score member returns ErrNoEligibleMembers and leaves the
// balances intact.
//
// Bookkeeping is cleared before the caller issues any transfer, so a
// re-entrant distribution call observes an empty pool.
func (p *InsurancePool) Distribute(members []uuid.UUID, scoreOf func(uuid.UUID) int64) ([]InsurancePayout, error) {
	var hasFunds bool
	for _, bal := range p.balances {
		if bal > 0 {
			hasFunds = true
			break
		}
	}
	if !hasFunds {
		return nil, nil
	}

	var totalScore int64
	for _, id := range members {
		if s := scoreOf(id); s > 0 {
			totalScore += s
		}
	}
	if totalScore == 0 {
		return nil, ErrNoEligibleMembers
	}

	assets := make([]ledger.AssetID, 0, len(p.balances))
	for asset := range p.balances {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	var payouts []InsurancePayout
	for _, asset := range assets {
		bal := p.balances[asset]
		if bal <= 0 {
			continue
		}
		for _, id := range members {
			score := scoreOf(id)
			if score <= 0 {
				continue
			}
			share := poolmath.MulDiv(bal, score, totalScore)
			if share <= 0 {
				continue
			}
			payouts = append(payouts, InsurancePayout{Member: id, Asset: asset, Amount: share})
		}
		p.balances[asset] = 0
	}

	return payouts, nil
}

package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeMint JournalType = iota
	JournalTypeBurn
	JournalTypeTransfer
	JournalTypeLock
	JournalTypeUnlock
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeMint:
		return "MINT"
	case JournalTypeBurn:
		return "BURN"
	case JournalTypeTransfer:
		return "TRANSFER"
	case JournalTypeLock:
		return "LOCK"
	case JournalTypeUnlock:
		return "UNLOCK"
	default:
		return "UNKNOWN"
	}
}

// JournalEntry records one applied ledger movement. Mints and burns have no
// counterparty; locks and unlocks move nothing, only the locked counter.
type JournalEntry struct {
	Index       int64
	JournalType JournalType
	Asset       AssetID
	From        uuid.UUID // uuid.Nil for mints
	To          uuid.UUID // uuid.Nil for burns, locks, unlocks
	Amount      int64     // ALWAYS positive
}

// Validate ensures an entry is well-formed before it is appended.
// Note on balance invariant: a transfer is balanced by construction (one
// positive amount moves from one holder to another), so Σ credits == Σ
// debits holds per-entry. Mints and burns change supply and are the only
// unbalanced types.
func (j *JournalEntry) Validate() error {
	if j.Amount <= 0 {
		return fmt.Errorf("journal entry %d has non-positive amount: %d", j.Index, j.Amount)
	}
	if j.JournalType == JournalTypeTransfer && j.From == j.To {
		return fmt.Errorf("journal entry %d is a self-transfer", j.Index)
	}
	return nil
}

// journal is the append-only movement log inside MemoryLedger. Caller holds
// the ledger mutex.
type journal struct {
	entries []JournalEntry
}

func (jl *journal) append(jt JournalType, asset AssetID, from, to uuid.UUID, amount int64) {
	jl.entries = append(jl.entries, JournalEntry{
		Index:       int64(len(jl.entries)),
		JournalType: jt,
		Asset:       asset,
		From:        from,
		To:          to,
		Amount:      amount,
	})
}

// Supply replays the journal and returns the net minted supply per asset.
// Transfers, locks, and unlocks cancel out; only mints and burns move it.
func (jl *journal) Supply() map[AssetID]int64 {
	supply := make(map[AssetID]int64)
	for _, e := range jl.entries {
		switch e.JournalType {
		case JournalTypeMint:
			supply[e.Asset] += e.Amount
		case JournalTypeBurn:
			supply[e.Asset] -= e.Amount
		}
	}
	return supply
}

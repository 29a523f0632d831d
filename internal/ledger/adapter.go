package ledger

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's
	// transferable (unlocked) balance.
	ErrInsufficientBalance = errors.New("insufficient transferable balance")

	// ErrInsufficientLocked is returned when an unlock exceeds the holder's
	// locked balance.
	ErrInsufficientLocked = errors.New("insufficient locked balance")

	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// AssetLedger is the custodial token interface the vault settles against.
// Implementations wrap the underlying asset 1:1; amounts are base units of
// the wrapped asset.
//
// Transfer moves transferable balance. Locked balance cannot be moved until
// unlocked. Lock and Unlock adjust the holder's locked counter and are
// reserved for the vault itself — the ledger does not authenticate callers,
// the orchestrator gates access.
type AssetLedger interface {
	Transfer(asset AssetID, from, to uuid.UUID, amount int64) error
	Lock(asset AssetID, holder uuid.UUID, amount int64) error
	Unlock(asset AssetID, holder uuid.UUID, amount int64) error
	BalanceOf(asset AssetID, holder uuid.UUID) int64
}

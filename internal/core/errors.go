package core

import "errors"

// Every failure is distinguishable by kind so callers can present
// actionable messages instead of a generic failure.
var (
	// Input validation (fail fast, no state change)
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnregisteredAsset = errors.New("asset not registered")
	ErrBelowMinStake     = errors.New("deposit below minimum stake")

	// State preconditions
	ErrRoundNotActive            = errors.New("no active round")
	ErrPreviousRoundNotCompleted = errors.New("previous round not completed")
	ErrNotRecipient              = errors.New("caller is not the round recipient")
	ErrAlreadyClaimed            = errors.New("payout already claimed")
	ErrRoundNotEnded             = errors.New("round has not reached its end time")
	ErrMustCompleteRound         = errors.New("must complete the open round first")
	ErrRoundInProgress           = errors.New("round in progress")
)

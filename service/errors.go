package service

import "errors"

// Domain errors returned synchronously from placement and settlement.
// Callers match them with errors.Is for immediate UI feedback.
var (
	// ErrInsufficientFunds is returned when a stake exceeds the active balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidStake is returned when a stake is zero or negative.
	ErrInvalidStake = errors.New("stake must be positive")

	// ErrInvalidAmount is returned for non-positive payment or adjustment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidStateTransition is returned when acting on a bet or
	// transaction that is not in the expected state, e.g. settling an
	// already-settled bet or cashing out after a crash.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrSuspended is returned when a suspended user attempts to place a bet.
	ErrSuspended = errors.New("account is suspended")

	// ErrGatewayFailure wraps payment gateway initiation errors.
	ErrGatewayFailure = errors.New("payment gateway failure")
)

package services

import "errors"

// Sentinel errors matching the taxonomy in §7 ERROR HANDLING DESIGN.
var (
	// ErrPrecondition marks a precondition violation: fatal at the
	// caller (bids out of range, multiply before SetActiveSet, etc).
	ErrPrecondition = errors.New("mpc: precondition violation")

	// ErrBitPoolExhausted is returned when BitDecomposition runs out of
	// preprocessed random-bit sharings.
	ErrBitPoolExhausted = errors.New("mpc: ran out of pre-generated random bits")

	// ErrShareNotYetAvailable marks CSS.GetShare being called before
	// F+1 echoes (or a direct share) are available — recoverable by the
	// caller retrying once more evidence arrives.
	ErrShareNotYetAvailable = errors.New("css: share not yet available")

	// ErrUnsupportedActiveSetSize marks an active-set size the
	// closed-form second-price indicator does not cover.
	ErrUnsupportedActiveSetSize = errors.New("auction: unsupported active-set size")
)

package engine

import "errors"

// Caller-visible error taxonomy (spec §7). Internal invariant breaches
// are never returned as errors — they panic, since they indicate an
// engine bug rather than a recoverable condition a caller induced.
var (
	ErrLevelNotFound      = errors.New("engine: no orders at the quoted price")
	ErrOrderNotFound      = errors.New("engine: order id not found at that level")
	ErrOrderAlreadyFilled = errors.New("engine: replace would drive quantity to zero")
	ErrNoMatch            = errors.New("engine: order produced no trades")

	// ErrPoolHandleMissing names the internal-consistency condition
	// described in spec §7. No order operation returns it; it is the
	// value of the panic raised when the invariant is violated, and the
	// Validate diagnostic wraps it in the error it reports for a queued
	// handle with no live pool entry.
	ErrPoolHandleMissing = errors.New("engine: pool handle missing for a resident order")
)

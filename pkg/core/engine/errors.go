package engine

import "errors"

// Sentinel errors callers (and tests) can match with errors.Is, covering
// the negotiation engine's externally-visible failure modes that are not
// themselves a Channel's terminal FailureReason.
var (
	// ErrUnknownChannel is returned when an operation names a channel ID the
	// Channel Administrator has no record of.
	ErrUnknownChannel = errors.New("engine: unknown channel")

	// ErrWrongState is returned when an inbound offer or feedback arrives
	// for a channel that is not currently accepting it.
	ErrWrongState = errors.New("engine: channel not in a state accepting this operation")

	// ErrNoRouter is returned when a component that needs the Agent Router
	// to deliver a message was never wired with one.
	ErrNoRouter = errors.New("engine: no router configured")
)

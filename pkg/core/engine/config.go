package engine

import "time"

// Config holds the negotiation engine's tunables. Defaults match the values
// the specification fixes explicitly; anything left as an Open Question in
// the specification is exposed here as a knob rather than hardcoded.
type Config struct {
	MaxRounds              int
	MaxDepth               int
	MaxSubnetsPerChannel   int
	CollectionDeadline     time.Duration
	NegotiationDeadline    time.Duration
	AcceptThreshold        float64
	WithdrawThreshold      float64
	ImplicitAcceptOnSilence bool
	FocusedFilterInviteeCap int
}

// DefaultConfig matches the specification's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxRounds:               3,
		MaxDepth:                2,
		MaxSubnetsPerChannel:    3,
		CollectionDeadline:      120 * time.Second,
		NegotiationDeadline:     120 * time.Second,
		AcceptThreshold:         0.8,
		WithdrawThreshold:       0.5,
		ImplicitAcceptOnSilence: true,
		FocusedFilterInviteeCap: 5,
	}
}

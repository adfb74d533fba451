// Package oracle shields the negotiation engine from the language-model
// dependency. It exposes a handful of typed operations behind a bounded
// timeout and a three-state circuit breaker, and degrades to deterministic
// fallback records rather than ever blocking the engine indefinitely.
package oracle

import (
	"context"
	"time"

	"negotiation-engine/pkg/core/types"
)

// FilterResult names one candidate agent selected for an invitation.
type FilterResult struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

// Understanding is the result of parsing a raw demand into structured form.
type Understanding struct {
	Surface       string   `json:"surface"`
	Deep          string   `json:"deep"`
	Tags          []string `json:"tags"`
	Uncertainties []string `json:"uncertainties"`
	Confidence    int      `json:"confidence"`
}

// OfferFields is everything generateOfferResponse produces besides the
// bookkeeping fields (IDs, timestamps) the caller fills in itself.
type OfferFields struct {
	Decision     types.Decision `json:"decision"`
	Contribution string         `json:"contribution"`
	Conditions   []string       `json:"conditions,omitempty"`
	Confidence   int            `json:"confidence"`
	Rationale    string         `json:"rationale"`
}

// AdjustResult is adjustProposal's return shape: an updated proposal plus a
// continuation flag the administrator is free to use as a hint (the
// administrator's own accept/withdraw-rate arithmetic remains authoritative).
type AdjustResult struct {
	Proposal      types.Proposal `json:"proposal"`
	ShouldContinue bool          `json:"should_continue"`
}

// Service is the 7-operation interface the negotiation engine consumes.
// Every method must return within its configured deadline or the Adapter
// substitutes a fallback record - Service implementations themselves are
// free to block; timeout enforcement is the Adapter's job, not theirs.
type Service interface {
	UnderstandDemand(ctx context.Context, rawText string) (Understanding, error)
	FilterCandidates(ctx context.Context, demand types.Demand, profiles []types.AgentProfile) ([]FilterResult, error)
	GenerateOfferResponse(ctx context.Context, demand types.Demand, profile types.AgentProfile, filterReason string) (OfferFields, error)
	AggregateOffers(ctx context.Context, demand types.Demand, offers []types.Offer) (types.Proposal, error)
	AdjustProposal(ctx context.Context, current types.Proposal, feedback []types.Feedback) (AdjustResult, error)
	IdentifyGaps(ctx context.Context, demand types.Demand, proposal types.Proposal) ([]types.Gap, error)
	JudgeRecursion(ctx context.Context, gaps []types.Gap, depth int, timeRemaining time.Duration) ([]types.Gap, error)
}

// operation names the 7 Service methods; used to key per-operation timeouts,
// circuit breakers, and fallback records.
type operation string

const (
	opUnderstandDemand      operation = "understandDemand"
	opFilterCandidates      operation = "filterCandidates"
	opGenerateOfferResponse operation = "generateOfferResponse"
	opAggregateOffers       operation = "aggregateOffers"
	opAdjustProposal        operation = "adjustProposal"
	opIdentifyGaps          operation = "identifyGaps"
	opJudgeRecursion        operation = "judgeRecursion"
)

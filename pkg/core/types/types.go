// Package types holds the negotiation engine's shared data model: the
// entities every other core package reads, writes, or carries across a
// channel boundary. Nothing here owns a mutex — ownership and locking live
// with the component that holds an entity (mostly the Channel Administrator).
package types

import (
	"time"

	"github.com/google/uuid"
)

// Decision is a User Agent's response to an invitation.
type Decision string

const (
	DecisionParticipate Decision = "participate"
	DecisionDecline     Decision = "decline"
	DecisionConditional Decision = "conditional"
)

// FeedbackKind is a User Agent's response to a distributed Proposal.
type FeedbackKind string

const (
	FeedbackAccept    FeedbackKind = "accept"
	FeedbackNegotiate FeedbackKind = "negotiate"
	FeedbackWithdraw  FeedbackKind = "withdraw"
)

// ChannelStatus enumerates the Channel Administrator's state machine states.
type ChannelStatus string

const (
	StatusCreated      ChannelStatus = "CREATED"
	StatusBroadcasting ChannelStatus = "BROADCASTING"
	StatusCollecting   ChannelStatus = "COLLECTING"
	StatusAggregating  ChannelStatus = "AGGREGATING"
	StatusProposalSent ChannelStatus = "PROPOSAL_SENT"
	StatusNegotiating  ChannelStatus = "NEGOTIATING"
	StatusFinalized    ChannelStatus = "FINALIZED"
	StatusFailed       ChannelStatus = "FAILED"
)

// Terminal reports whether a status has no outbound transitions.
func (s ChannelStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusFailed
}

// FailureReason is the machine-readable reason code attached to a FAILED
// channel or a negotiation.failed event.
type FailureReason string

const (
	ReasonNoCandidates        FailureReason = "no_candidates"
	ReasonNoResponses         FailureReason = "no_responses"
	ReasonMajorityRejected    FailureReason = "majority_rejected"
	ReasonCoreWithdrew        FailureReason = "core_participant_withdrew"
	ReasonMaxRoundsNoConsens  FailureReason = "max_rounds_no_consensus"
	ReasonInternal            FailureReason = "internal"
	ReasonInvalidTransition   FailureReason = "internal.invalid_transition"
)

// AgentProfile is a read-only reference to a human user's collaboration
// profile. The engine never mutates one; it is owned by the external
// ProfileRepository.
type AgentProfile struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	Location        string   `json:"location"`
	CapabilityTags  []string `json:"capability_tags"`
	Interests       []string `json:"interests"`
	Availability    string   `json:"availability"`
	SelfDescription string   `json:"self_description"`
}

// HasTag reports whether the profile carries a given capability tag.
func (p AgentProfile) HasTag(tag string) bool {
	for _, t := range p.CapabilityTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Demand is a user-submitted request for collaboration, or a sub-demand
// synthesized from a Gap. Owned and mutated only by the Coordinator.
type Demand struct {
	ID              uuid.UUID      `json:"id"`
	SubmitterID     string         `json:"submitter_id"`
	RawText         string         `json:"raw_text"`
	Surface         string         `json:"surface"`
	Deep            string         `json:"deep"`
	CapabilityTags  []string       `json:"capability_tags"`
	ParentDemandID  *uuid.UUID     `json:"parent_demand_id,omitempty"`
	Depth           int            `json:"depth"`
	Status          DemandStatus   `json:"status"`
}

// DemandStatus tracks a Demand's own lifecycle, independent of its Channel.
type DemandStatus string

const (
	DemandPending   DemandStatus = "pending"
	DemandNegotiating DemandStatus = "negotiating"
	DemandFinalized DemandStatus = "finalized"
	DemandFailed    DemandStatus = "failed"
)

// Offer is a User Agent's response to a demand broadcast. Immutable once
// stored in a Channel.
type Offer struct {
	ID           uuid.UUID `json:"id"`
	DemandID     uuid.UUID `json:"demand_id"`
	ChannelID    string    `json:"channel_id"`
	ResponderID  string    `json:"responder_agent_id"`
	Decision     Decision  `json:"decision"`
	Contribution string    `json:"contribution"`
	Conditions   []string  `json:"conditions,omitempty"`
	Confidence   int       `json:"confidence"`
	Rationale    string    `json:"rationale"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Assignment is one line item in a Proposal: a participant's role.
type Assignment struct {
	AgentID            string `json:"agent_id"`
	Role               string `json:"role"`
	Responsibility     string `json:"responsibility"`
	AcceptedConditions bool   `json:"accepted_conditions"`
}

// Proposal is a versioned, concrete allocation of roles and responsibilities
// across a Channel's participants.
type Proposal struct {
	ChannelID      string       `json:"channel_id"`
	Version        int          `json:"version"`
	Summary        string       `json:"summary"`
	Assignments    []Assignment `json:"assignments"`
	TimelineHint   string       `json:"timeline_hint"`
	OpenQuestions  []string     `json:"open_questions,omitempty"`
	Confidence     int          `json:"confidence"`
	Unavailable    bool         `json:"unavailable,omitempty"`
}

// ParticipantIDs returns the distinct agent IDs named in the proposal's
// assignments — the definition of "participants" per the data model.
func (p Proposal) ParticipantIDs() []string {
	seen := make(map[string]bool, len(p.Assignments))
	out := make([]string, 0, len(p.Assignments))
	for _, a := range p.Assignments {
		if !seen[a.AgentID] {
			seen[a.AgentID] = true
			out = append(out, a.AgentID)
		}
	}
	return out
}

// Feedback is a User Agent's response to a distributed Proposal.
type Feedback struct {
	ChannelID          string       `json:"channel_id"`
	Version            int          `json:"version"`
	AgentID            string       `json:"agent_id"`
	Kind               FeedbackKind `json:"kind"`
	RequestedAdjustment string      `json:"requested_adjustment,omitempty"`
	Rationale          string       `json:"rationale"`
	SubmittedAt        time.Time    `json:"submitted_at"`
}

// Gap is a capability or resource missing from an aggregated Proposal.
type Gap struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Capability     string `json:"capability"`
	ImportanceScore int   `json:"importance_score"`
}

// SubChannelRecord tracks one sub-negotiation spawned to resolve a Gap.
type SubChannelRecord struct {
	SubChannelID string        `json:"sub_channel_id"`
	Gap          Gap           `json:"gap"`
	Status       ChannelStatus `json:"status"`
	Result       *Proposal     `json:"result,omitempty"`
}

// Channel is the unit of negotiation created for one Demand. It is owned
// and mutated exclusively by the Channel Administrator; every other
// component reads it only through published snapshots or events.
type Channel struct {
	ID               string
	Demand           Demand
	Invited          []string
	Responded        []string
	Participating    []string
	CurrentProposal  *Proposal
	Round            int
	Status           ChannelStatus
	ParentChannelID  string
	Depth            int
	ProcessedFingerprints map[string]bool
	SubChannels      map[string]*SubChannelRecord
	FailureReason    FailureReason
}

// Event is the append-only unit published onto the Event Bus.
type Event struct {
	EventID     uuid.UUID      `json:"event_id"`
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	SourceAgent string         `json:"source_agent"`
	Payload     map[string]any `json:"payload"`
}

// NewEvent stamps a fresh Event with a generated ID and the current time.
func NewEvent(eventType, sourceAgent string, payload map[string]any) Event {
	return Event{
		EventID:     uuid.New(),
		EventType:   eventType,
		Timestamp:   time.Now(),
		SourceAgent: sourceAgent,
		Payload:     payload,
	}
}

// Dotted event-type namespace, exported so producers share exact strings.
const (
	EventDemandSubmitted   = "demand.submitted"
	EventDemandUnderstood  = "demand.understood"
	EventFilterCompleted   = "filter.completed"
	EventChannelCreated    = "channel.created"
	EventDemandBroadcast   = "demand.broadcast"
	EventOfferSubmitted    = "offer.submitted"
	EventProposalDistrib   = "proposal.distributed"
	EventFeedbackSubmitted = "feedback.submitted"
	EventGapIdentified     = "gap.identified"
	EventSubnetTriggered   = "subnet.triggered"
	EventSubnetFailed      = "subnet.failed"
	EventRoundStarted      = "negotiation.round_started"
	EventFinalized         = "negotiation.finalized"
	EventFailed            = "negotiation.failed"
	EventCircuitStateChanged = "oracle.circuit_state_changed"
	EventProtocolViolation = "protocol.violation"
)

package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/registry"
	"negotiation-engine/pkg/core/types"
)

// UserAgent is the lazily-materialized digital stand-in for one human
// collaborator. It answers demand invitations through the Oracle Adapter
// and decides its own feedback on distributed proposals locally - the
// Oracle's surface has no "decide feedback" operation, so that judgment
// stays with the agent rather than round-tripping to the language model.
type UserAgent struct {
	profile   types.AgentProfile
	oracleSvc oracle.Service
	router    *agentrt.Router
	log       zerolog.Logger

	mu       sync.Mutex
	seen     map[string]bool
}

// NewUserAgent builds the UserAgent for one profile. Its signature differs
// from registry.UserAgentFactory; New adapts it with a closure before handing
// it to the Registry.
func NewUserAgent(profile types.AgentProfile, oracleSvc oracle.Service, router *agentrt.Router) *UserAgent {
	return &UserAgent{
		profile:   profile,
		oracleSvc: oracleSvc,
		router:    router,
		log:       log.With().Str("component", "user_agent").Str("agent_id", profile.ID).Logger(),
		seen:      make(map[string]bool),
	}
}

func (u *UserAgent) recipientID() string {
	return registry.UserAgentID(u.profile.ID)
}

// markSeen reports whether (channelID, kind, key) has already been handled,
// recording it if not. This is the agent's own defense against redelivery,
// independent of the Router's fingerprint window.
func (u *UserAgent) markSeen(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.seen[key] {
		return true
	}
	u.seen[key] = true
	return false
}

func (u *UserAgent) onDemandOffer(ctx context.Context, payload DemandOfferPayload) error {
	key := fmt.Sprintf("offer:%s:%s", payload.ChannelID, payload.Demand.ID)
	if u.markSeen(key) {
		return nil
	}

	fields, err := u.oracleSvc.GenerateOfferResponse(ctx, payload.Demand, u.profile, payload.Reason)
	if err != nil {
		u.log.Warn().Err(err).Msg("generate offer response returned an error despite adapter fallback contract")
	}

	offer := types.Offer{
		ID:           uuid.New(),
		DemandID:     payload.Demand.ID,
		ChannelID:    payload.ChannelID,
		ResponderID:  u.profile.ID,
		Decision:     fields.Decision,
		Contribution: fields.Contribution,
		Conditions:   fields.Conditions,
		Confidence:   fields.Confidence,
		Rationale:    fields.Rationale,
		SubmittedAt:  time.Now(),
	}

	if u.router == nil {
		return fmt.Errorf("%w: user agent %q", ErrNoRouter, u.profile.ID)
	}
	msg := agentrt.Message{
		SenderID:    u.recipientID(),
		RecipientID: registry.ChannelAdminRecipientID,
		Type:        MsgOfferSubmitted,
		ChannelID:   payload.ChannelID,
		Sequence:    offer.ID.String(),
		Payload:     offer,
	}
	_, err = u.router.Send(ctx, msg)
	return err
}

func (u *UserAgent) onProposalReview(ctx context.Context, payload ProposalReviewPayload) error {
	key := fmt.Sprintf("feedback:%s:%d", payload.ChannelID, payload.Proposal.Version)
	if u.markSeen(key) {
		return nil
	}

	fb := types.Feedback{
		ChannelID:   payload.ChannelID,
		Version:     payload.Proposal.Version,
		AgentID:     u.profile.ID,
		SubmittedAt: time.Now(),
	}

	var mine *types.Assignment
	for i := range payload.Proposal.Assignments {
		if payload.Proposal.Assignments[i].AgentID == u.profile.ID {
			mine = &payload.Proposal.Assignments[i]
			break
		}
	}
	switch {
	case mine == nil:
		fb.Kind = types.FeedbackWithdraw
		fb.Rationale = "no role assigned in the distributed proposal"
	case !mine.AcceptedConditions:
		fb.Kind = types.FeedbackNegotiate
		fb.RequestedAdjustment = "clarify outstanding conditions for " + mine.Role
		fb.Rationale = "assigned role still carries unresolved conditions"
	default:
		fb.Kind = types.FeedbackAccept
		fb.Rationale = "assigned role and responsibilities are acceptable"
	}

	if u.router == nil {
		return fmt.Errorf("%w: user agent %q", ErrNoRouter, u.profile.ID)
	}
	msg := agentrt.Message{
		SenderID:    u.recipientID(),
		RecipientID: registry.ChannelAdminRecipientID,
		Type:        MsgFeedback,
		ChannelID:   payload.ChannelID,
		Sequence:    strconv.Itoa(payload.Proposal.Version),
		Payload:     fb,
	}
	_, err := u.router.Send(ctx, msg)
	return err
}

// Deliver implements agentrt.Recipient.
func (u *UserAgent) Deliver(ctx context.Context, msg agentrt.Message) error {
	switch msg.Type {
	case MsgDemandOffer:
		payload, ok := msg.Payload.(DemandOfferPayload)
		if !ok {
			return fmt.Errorf("engine: user agent received malformed demand_offer payload")
		}
		return u.onDemandOffer(ctx, payload)
	case MsgProposalReview:
		payload, ok := msg.Payload.(ProposalReviewPayload)
		if !ok {
			return fmt.Errorf("engine: user agent received malformed proposal_review payload")
		}
		return u.onProposalReview(ctx, payload)
	default:
		return fmt.Errorf("engine: user agent cannot handle message type %q", msg.Type)
	}
}

var _ agentrt.Recipient = (*UserAgent)(nil)

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/registry"
	"negotiation-engine/pkg/core/types"
)

type recordingAgentTarget struct {
	mu   sync.Mutex
	msgs []agentrt.Message
}

func (r *recordingAgentTarget) Deliver(ctx context.Context, msg agentrt.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingAgentTarget) snapshot() []agentrt.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agentrt.Message(nil), r.msgs...)
}

type singleTargetRegistry struct {
	target agentrt.Recipient
}

func (s *singleTargetRegistry) Resolve(recipientID string) (agentrt.Recipient, error) {
	return s.target, nil
}

func newTestUserAgent(t *testing.T, profile types.AgentProfile) (*UserAgent, *recordingAgentTarget) {
	t.Helper()
	target := &recordingAgentTarget{}
	router := agentrt.New(&singleTargetRegistry{target: target}, time.Minute)
	return NewUserAgent(profile, oracle.NewMockService(), router), target
}

func TestUserAgentOnDemandOfferSubmitsOfferOnce(t *testing.T) {
	profile := types.AgentProfile{ID: "alice", DisplayName: "Alice", CapabilityTags: []string{"general"}}
	agent, target := newTestUserAgent(t, profile)

	payload := DemandOfferPayload{
		ChannelID: "chan-1",
		Demand:    types.Demand{ID: uuid.New(), RawText: "need a hand moving furniture"},
		Reason:    "matches capability general",
	}

	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgDemandOffer, Payload: payload}))
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgDemandOffer, Payload: payload})) // redelivered

	msgs := target.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgOfferSubmitted, msgs[0].Type)
	assert.Equal(t, registry.ChannelAdminRecipientID, msgs[0].RecipientID)
	offer, ok := msgs[0].Payload.(types.Offer)
	require.True(t, ok)
	assert.Equal(t, types.DecisionParticipate, offer.Decision)
	assert.Equal(t, "alice", offer.ResponderID)
}

func TestUserAgentOnProposalReviewWithdrawsWhenUnassigned(t *testing.T) {
	profile := types.AgentProfile{ID: "alice"}
	agent, target := newTestUserAgent(t, profile)

	payload := ProposalReviewPayload{
		ChannelID: "chan-1",
		Proposal:  types.Proposal{Version: 1, Assignments: []types.Assignment{{AgentID: "bob", Role: "organizer", AcceptedConditions: true}}},
	}
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgProposalReview, Payload: payload}))

	msgs := target.snapshot()
	require.Len(t, msgs, 1)
	fb, ok := msgs[0].Payload.(types.Feedback)
	require.True(t, ok)
	assert.Equal(t, types.FeedbackWithdraw, fb.Kind)
}

func TestUserAgentOnProposalReviewNegotiatesWhenConditionsUnresolved(t *testing.T) {
	profile := types.AgentProfile{ID: "alice"}
	agent, target := newTestUserAgent(t, profile)

	payload := ProposalReviewPayload{
		ChannelID: "chan-1",
		Proposal:  types.Proposal{Version: 1, Assignments: []types.Assignment{{AgentID: "alice", Role: "contributor", AcceptedConditions: false}}},
	}
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgProposalReview, Payload: payload}))

	msgs := target.snapshot()
	require.Len(t, msgs, 1)
	fb, ok := msgs[0].Payload.(types.Feedback)
	require.True(t, ok)
	assert.Equal(t, types.FeedbackNegotiate, fb.Kind)
	assert.NotEmpty(t, fb.RequestedAdjustment)
}

func TestUserAgentOnProposalReviewAcceptsWhenConditionsResolved(t *testing.T) {
	profile := types.AgentProfile{ID: "alice"}
	agent, target := newTestUserAgent(t, profile)

	payload := ProposalReviewPayload{
		ChannelID: "chan-1",
		Proposal:  types.Proposal{Version: 1, Assignments: []types.Assignment{{AgentID: "alice", Role: "contributor", AcceptedConditions: true}}},
	}
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgProposalReview, Payload: payload}))

	msgs := target.snapshot()
	require.Len(t, msgs, 1)
	fb, ok := msgs[0].Payload.(types.Feedback)
	require.True(t, ok)
	assert.Equal(t, types.FeedbackAccept, fb.Kind)
}

func TestUserAgentRedeliveredFeedbackRequestIsIdempotent(t *testing.T) {
	profile := types.AgentProfile{ID: "alice"}
	agent, target := newTestUserAgent(t, profile)

	payload := ProposalReviewPayload{
		ChannelID: "chan-1",
		Proposal:  types.Proposal{Version: 1, Assignments: []types.Assignment{{AgentID: "alice", Role: "contributor", AcceptedConditions: true}}},
	}
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgProposalReview, Payload: payload}))
	require.NoError(t, agent.Deliver(context.Background(), agentrt.Message{Type: MsgProposalReview, Payload: payload}))

	assert.Len(t, target.snapshot(), 1)
}

func TestUserAgentDeliverRejectsUnknownMessageType(t *testing.T) {
	profile := types.AgentProfile{ID: "alice"}
	agent, _ := newTestUserAgent(t, profile)
	err := agent.Deliver(context.Background(), agentrt.Message{Type: "not_a_real_type"})
	assert.Error(t, err)
}

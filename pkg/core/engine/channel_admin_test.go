package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-engine/pkg/core/eventbus"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/types"
)

func waitForEvent(t *testing.T, sub *eventbus.Subscription, timeout time.Duration) types.Event {
	t.Helper()
	select {
	case evt := <-sub.C:
		return evt
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event on pattern")
		return types.Event{}
	}
}

func testDemand() types.Demand {
	return types.Demand{ID: uuid.New(), SubmitterID: "human-1", RawText: "need help moving a piano", Status: types.DemandPending}
}

func TestChannelAdministratorHappyPathFinalizes(t *testing.T) {
	bus := eventbus.New(100)
	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	cfg.NegotiationDeadline = 2 * time.Second
	admin := NewChannelAdministrator(cfg, oracle.NewMockService(), bus)

	proposalSub := bus.Subscribe(types.EventProposalDistrib)
	finalizedSub := bus.Subscribe(types.EventFinalized)

	ctx := context.Background()
	channelID := "chan-happy"
	err := admin.StartManaging(ctx, CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  []string{"alice", "bob"},
		MaxRounds: 3,
	})
	require.NoError(t, err)

	require.NoError(t, admin.OnOffer(ctx, channelID, "alice", types.Offer{ID: uuid.New(), ResponderID: "alice", Decision: types.DecisionParticipate, Contribution: "carries the heavy end"}))
	require.NoError(t, admin.OnOffer(ctx, channelID, "bob", types.Offer{ID: uuid.New(), ResponderID: "bob", Decision: types.DecisionParticipate, Contribution: "drives the van"}))

	evt := waitForEvent(t, proposalSub, time.Second)
	version := evt.Payload["version"].(int)
	assert.Equal(t, 1, version)

	require.NoError(t, admin.OnFeedback(ctx, channelID, "alice", types.Feedback{ChannelID: channelID, Version: version, AgentID: "alice", Kind: types.FeedbackAccept}))
	require.NoError(t, admin.OnFeedback(ctx, channelID, "bob", types.Feedback{ChannelID: channelID, Version: version, AgentID: "bob", Kind: types.FeedbackAccept}))

	waitForEvent(t, finalizedSub, time.Second)

	snap, ok := admin.Snapshot(channelID)
	require.True(t, ok)
	assert.Equal(t, types.StatusFinalized, snap.Status)
}

// TestChannelAdministratorMultiRoundNegotiationConverges drives a channel
// through a negotiate/adjust round before the second round's unanimous
// accept finalizes it, exercising adjustAndRedistribute end to end.
func TestChannelAdministratorMultiRoundNegotiationConverges(t *testing.T) {
	bus := eventbus.New(100)
	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	cfg.NegotiationDeadline = 2 * time.Second
	admin := NewChannelAdministrator(cfg, oracle.NewMockService(), bus)

	proposalSub := bus.Subscribe(types.EventProposalDistrib)
	roundSub := bus.Subscribe(types.EventRoundStarted)
	finalizedSub := bus.Subscribe(types.EventFinalized)

	ctx := context.Background()
	channelID := "chan-multiround"
	require.NoError(t, admin.StartManaging(ctx, CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  []string{"alice", "bob"},
		MaxRounds: 3,
	}))

	require.NoError(t, admin.OnOffer(ctx, channelID, "alice", types.Offer{ID: uuid.New(), ResponderID: "alice", Decision: types.DecisionParticipate, Contribution: "carries the heavy end"}))
	require.NoError(t, admin.OnOffer(ctx, channelID, "bob", types.Offer{ID: uuid.New(), ResponderID: "bob", Decision: types.DecisionParticipate, Contribution: "drives the van"}))

	evt := waitForEvent(t, proposalSub, time.Second)
	assert.Equal(t, 1, evt.Payload["version"].(int))

	// Round 1: alice wants an adjustment, bob accepts outright. Neither the
	// accept nor the withdraw threshold is crossed, so the channel must
	// adjust and redistribute rather than finalize or fail.
	require.NoError(t, admin.OnFeedback(ctx, channelID, "alice", types.Feedback{ChannelID: channelID, Version: 1, AgentID: "alice", Kind: types.FeedbackNegotiate, RequestedAdjustment: "move the start time later"}))
	require.NoError(t, admin.OnFeedback(ctx, channelID, "bob", types.Feedback{ChannelID: channelID, Version: 1, AgentID: "bob", Kind: types.FeedbackAccept}))

	waitForEvent(t, roundSub, time.Second)
	evt = waitForEvent(t, proposalSub, time.Second)
	assert.Equal(t, 2, evt.Payload["version"].(int))

	snap, ok := admin.Snapshot(channelID)
	require.True(t, ok)
	assert.Equal(t, types.StatusNegotiating, snap.Status)
	assert.Equal(t, 2, snap.Round)
	require.NotNil(t, snap.CurrentProposal)
	assert.Contains(t, snap.CurrentProposal.OpenQuestions, "move the start time later")

	// Round 2: both accept the adjusted proposal, so the channel finalizes.
	require.NoError(t, admin.OnFeedback(ctx, channelID, "alice", types.Feedback{ChannelID: channelID, Version: 2, AgentID: "alice", Kind: types.FeedbackAccept}))
	require.NoError(t, admin.OnFeedback(ctx, channelID, "bob", types.Feedback{ChannelID: channelID, Version: 2, AgentID: "bob", Kind: types.FeedbackAccept}))

	waitForEvent(t, finalizedSub, time.Second)

	snap, ok = admin.Snapshot(channelID)
	require.True(t, ok)
	assert.Equal(t, types.StatusFinalized, snap.Status)
	assert.Equal(t, 2, snap.Round)
}

func TestChannelAdministratorNoCandidatesFailsImmediately(t *testing.T) {
	bus := eventbus.New(100)
	admin := NewChannelAdministrator(DefaultConfig(), oracle.NewMockService(), bus)
	failedSub := bus.Subscribe(types.EventFailed)

	channelID := "chan-empty"
	err := admin.StartManaging(context.Background(), CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  nil,
		MaxRounds: 3,
	})
	require.NoError(t, err)

	evt := waitForEvent(t, failedSub, time.Second)
	assert.Equal(t, string(types.ReasonNoCandidates), evt.Payload["reason"].(string))
}

func TestChannelAdministratorCollectionDeadlineWithNoResponsesFails(t *testing.T) {
	bus := eventbus.New(100)
	cfg := DefaultConfig()
	cfg.CollectionDeadline = 30 * time.Millisecond
	admin := NewChannelAdministrator(cfg, oracle.NewMockService(), bus)
	failedSub := bus.Subscribe(types.EventFailed)

	channelID := "chan-silent"
	err := admin.StartManaging(context.Background(), CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  []string{"alice", "bob"},
		MaxRounds: 3,
	})
	require.NoError(t, err)

	evt := waitForEvent(t, failedSub, time.Second)
	assert.Equal(t, string(types.ReasonNoResponses), evt.Payload["reason"].(string))
}

func TestChannelAdministratorCoreParticipantWithdrawalFailsImmediately(t *testing.T) {
	bus := eventbus.New(100)
	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	cfg.NegotiationDeadline = 2 * time.Second
	admin := NewChannelAdministrator(cfg, oracle.NewMockService(), bus)

	proposalSub := bus.Subscribe(types.EventProposalDistrib)
	failedSub := bus.Subscribe(types.EventFailed)

	ctx := context.Background()
	channelID := "chan-withdraw"
	require.NoError(t, admin.StartManaging(ctx, CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  []string{"alice", "bob"},
		MaxRounds: 3,
	}))
	require.NoError(t, admin.OnOffer(ctx, channelID, "alice", types.Offer{ID: uuid.New(), ResponderID: "alice", Decision: types.DecisionParticipate}))
	require.NoError(t, admin.OnOffer(ctx, channelID, "bob", types.Offer{ID: uuid.New(), ResponderID: "bob", Decision: types.DecisionParticipate}))

	evt := waitForEvent(t, proposalSub, time.Second)
	version := evt.Payload["version"].(int)

	// alice is the sole "organizer" (the first offer received); withdrawing
	// that role with no replacement should fail the channel immediately,
	// without waiting on bob's feedback.
	require.NoError(t, admin.OnFeedback(ctx, channelID, "alice", types.Feedback{ChannelID: channelID, Version: version, AgentID: "alice", Kind: types.FeedbackWithdraw}))

	evt = waitForEvent(t, failedSub, time.Second)
	assert.Equal(t, string(types.ReasonCoreWithdrew), evt.Payload["reason"].(string))
}

func TestChannelAdministratorRejectsOfferForUnknownChannel(t *testing.T) {
	bus := eventbus.New(100)
	admin := NewChannelAdministrator(DefaultConfig(), oracle.NewMockService(), bus)

	err := admin.OnOffer(context.Background(), "does-not-exist", "alice", types.Offer{})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestChannelAdministratorDuplicateOfferIsIdempotent(t *testing.T) {
	bus := eventbus.New(100)
	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	admin := NewChannelAdministrator(cfg, oracle.NewMockService(), bus)

	ctx := context.Background()
	channelID := "chan-dup"
	require.NoError(t, admin.StartManaging(ctx, CreateChannelPayload{
		ChannelID: channelID,
		Demand:    testDemand(),
		Invitees:  []string{"alice", "bob"},
		MaxRounds: 3,
	}))

	offerID := uuid.New()
	offer := types.Offer{ID: offerID, ResponderID: "alice", Decision: types.DecisionParticipate}
	require.NoError(t, admin.OnOffer(ctx, channelID, "alice", offer))
	require.NoError(t, admin.OnOffer(ctx, channelID, "alice", offer)) // redelivered, must be a no-op

	snap, ok := admin.Snapshot(channelID)
	require.True(t, ok)
	assert.Len(t, snap.Responded, 1)
}

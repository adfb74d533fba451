package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/store"
	"negotiation-engine/pkg/core/types"
)

func TestEngineSubmitDemandFinalizesEndToEnd(t *testing.T) {
	profiles := store.NewMemoryProfileRepo(
		types.AgentProfile{ID: "alice", DisplayName: "Alice", CapabilityTags: []string{"general"}},
		types.AgentProfile{ID: "bob", DisplayName: "Bob", CapabilityTags: []string{"general"}},
	)

	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	cfg.NegotiationDeadline = 2 * time.Second

	e := New(cfg, oracle.DefaultConfig(), oracle.NewMockService(), profiles, profiles)

	finalizedSub := e.SubscribeEvents(types.EventFinalized)

	channelID, err := e.SubmitDemand(context.Background(), "human-1", "need two people to help move a piano")
	require.NoError(t, err)
	assert.NotEmpty(t, channelID)

	waitForEvent(t, finalizedSub, 2*time.Second)

	snap, ok := e.ChannelSnapshot(channelID)
	require.True(t, ok)
	assert.Equal(t, types.StatusFinalized, snap.Status)
	assert.ElementsMatch(t, []string{"alice", "bob"}, snap.Participating)
}

// TestEngineSpawnsSubChannelForIdentifiedGap drives a gap identified on the
// parent's first proposal all the way through subnet spawning to
// OnSubChannelResult integrating the sub-channel's outcome back in.
func TestEngineSpawnsSubChannelForIdentifiedGap(t *testing.T) {
	profiles := store.NewMemoryProfileRepo(
		types.AgentProfile{ID: "alice", DisplayName: "Alice", CapabilityTags: []string{"general"}},
		types.AgentProfile{ID: "bob", DisplayName: "Bob", CapabilityTags: []string{"general"}},
		types.AgentProfile{ID: "carol", DisplayName: "Carol", CapabilityTags: []string{"photography"}},
	)

	mock := oracle.NewMockService()
	var gapOnce sync.Once
	mock.IdentifyGapsFunc = func(demand types.Demand, proposal types.Proposal) []types.Gap {
		var gaps []types.Gap
		gapOnce.Do(func() {
			gaps = []types.Gap{{ID: "gap-photo", Description: "need a photographer", Capability: "photography", ImportanceScore: 70}}
		})
		return gaps
	}
	mock.JudgeRecursionFunc = func(gaps []types.Gap, depth int) []types.Gap {
		return gaps
	}

	cfg := DefaultConfig()
	cfg.CollectionDeadline = 2 * time.Second
	cfg.NegotiationDeadline = 2 * time.Second
	e := New(cfg, oracle.DefaultConfig(), mock, profiles, profiles)

	subnetSub := e.SubscribeEvents(types.EventSubnetTriggered)
	finalizedSub := e.SubscribeEvents(types.EventFinalized)

	channelID, err := e.SubmitDemand(context.Background(), "human-1", "need two people to move a piano")
	require.NoError(t, err)

	subEvt := waitForEvent(t, subnetSub, 2*time.Second)
	assert.Equal(t, channelID, subEvt.Payload["channel_id"])
	subChannelID, ok := subEvt.Payload["sub_channel_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, subChannelID)

	// The parent and the sub-channel finalize independently; collect both
	// finalized events without assuming which comes first.
	finalizedIDs := map[string]bool{}
	for i := 0; i < 2; i++ {
		evt := waitForEvent(t, finalizedSub, 2*time.Second)
		finalizedIDs[evt.Payload["channel_id"].(string)] = true
	}
	assert.True(t, finalizedIDs[channelID])
	assert.True(t, finalizedIDs[subChannelID])

	parentSnap, ok := e.ChannelSnapshot(channelID)
	require.True(t, ok)
	assert.Equal(t, types.StatusFinalized, parentSnap.Status)
	require.Contains(t, parentSnap.SubChannels, subChannelID)
	assert.Equal(t, types.StatusFinalized, parentSnap.SubChannels[subChannelID].Status)
}

func TestEngineSubmitDemandNoCandidatesFails(t *testing.T) {
	profiles := store.NewMemoryProfileRepo() // empty directory: nothing matches any capability

	e := New(DefaultConfig(), oracle.DefaultConfig(), oracle.NewMockService(), profiles, profiles)
	failedSub := e.SubscribeEvents(types.EventFailed)

	channelID, err := e.SubmitDemand(context.Background(), "human-1", "need a rocket scientist")
	require.NoError(t, err)

	evt := waitForEvent(t, failedSub, 2*time.Second)
	assert.Equal(t, string(types.ReasonNoCandidates), evt.Payload["reason"].(string))
	assert.Equal(t, channelID, evt.Payload["channel_id"])
}

package registry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/types"
)

type stubProfiles struct {
	profile types.AgentProfile
	found   bool
	calls   int32
}

func (s *stubProfiles) Get(userID string) (types.AgentProfile, bool, error) {
	atomic.AddInt32(&s.calls, 1)
	if !s.found {
		return types.AgentProfile{}, false, nil
	}
	return s.profile, true, nil
}

type noopAgent struct{ id string }

func (n *noopAgent) Deliver(ctx context.Context, msg agentrt.Message) error { return nil }

func TestResolveSingletons(t *testing.T) {
	reg := New(&stubProfiles{}, func(p types.AgentProfile) agentrt.Recipient { return &noopAgent{id: p.ID} })
	coordinator := &noopAgent{id: "coordinator"}
	admin := &noopAgent{id: "admin"}
	reg.SetSingletons(coordinator, admin)

	got, err := reg.Resolve(CoordinatorRecipientID)
	require.NoError(t, err)
	assert.Same(t, coordinator, got)

	got, err = reg.Resolve(ChannelAdminRecipientID)
	require.NoError(t, err)
	assert.Same(t, admin, got)
}

func TestResolveUnknownSingletonErrors(t *testing.T) {
	reg := New(&stubProfiles{}, func(p types.AgentProfile) agentrt.Recipient { return &noopAgent{id: p.ID} })
	_, err := reg.Resolve(CoordinatorRecipientID)
	assert.Error(t, err)
}

func TestResolveMaterializesUserAgentOnce(t *testing.T) {
	profiles := &stubProfiles{profile: types.AgentProfile{ID: "alice"}, found: true}
	reg := New(profiles, func(p types.AgentProfile) agentrt.Recipient { return &noopAgent{id: p.ID} })

	first, err := reg.Resolve(UserAgentID("alice"))
	require.NoError(t, err)
	second, err := reg.Resolve(UserAgentID("alice"))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&profiles.calls))
}

func TestResolveUnknownUserErrors(t *testing.T) {
	reg := New(&stubProfiles{found: false}, func(p types.AgentProfile) agentrt.Recipient { return &noopAgent{id: p.ID} })
	_, err := reg.Resolve(UserAgentID("ghost"))
	assert.Error(t, err)
}

// Package registry is the Agent Registry (Factory): it holds the two
// singleton system agents and lazily materializes per-user agents on first
// reference, caching them for the process lifetime.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/types"
)

const userAgentPrefix = "user_agent_"

// CoordinatorRecipientID and ChannelAdminRecipientID are the well-known
// singleton recipient IDs the Router resolves against.
const (
	CoordinatorRecipientID  = "coordinator"
	ChannelAdminRecipientID = "channel_administrator"
)

// UserAgentID derives the routable recipient ID for a given user.
func UserAgentID(userID string) string {
	return userAgentPrefix + userID
}

// ProfileRepository is the external, consumed interface for fetching agent
// profiles (never owned by the engine).
type ProfileRepository interface {
	Get(userID string) (types.AgentProfile, bool, error)
}

// UserAgentFactory builds a fresh per-user Recipient from its profile. The
// Registry calls this at most once per user ID thanks to singleflight.
type UserAgentFactory func(profile types.AgentProfile) agentrt.Recipient

// Registry is the Agent Registry/Factory. Reads are lock-free via sync.Map;
// materialization of a new user agent is de-duplicated with singleflight so
// two concurrent lookups for the same user ID produce exactly one instance -
// this promotes golang.org/x/sync, already an indirect dependency of the
// teacher repo, to direct use for precisely the purpose it exists for.
type Registry struct {
	mu            sync.RWMutex
	coordinator   agentrt.Recipient
	channelAdmin  agentrt.Recipient
	userAgents    sync.Map // string -> agentrt.Recipient
	sf            singleflight.Group
	profiles      ProfileRepository
	newUserAgent  UserAgentFactory
}

// New builds a Registry. SetSingletons must be called once before Resolve
// is usable for the system agents (the Coordinator and Channel
// Administrator receive the Router, which needs this Registry, only after
// construction, so they are wired in after the Registry itself exists).
func New(profiles ProfileRepository, factory UserAgentFactory) *Registry {
	return &Registry{profiles: profiles, newUserAgent: factory}
}

// SetSingletons installs the process-wide Coordinator and Channel
// Administrator instances.
func (r *Registry) SetSingletons(coordinator, channelAdmin agentrt.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coordinator = coordinator
	r.channelAdmin = channelAdmin
}

// Resolve implements agentrt.Registry.
func (r *Registry) Resolve(recipientID string) (agentrt.Recipient, error) {
	switch recipientID {
	case CoordinatorRecipientID:
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.coordinator == nil {
			return nil, fmt.Errorf("registry: coordinator singleton not configured")
		}
		return r.coordinator, nil
	case ChannelAdminRecipientID:
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.channelAdmin == nil {
			return nil, fmt.Errorf("registry: channel administrator singleton not configured")
		}
		return r.channelAdmin, nil
	}

	if !strings.HasPrefix(recipientID, userAgentPrefix) {
		return nil, fmt.Errorf("registry: unknown recipient %q", recipientID)
	}
	userID := strings.TrimPrefix(recipientID, userAgentPrefix)
	return r.resolveUserAgent(userID)
}

func (r *Registry) resolveUserAgent(userID string) (agentrt.Recipient, error) {
	if cached, ok := r.userAgents.Load(userID); ok {
		return cached.(agentrt.Recipient), nil
	}

	result, err, _ := r.sf.Do(userID, func() (interface{}, error) {
		// Re-check under singleflight: another goroutine may have finished
		// materializing while we were waiting to enter Do.
		if cached, ok := r.userAgents.Load(userID); ok {
			return cached, nil
		}
		profile, found, err := r.profiles.Get(userID)
		if err != nil {
			return nil, fmt.Errorf("registry: profile lookup for %q: %w", userID, err)
		}
		if !found {
			return nil, fmt.Errorf("registry: no profile found for user %q", userID)
		}
		agent := r.newUserAgent(profile)
		r.userAgents.Store(userID, agent)
		return agent, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(agentrt.Recipient), nil
}

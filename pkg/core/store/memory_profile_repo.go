package store

import (
	"context"
	"sync"

	"negotiation-engine/pkg/core/types"
)

// MemoryProfileRepo is an in-process ProfileRepository/CandidateDirectory
// for tests and the demo binary: no database required. Grounded on the same
// "swap the real backend for a deterministic in-memory one" idiom as
// oracle.MockService.
type MemoryProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]types.AgentProfile
}

// NewMemoryProfileRepo builds a repository seeded with the given profiles.
func NewMemoryProfileRepo(seed ...types.AgentProfile) *MemoryProfileRepo {
	r := &MemoryProfileRepo{profiles: make(map[string]types.AgentProfile, len(seed))}
	for _, p := range seed {
		r.profiles[p.ID] = p
	}
	return r
}

// Get implements registry.ProfileRepository.
func (r *MemoryProfileRepo) Get(userID string) (types.AgentProfile, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	return p, ok, nil
}

// ListProfiles implements engine.CandidateDirectory.
func (r *MemoryProfileRepo) ListProfiles(ctx context.Context) ([]types.AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.AgentProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out, nil
}

// Put adds or replaces a profile.
func (r *MemoryProfileRepo) Put(p types.AgentProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

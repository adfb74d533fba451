package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"negotiation-engine/pkg/core/llm"
	"negotiation-engine/pkg/core/types"
	"negotiation-engine/pkg/core/utils"
)

// LLMService is the real oracle backing, adapted from the teacher's
// agent.Manager: it holds a named map of llm.Provider implementations and
// dispatches each typed operation as a prompt, then runs the response
// through the SmartParse repair ladder to recover a typed record.
type LLMService struct {
	providers      map[string]llm.Provider
	activeProvider string
}

// NewLLMService builds a service backed by the given provider map; active
// selects which one handles calls unless a future per-operation override is
// configured.
func NewLLMService(providers map[string]llm.Provider, active string) *LLMService {
	return &LLMService{providers: providers, activeProvider: active}
}

func (s *LLMService) provider() llm.Provider {
	if p, ok := s.providers[s.activeProvider]; ok {
		return p
	}
	for _, p := range s.providers {
		return p
	}
	return nil
}

func (s *LLMService) prompt(ctx context.Context, system, user string, schema interface{}) error {
	p := s.provider()
	if p == nil {
		return fmt.Errorf("oracle: no llm provider configured")
	}
	adapted := p.AdaptInstructions(system)
	raw, err := p.GenerateResponse(ctx, user, adapted, nil)
	if err != nil {
		return fmt.Errorf("oracle: provider call failed: %w", err)
	}
	raw = stripCodeFence(raw)
	if _, err := utils.SmartParse(raw, schema); err != nil {
		return fmt.Errorf("oracle: could not parse model response: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (s *LLMService) UnderstandDemand(ctx context.Context, rawText string) (Understanding, error) {
	var out Understanding
	system := "You decompose a collaboration request into surface meaning, deep intent, and capability tags. Respond with JSON only."
	user := fmt.Sprintf(`{"raw_text": %q}`, rawText)
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return Understanding{}, err
	}
	return out, nil
}

func (s *LLMService) FilterCandidates(ctx context.Context, demand types.Demand, profiles []types.AgentProfile) ([]FilterResult, error) {
	var out []FilterResult
	system := "You select 5 to 20 candidate agents best suited to a demand from the given profile list. Respond with a JSON array of {agent_id, reason}."
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	user := fmt.Sprintf(`{"demand": %q, "tags": %s, "profiles": %s}`, demand.Deep, mustJSON(demand.CapabilityTags), mustJSON(ids))
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LLMService) GenerateOfferResponse(ctx context.Context, demand types.Demand, profile types.AgentProfile, filterReason string) (OfferFields, error) {
	var out OfferFields
	system := "You represent one user in a negotiation. Decide participate, decline, or conditional and respond with JSON {decision, contribution, conditions, confidence, rationale}."
	user := fmt.Sprintf(`{"demand": %q, "profile": %q, "reason": %q}`, demand.Deep, profile.SelfDescription, filterReason)
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return OfferFields{}, err
	}
	return out, nil
}

func (s *LLMService) AggregateOffers(ctx context.Context, demand types.Demand, offers []types.Offer) (types.Proposal, error) {
	var out types.Proposal
	system := "You aggregate participant offers into a concrete proposal with role assignments. Respond with JSON matching the Proposal schema."
	user := fmt.Sprintf(`{"demand": %q, "offers": %s}`, demand.Deep, mustJSON(offers))
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return types.Proposal{}, err
	}
	return out, nil
}

func (s *LLMService) AdjustProposal(ctx context.Context, current types.Proposal, feedback []types.Feedback) (AdjustResult, error) {
	var out AdjustResult
	system := "You revise a proposal in light of participant feedback. Respond with JSON {proposal, should_continue}."
	user := fmt.Sprintf(`{"current": %s, "feedback": %s}`, mustJSON(current), mustJSON(feedback))
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return AdjustResult{}, err
	}
	return out, nil
}

func (s *LLMService) IdentifyGaps(ctx context.Context, demand types.Demand, proposal types.Proposal) ([]types.Gap, error) {
	var out []types.Gap
	system := "You identify capability or resource gaps left open by a proposal. Respond with a JSON array of Gap records with importance_score 0-100."
	user := fmt.Sprintf(`{"demand": %q, "proposal": %s}`, demand.Deep, mustJSON(proposal))
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LLMService) JudgeRecursion(ctx context.Context, gaps []types.Gap, depth int, timeRemaining time.Duration) ([]types.Gap, error) {
	var out []types.Gap
	system := "Given open gaps, current recursion depth, and remaining time budget, select which gaps are worth spawning a sub-negotiation for. Respond with a JSON array of Gap records."
	user := fmt.Sprintf(`{"gaps": %s, "depth": %d, "time_remaining_seconds": %d}`, mustJSON(gaps), depth, int(timeRemaining.Seconds()))
	if err := s.prompt(ctx, system, user, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

var _ Service = (*LLMService)(nil)

package oracle

import (
	"context"
	"fmt"
	"time"

	"negotiation-engine/pkg/core/types"
)

// MockService is a deterministic oracle backing for tests and simulation
// runs, in the same spirit as the teacher's debate.MockAgent: no network
// call, a small fixed "thinking" latency, and role-flavored but predictable
// output so fixtures (S1-S6) are reproducible.
type MockService struct {
	Latency time.Duration

	// FilterFunc, when set, overrides the default "match any capability tag"
	// filtering behaviour, letting tests drive S3 (no candidates) directly.
	FilterFunc func(demand types.Demand, profiles []types.AgentProfile) []FilterResult

	// IdentifyGapsFunc and JudgeRecursionFunc, when set, override the default
	// "no gaps, ever" behaviour, letting tests drive S4 (sub-channel
	// spawning) directly without a real oracle backend.
	IdentifyGapsFunc   func(demand types.Demand, proposal types.Proposal) []types.Gap
	JudgeRecursionFunc func(gaps []types.Gap, depth int) []types.Gap
}

func NewMockService() *MockService {
	return &MockService{Latency: 10 * time.Millisecond}
}

func (m *MockService) sleep(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockService) UnderstandDemand(ctx context.Context, rawText string) (Understanding, error) {
	if err := m.sleep(ctx); err != nil {
		return Understanding{}, err
	}
	return Understanding{
		Surface:    rawText,
		Deep:       "collaboration request: " + rawText,
		Tags:       deriveTags(rawText),
		Confidence: 80,
	}, nil
}

func (m *MockService) FilterCandidates(ctx context.Context, demand types.Demand, profiles []types.AgentProfile) ([]FilterResult, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	if m.FilterFunc != nil {
		return m.FilterFunc(demand, profiles), nil
	}
	var out []FilterResult
	for _, p := range profiles {
		for _, tag := range demand.CapabilityTags {
			if p.HasTag(tag) {
				out = append(out, FilterResult{AgentID: p.ID, Reason: fmt.Sprintf("matches capability %q", tag)})
				break
			}
		}
	}
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func (m *MockService) GenerateOfferResponse(ctx context.Context, demand types.Demand, profile types.AgentProfile, filterReason string) (OfferFields, error) {
	if err := m.sleep(ctx); err != nil {
		return OfferFields{}, err
	}
	return OfferFields{
		Decision:     types.DecisionParticipate,
		Contribution: fmt.Sprintf("%s will help with: %s", profile.DisplayName, filterReason),
		Confidence:   75,
		Rationale:    "simulation: candidate accepted based on matched capability",
	}, nil
}

func (m *MockService) AggregateOffers(ctx context.Context, demand types.Demand, offers []types.Offer) (types.Proposal, error) {
	if err := m.sleep(ctx); err != nil {
		return types.Proposal{}, err
	}
	assignments := make([]types.Assignment, 0, len(offers))
	for i, o := range offers {
		if o.Decision == types.DecisionDecline {
			continue
		}
		role := "contributor"
		if i == 0 {
			role = "organizer"
		}
		assignments = append(assignments, types.Assignment{
			AgentID:            o.ResponderID,
			Role:               role,
			Responsibility:     o.Contribution,
			AcceptedConditions: len(o.Conditions) == 0,
		})
	}
	return types.Proposal{
		Version:      1,
		Summary:      "Simulated proposal assembled from participant offers.",
		Assignments:  assignments,
		TimelineHint: "within 4 weeks",
		Confidence:   70,
	}, nil
}

func (m *MockService) AdjustProposal(ctx context.Context, current types.Proposal, feedback []types.Feedback) (AdjustResult, error) {
	if err := m.sleep(ctx); err != nil {
		return AdjustResult{}, err
	}
	adjusted := current
	adjusted.Version = current.Version + 1
	for _, fb := range feedback {
		if fb.Kind == types.FeedbackNegotiate {
			adjusted.OpenQuestions = append(adjusted.OpenQuestions, fb.RequestedAdjustment)
			for i, a := range adjusted.Assignments {
				if a.AgentID == fb.AgentID {
					adjusted.Assignments[i].Responsibility = fmt.Sprintf("%s (adjusted: %s)", a.Responsibility, fb.RequestedAdjustment)
				}
			}
		}
	}
	return AdjustResult{Proposal: adjusted, ShouldContinue: true}, nil
}

func (m *MockService) IdentifyGaps(ctx context.Context, demand types.Demand, proposal types.Proposal) ([]types.Gap, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	if m.IdentifyGapsFunc != nil {
		return m.IdentifyGapsFunc(demand, proposal), nil
	}
	return nil, nil
}

func (m *MockService) JudgeRecursion(ctx context.Context, gaps []types.Gap, depth int, timeRemaining time.Duration) ([]types.Gap, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	if m.JudgeRecursionFunc != nil {
		return m.JudgeRecursionFunc(gaps, depth), nil
	}
	return nil, nil
}

func deriveTags(rawText string) []string {
	// Deterministic placeholder tagging for the mock backend; a real
	// provider would infer tags from the text itself.
	return []string{"general"}
}

var _ Service = (*MockService)(nil)

package oracle

import (
	"negotiation-engine/pkg/core/types"
)

// fallback builds the deterministic record each operation substitutes when
// the real call times out, errors, or the circuit is open. Every fallback
// is chosen to keep downstream code well-formed rather than to look
// plausible.

func fallbackUnderstanding(rawText string) Understanding {
	return Understanding{
		Surface:       rawText,
		Deep:          rawText,
		Tags:          nil,
		Uncertainties: []string{"oracle_unavailable"},
		Confidence:    0,
	}
}

func fallbackFilterCandidates() []FilterResult {
	return nil
}

func fallbackOfferResponse() OfferFields {
	return OfferFields{
		Decision:     types.DecisionDecline,
		Contribution: "",
		Rationale:    "oracle unavailable, defaulting to decline",
		Confidence:   0,
	}
}

func fallbackAggregateOffers(channelID string, offers []types.Offer) types.Proposal {
	assignments := make([]types.Assignment, 0, len(offers))
	for _, o := range offers {
		if o.Decision == types.DecisionDecline {
			continue
		}
		assignments = append(assignments, types.Assignment{
			AgentID:        o.ResponderID,
			Role:           "participant",
			Responsibility: o.Contribution,
		})
	}
	return types.Proposal{
		ChannelID:   channelID,
		Version:     1,
		Summary:     "proposal unavailable: oracle could not aggregate offers",
		Assignments: assignments,
		Confidence:  0,
		Unavailable: true,
	}
}

func fallbackAdjustProposal(current types.Proposal) AdjustResult {
	return AdjustResult{Proposal: current, ShouldContinue: false}
}

func fallbackIdentifyGaps() []types.Gap {
	return nil
}

func fallbackJudgeRecursion() []types.Gap {
	return nil
}

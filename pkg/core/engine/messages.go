package engine

import "negotiation-engine/pkg/core/types"

// Message type strings carried on agentrt.Message.Type. Every cross-agent
// interaction the specification names a verb for gets one of these.
const (
	MsgDemandOffer     = "demand_offer"
	MsgOfferSubmitted  = "offer_submitted"
	MsgProposalReview  = "proposal_review"
	MsgFeedback        = "feedback_submitted"
	MsgCreateChannel   = "create_channel"
	MsgSubnetDemand    = "subnet_demand"
)

// DemandOfferPayload is sent Channel Administrator -> User Agent when
// broadcasting an invitation.
type DemandOfferPayload struct {
	ChannelID string
	Demand    types.Demand
	Reason    string
}

// ProposalReviewPayload is sent Channel Administrator -> User Agent when
// distributing a proposal for feedback.
type ProposalReviewPayload struct {
	ChannelID string
	Proposal  types.Proposal
}

// CreateChannelPayload is sent Coordinator -> Channel Administrator to
// materialize a new Channel and begin managing it.
type CreateChannelPayload struct {
	ChannelID       string
	Demand          types.Demand
	Invitees        []string
	MaxRounds       int
	ParentChannelID string
	Gap             *types.Gap
}

// SubnetDemandPayload is sent Channel Administrator -> Coordinator to
// synthesize a sub-demand from an identified Gap.
type SubnetDemandPayload struct {
	ParentChannelID string
	ParentDemandID  string
	Gap             types.Gap
	Depth           int
}

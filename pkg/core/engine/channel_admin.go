package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/eventbus"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/registry"
	"negotiation-engine/pkg/core/types"
)

// channelState is the Channel Administrator's private, lockable record for
// one Channel. A single process-wide sync.RWMutex guards the channels map
// itself; an individual channel's own sync.Mutex then serializes every
// mutation of that channel's state, matching the specification's
// "per-channel lock/mailbox" concurrency model.
type channelState struct {
	mu sync.Mutex
	c  types.Channel

	offers          []types.Offer
	roundFeedback   map[string]types.Feedback // agentID -> feedback for current round
	collectTimer    *time.Timer
	negotiateTimer  *time.Timer
	pendingSubnets  int
	maxRounds       int
}

// ChannelAdministrator is the multi-channel state machine owner: the heart
// of the negotiation engine. It is grounded on the teacher's
// DebateOrchestrator (phased run loop, per-turn timeout, mutex-guarded
// broadcast) fused with the in-memory negotiation engine's explicit
// transition methods and audit-event-per-transition idiom.
type ChannelAdministrator struct {
	cfg      Config
	oracleSvc oracle.Service
	bus      *eventbus.Bus
	router   *agentrt.Router
	log      zerolog.Logger

	mu       sync.RWMutex
	channels map[string]*channelState
}

// NewChannelAdministrator wires an administrator against its dependencies.
// router is set later via SetRouter once the Registry/Router cycle is
// assembled (see New), mirroring the teacher's SetAgentManager
// injection pattern.
func NewChannelAdministrator(cfg Config, oracleSvc oracle.Service, bus *eventbus.Bus) *ChannelAdministrator {
	return &ChannelAdministrator{
		cfg:       cfg,
		oracleSvc: oracleSvc,
		bus:       bus,
		log:       log.With().Str("component", "channel_administrator").Logger(),
		channels:  make(map[string]*channelState),
	}
}

// SetRouter injects the Router once it exists; ChannelAdministrator and
// Router are constructed in a cycle broken the same way the specification
// prescribes for the Router/Registry cycle.
func (a *ChannelAdministrator) SetRouter(router *agentrt.Router) {
	a.router = router
}

func (a *ChannelAdministrator) emit(eventType, channelID string, extra map[string]any) {
	if a.bus == nil {
		return
	}
	payload := map[string]any{"channel_id": channelID}
	for k, v := range extra {
		payload[k] = v
	}
	a.bus.Publish(types.NewEvent(eventType, registry.ChannelAdminRecipientID, payload))
}

// fingerprint computes the stable hash the specification requires every
// inbound operation to carry implicitly.
func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StartManaging materializes a Channel in CREATED state and runs the
// broadcast (BROADCASTING, then COLLECTING) before returning; aggregation
// and negotiation continue in the background.
func (a *ChannelAdministrator) StartManaging(ctx context.Context, payload CreateChannelPayload) error {
	if payload.Demand.Depth > a.cfg.MaxDepth {
		return fmt.Errorf("engine: channel depth %d exceeds max depth %d", payload.Demand.Depth, a.cfg.MaxDepth)
	}

	maxRounds := payload.MaxRounds
	if maxRounds <= 0 || maxRounds > a.cfg.MaxRounds {
		maxRounds = a.cfg.MaxRounds
	}

	cs := &channelState{
		c: types.Channel{
			ID:                    payload.ChannelID,
			Demand:                payload.Demand,
			Invited:               append([]string(nil), payload.Invitees...),
			Status:                types.StatusCreated,
			Depth:                 payload.Demand.Depth,
			ParentChannelID:       payload.ParentChannelID,
			ProcessedFingerprints: make(map[string]bool),
			SubChannels:           make(map[string]*types.SubChannelRecord),
		},
		roundFeedback: make(map[string]types.Feedback),
		maxRounds:     maxRounds,
	}

	a.mu.Lock()
	a.channels[payload.ChannelID] = cs
	a.mu.Unlock()

	// A top-level channel needs at least two invitees to negotiate between; a
	// sub-channel resolving a single gap may legitimately have just one. A
	// channel failed for this reason never emits channel.created.
	tooFewCandidates := len(payload.Invitees) == 0 || (payload.Demand.Depth == 0 && len(payload.Invitees) < 2)
	if !tooFewCandidates {
		a.emit(types.EventChannelCreated, payload.ChannelID, map[string]any{
			"demand_id": payload.Demand.ID.String(),
			"invitees":  payload.Invitees,
		})
	}

	// Register this channel against its parent, if any, so the parent can
	// integrate the outcome later.
	if payload.ParentChannelID != "" && payload.Gap != nil {
		a.mu.RLock()
		parent, ok := a.channels[payload.ParentChannelID]
		a.mu.RUnlock()
		if ok {
			parent.mu.Lock()
			parent.c.SubChannels[payload.ChannelID] = &types.SubChannelRecord{
				SubChannelID: payload.ChannelID,
				Gap:          *payload.Gap,
				Status:       types.StatusCreated,
			}
			parent.mu.Unlock()
			a.emit(types.EventSubnetTriggered, payload.ParentChannelID, map[string]any{
				"sub_channel_id": payload.ChannelID,
				"gap":            payload.Gap,
				"depth":          payload.Demand.Depth,
			})
		}
	}

	if tooFewCandidates {
		a.failChannel(payload.ChannelID, types.ReasonNoCandidates)
		return nil
	}

	cs.mu.Lock()
	cs.c.Status = types.StatusBroadcasting
	cs.mu.Unlock()

	a.broadcast(ctx, cs)
	return nil
}

// broadcast sends a demand_offer to every invitee and arms the collection
// deadline, then transitions to COLLECTING. Delivery is synchronous, so every
// invitee may already have answered by then; in that case aggregation starts
// immediately.
func (a *ChannelAdministrator) broadcast(ctx context.Context, cs *channelState) {
	cs.mu.Lock()
	invitees := append([]string(nil), cs.c.Invited...)
	channelID := cs.c.ID
	demand := cs.c.Demand
	cs.mu.Unlock()

	for _, invitee := range invitees {
		if a.router == nil {
			continue
		}
		msg := agentrt.Message{
			SenderID:    registry.ChannelAdminRecipientID,
			RecipientID: registry.UserAgentID(invitee),
			Type:        MsgDemandOffer,
			ChannelID:   channelID,
			Sequence:    demand.ID.String(),
			Payload:     DemandOfferPayload{ChannelID: channelID, Demand: demand, Reason: "selected by candidate filter"},
		}
		if _, err := a.router.Send(ctx, msg); err != nil {
			a.log.Warn().Str("channel_id", channelID).Str("invitee", invitee).Err(err).Msg("failed to deliver demand offer")
		}
	}

	a.emit(types.EventDemandBroadcast, channelID, map[string]any{"recipient_count": len(invitees)})

	cs.mu.Lock()
	cs.c.Status = types.StatusCollecting
	cs.collectTimer = time.AfterFunc(a.cfg.CollectionDeadline, func() { a.onCollectionDeadline(channelID) })
	allResponded := len(cs.c.Responded) >= len(cs.c.Invited)
	cs.mu.Unlock()

	if allResponded {
		a.advanceToAggregation(ctx, channelID, cs)
	}
}

func (a *ChannelAdministrator) lookup(channelID string) (*channelState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cs, ok := a.channels[channelID]
	return cs, ok
}

// OnOffer ingests an offer while the channel is in BROADCASTING or
// COLLECTING; any other state rejects it per the specification.
func (a *ChannelAdministrator) OnOffer(ctx context.Context, channelID, agentID string, offer types.Offer) error {
	cs, ok := a.lookup(channelID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channelID)
	}

	cs.mu.Lock()
	if cs.c.Status != types.StatusBroadcasting && cs.c.Status != types.StatusCollecting {
		cs.mu.Unlock()
		a.emit(types.EventProtocolViolation, channelID, map[string]any{"agent_id": agentID, "reason": "offer outside BROADCASTING/COLLECTING"})
		return fmt.Errorf("%w: channel %q in state %s", ErrWrongState, channelID, cs.c.Status)
	}

	fp := fingerprint(agentID, "offer", offer.ID.String())
	if cs.c.ProcessedFingerprints[fp] {
		cs.mu.Unlock()
		return nil // duplicate: silently dropped, per the idempotence law
	}
	cs.c.ProcessedFingerprints[fp] = true
	cs.c.Responded = append(cs.c.Responded, agentID)
	cs.offers = append(cs.offers, offer)
	allResponded := len(cs.c.Responded) >= len(cs.c.Invited)
	cs.mu.Unlock()

	a.emit(types.EventOfferSubmitted, channelID, map[string]any{
		"agent_id":   agentID,
		"decision":   offer.Decision,
		"confidence": offer.Confidence,
	})

	if allResponded {
		a.advanceToAggregation(ctx, channelID, cs)
	}
	return nil
}

func (a *ChannelAdministrator) onCollectionDeadline(channelID string) {
	cs, ok := a.lookup(channelID)
	if !ok {
		return
	}
	cs.mu.Lock()
	if cs.c.Status != types.StatusCollecting {
		cs.mu.Unlock()
		return
	}
	responded := len(cs.c.Responded)
	cs.mu.Unlock()

	if responded == 0 {
		a.failChannel(channelID, types.ReasonNoResponses)
		return
	}
	a.advanceToAggregation(context.Background(), channelID, cs)
}

func (a *ChannelAdministrator) advanceToAggregation(ctx context.Context, channelID string, cs *channelState) {
	cs.mu.Lock()
	if cs.c.Status != types.StatusCollecting {
		cs.mu.Unlock()
		return
	}
	if cs.collectTimer != nil {
		cs.collectTimer.Stop()
	}
	cs.c.Status = types.StatusAggregating
	demand := cs.c.Demand
	offers := append([]types.Offer(nil), cs.offers...)
	isFirstAggregation := cs.c.Round == 0
	cs.mu.Unlock()

	go a.aggregate(ctx, channelID, cs, demand, offers, isFirstAggregation)
}

func (a *ChannelAdministrator) aggregate(ctx context.Context, channelID string, cs *channelState, demand types.Demand, offers []types.Offer, isFirstAggregation bool) {
	proposal, err := a.oracleSvc.AggregateOffers(ctx, demand, offers)
	if err != nil {
		a.log.Error().Str("channel_id", channelID).Err(err).Msg("aggregate offers failed unexpectedly")
	}

	cs.mu.Lock()
	cs.c.Round++
	proposal.ChannelID = channelID
	proposal.Version = cs.c.Round
	cs.c.CurrentProposal = &proposal
	participants := proposal.ParticipantIDs()
	cs.c.Participating = participants
	cs.c.Status = types.StatusProposalSent
	cs.roundFeedback = make(map[string]types.Feedback)
	// Delivery is synchronous, so feedback can arrive before distribution
	// finishes; the channel is NEGOTIATING before the first proposal goes out.
	cs.c.Status = types.StatusNegotiating
	round := cs.c.Round
	cs.negotiateTimer = time.AfterFunc(a.cfg.NegotiationDeadline, func() { a.onNegotiationDeadline(channelID) })
	cs.mu.Unlock()

	a.emit(types.EventProposalDistrib, channelID, map[string]any{
		"version":      proposal.Version,
		"participants": participants,
	})

	for _, p := range participants {
		if a.router == nil {
			continue
		}
		msg := agentrt.Message{
			SenderID:    registry.ChannelAdminRecipientID,
			RecipientID: registry.UserAgentID(p),
			Type:        MsgProposalReview,
			ChannelID:   channelID,
			Sequence:    strconv.Itoa(proposal.Version),
			Payload:     ProposalReviewPayload{ChannelID: channelID, Proposal: proposal},
		}
		if _, err := a.router.Send(ctx, msg); err != nil {
			a.log.Warn().Str("channel_id", channelID).Str("agent_id", p).Err(err).Msg("failed to distribute proposal")
		}
	}

	if round > 1 {
		a.emit(types.EventRoundStarted, channelID, map[string]any{"round": round - 1})
	}

	if isFirstAggregation {
		go a.identifyGapsAndMaybeSubnet(context.Background(), channelID, cs, demand, proposal)
	}
}

// OnFeedback ingests feedback while the channel is NEGOTIATING; any other
// state rejects it.
func (a *ChannelAdministrator) OnFeedback(ctx context.Context, channelID, agentID string, fb types.Feedback) error {
	cs, ok := a.lookup(channelID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channelID)
	}

	cs.mu.Lock()
	if cs.c.Status != types.StatusNegotiating {
		cs.mu.Unlock()
		a.emit(types.EventProtocolViolation, channelID, map[string]any{"agent_id": agentID, "reason": "feedback outside NEGOTIATING"})
		return fmt.Errorf("%w: channel %q in state %s", ErrWrongState, channelID, cs.c.Status)
	}

	fp := fingerprint(channelID, fmt.Sprintf("%d", fb.Version), agentID)
	if cs.c.ProcessedFingerprints[fp] {
		cs.mu.Unlock()
		return nil
	}
	cs.c.ProcessedFingerprints[fp] = true
	cs.roundFeedback[agentID] = fb

	// Withdrawal of the sole holder of a role with no one else able to
	// absorb it fails the channel immediately, regardless of round math.
	if fb.Kind == types.FeedbackWithdraw && a.isCoreParticipant(cs, agentID) {
		cs.mu.Unlock()
		a.failChannel(channelID, types.ReasonCoreWithdrew)
		return nil
	}

	allFedBack := len(cs.roundFeedback) >= len(cs.c.Participating)
	cs.mu.Unlock()

	a.emit(types.EventFeedbackSubmitted, channelID, map[string]any{
		"version":  fb.Version,
		"agent_id": agentID,
		"kind":     fb.Kind,
	})

	if allFedBack {
		a.evaluateRound(ctx, channelID, cs, false)
	}
	return nil
}

// isCoreParticipant reports whether agentID is the sole assignee of any
// role in the current proposal. Must be called with cs.mu held.
func (a *ChannelAdministrator) isCoreParticipant(cs *channelState, agentID string) bool {
	if cs.c.CurrentProposal == nil {
		return false
	}
	roleHolders := make(map[string]int)
	agentRoles := make(map[string]bool)
	for _, asn := range cs.c.CurrentProposal.Assignments {
		roleHolders[asn.Role]++
		if asn.AgentID == agentID {
			agentRoles[asn.Role] = true
		}
	}
	for role := range agentRoles {
		if roleHolders[role] <= 1 {
			return true
		}
	}
	return false
}

func (a *ChannelAdministrator) onNegotiationDeadline(channelID string) {
	cs, ok := a.lookup(channelID)
	if !ok {
		return
	}
	cs.mu.Lock()
	if cs.c.Status != types.StatusNegotiating {
		cs.mu.Unlock()
		return
	}
	cs.mu.Unlock()
	a.evaluateRound(context.Background(), channelID, cs, true)
}

// evaluateRound applies the acceptance/withdrawal arithmetic from the
// specification's Negotiation algorithm. deadlineFired distinguishes "all
// participants responded early" from "the round's deadline fired with some
// silent participants", which only matters for the implicit-accept knob.
func (a *ChannelAdministrator) evaluateRound(ctx context.Context, channelID string, cs *channelState, deadlineFired bool) {
	cs.mu.Lock()
	if cs.c.Status != types.StatusNegotiating {
		cs.mu.Unlock()
		return
	}
	if cs.negotiateTimer != nil {
		cs.negotiateTimer.Stop()
	}

	participants := cs.c.Participating
	accept, withdraw := 0, 0
	for _, p := range participants {
		fb, responded := cs.roundFeedback[p]
		if !responded {
			if deadlineFired && a.cfg.ImplicitAcceptOnSilence {
				accept++
			}
			continue
		}
		switch fb.Kind {
		case types.FeedbackAccept:
			accept++
		case types.FeedbackWithdraw:
			withdraw++
		}
	}
	total := len(participants)
	var acceptRate, withdrawRate float64
	if total > 0 {
		acceptRate = float64(accept) / float64(total)
		withdrawRate = float64(withdraw) / float64(total)
	}
	round := cs.c.Round
	maxRounds := cs.maxRounds
	demand := cs.c.Demand
	proposal := *cs.c.CurrentProposal
	negotiateFeedback := make([]types.Feedback, 0, len(cs.roundFeedback))
	for _, fb := range cs.roundFeedback {
		if fb.Kind == types.FeedbackNegotiate || fb.Kind == types.FeedbackWithdraw {
			negotiateFeedback = append(negotiateFeedback, fb)
		}
	}
	cs.mu.Unlock()

	switch {
	case acceptRate >= a.cfg.AcceptThreshold || accept == total:
		a.finalizeChannel(channelID, cs)
	case withdrawRate > a.cfg.WithdrawThreshold:
		a.failChannel(channelID, types.ReasonMajorityRejected)
	case round >= maxRounds && acceptRate < 0.5:
		a.failChannel(channelID, types.ReasonMaxRoundsNoConsens)
	default:
		go a.adjustAndRedistribute(ctx, channelID, cs, demand, proposal, negotiateFeedback)
	}
}

// adjustAndRedistribute carries a NEGOTIATING channel through another round.
// There is no NEGOTIATING->PROPOSAL_SENT edge in the transition table: the
// specification's own algorithm re-enters COLLECTING->AGGREGATING before the
// next PROPOSAL_SENT, so this walks the channel through both states - the
// already-gathered round feedback is this round's "collection", and the
// oracle adjustment call is its "aggregation" - rather than jumping straight
// from NEGOTIATING to PROPOSAL_SENT.
func (a *ChannelAdministrator) adjustAndRedistribute(ctx context.Context, channelID string, cs *channelState, demand types.Demand, proposal types.Proposal, feedback []types.Feedback) {
	cs.mu.Lock()
	cs.c.Status = types.StatusCollecting
	cs.mu.Unlock()

	cs.mu.Lock()
	cs.c.Status = types.StatusAggregating
	cs.mu.Unlock()

	result, err := a.oracleSvc.AdjustProposal(ctx, proposal, feedback)
	if err != nil {
		a.log.Error().Str("channel_id", channelID).Err(err).Msg("adjust proposal failed unexpectedly")
		result = oracle.AdjustResult{Proposal: proposal}
	}

	cs.mu.Lock()
	cs.c.Round++
	adjusted := result.Proposal
	adjusted.ChannelID = channelID
	adjusted.Version = cs.c.Round
	cs.c.CurrentProposal = &adjusted
	cs.c.Participating = adjusted.ParticipantIDs()
	cs.c.Status = types.StatusProposalSent
	cs.roundFeedback = make(map[string]types.Feedback)
	round := cs.c.Round
	participants := cs.c.Participating
	cs.c.Status = types.StatusNegotiating
	cs.negotiateTimer = time.AfterFunc(a.cfg.NegotiationDeadline, func() { a.onNegotiationDeadline(channelID) })
	cs.mu.Unlock()

	a.emit(types.EventProposalDistrib, channelID, map[string]any{"version": adjusted.Version, "participants": participants})

	for _, p := range participants {
		if a.router == nil {
			continue
		}
		msg := agentrt.Message{
			SenderID:    registry.ChannelAdminRecipientID,
			RecipientID: registry.UserAgentID(p),
			Type:        MsgProposalReview,
			ChannelID:   channelID,
			Sequence:    strconv.Itoa(adjusted.Version),
			Payload:     ProposalReviewPayload{ChannelID: channelID, Proposal: adjusted},
		}
		if _, err := a.router.Send(ctx, msg); err != nil {
			a.log.Warn().Str("channel_id", channelID).Str("agent_id", p).Err(err).Msg("failed to redistribute adjusted proposal")
		}
	}

	a.emit(types.EventRoundStarted, channelID, map[string]any{"round": round - 1})
}

func (a *ChannelAdministrator) identifyGapsAndMaybeSubnet(ctx context.Context, channelID string, cs *channelState, demand types.Demand, proposal types.Proposal) {
	gaps, err := a.oracleSvc.IdentifyGaps(ctx, demand, proposal)
	if err != nil || len(gaps) == 0 {
		return
	}
	a.emit(types.EventGapIdentified, channelID, map[string]any{"gaps": gaps})

	cs.mu.Lock()
	depth := cs.c.Depth
	cs.mu.Unlock()

	selected, err := a.oracleSvc.JudgeRecursion(ctx, gaps, depth, a.cfg.NegotiationDeadline*time.Duration(a.cfg.MaxRounds))
	if err != nil {
		return
	}

	for _, gap := range selected {
		if depth >= a.cfg.MaxDepth {
			continue
		}
		cs.mu.Lock()
		if cs.pendingSubnets >= a.cfg.MaxSubnetsPerChannel {
			cs.mu.Unlock()
			continue
		}
		cs.pendingSubnets++
		parentDemandID := cs.c.Demand.ID.String()
		cs.mu.Unlock()

		if a.router == nil {
			continue
		}
		msg := agentrt.Message{
			SenderID:    registry.ChannelAdminRecipientID,
			RecipientID: registry.CoordinatorRecipientID,
			Type:        MsgSubnetDemand,
			ChannelID:   channelID,
			Sequence:    gap.ID,
			Payload: SubnetDemandPayload{
				ParentChannelID: channelID,
				ParentDemandID:  parentDemandID,
				Gap:             gap,
				Depth:           depth + 1,
			},
		}
		if _, err := a.router.Send(ctx, msg); err != nil {
			a.log.Warn().Str("channel_id", channelID).Err(err).Msg("failed to send subnet demand")
		}
	}
}

// OnSubChannelResult integrates the outcome of a recursive sub-negotiation
// into its parent channel. Called automatically when a sub-channel reaches
// a terminal state; also exposed publicly per the specification's operation
// list.
func (a *ChannelAdministrator) OnSubChannelResult(parentChannelID, subChannelID string, result *types.Proposal, failed bool) {
	parent, ok := a.lookup(parentChannelID)
	if !ok {
		return
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()

	rec, ok := parent.c.SubChannels[subChannelID]
	if !ok {
		return
	}
	if failed {
		rec.Status = types.StatusFailed
	} else {
		rec.Status = types.StatusFinalized
		rec.Result = result
		if parent.c.CurrentProposal != nil && result != nil {
			parent.c.CurrentProposal.Assignments = append(parent.c.CurrentProposal.Assignments, result.Assignments...)
		}
	}
}

func (a *ChannelAdministrator) finalizeChannel(channelID string, cs *channelState) {
	cs.mu.Lock()
	cs.c.Status = types.StatusFinalized
	proposal := cs.c.CurrentProposal
	parentID := cs.c.ParentChannelID
	cs.mu.Unlock()

	markdown := ""
	if proposal != nil {
		markdown = renderProposalMarkdown(*proposal)
	}
	a.emit(types.EventFinalized, channelID, map[string]any{
		"final_proposal": proposal,
		"markdown":       markdown,
	})

	if parentID != "" {
		a.OnSubChannelResult(parentID, channelID, proposal, false)
	}
}

func (a *ChannelAdministrator) failChannel(channelID string, reason types.FailureReason) {
	cs, ok := a.lookup(channelID)
	if !ok {
		return
	}
	cs.mu.Lock()
	if cs.c.Status.Terminal() {
		cs.mu.Unlock()
		return
	}
	cs.c.Status = types.StatusFailed
	cs.c.FailureReason = reason
	parentID := cs.c.ParentChannelID
	if cs.collectTimer != nil {
		cs.collectTimer.Stop()
	}
	if cs.negotiateTimer != nil {
		cs.negotiateTimer.Stop()
	}
	cs.mu.Unlock()

	a.emit(types.EventFailed, channelID, map[string]any{"reason": reason})

	if parentID != "" {
		a.OnSubChannelResult(parentID, channelID, nil, true)
	}
}

// Deliver implements agentrt.Recipient, dispatching inbound router messages
// by type.
func (a *ChannelAdministrator) Deliver(ctx context.Context, msg agentrt.Message) error {
	switch msg.Type {
	case MsgCreateChannel:
		payload, ok := msg.Payload.(CreateChannelPayload)
		if !ok {
			return fmt.Errorf("engine: channel administrator received malformed create_channel payload")
		}
		return a.StartManaging(ctx, payload)
	case MsgOfferSubmitted:
		offer, ok := msg.Payload.(types.Offer)
		if !ok {
			return fmt.Errorf("engine: channel administrator received malformed offer payload")
		}
		// offer.ResponderID, not msg.SenderID: the router's sender ID is the
		// prefixed recipient name (user_agent_<id>), but Channel.Invited,
		// Responded, and every proposal assignment key on the bare profile ID.
		return a.OnOffer(ctx, msg.ChannelID, offer.ResponderID, offer)
	case MsgFeedback:
		fb, ok := msg.Payload.(types.Feedback)
		if !ok {
			return fmt.Errorf("engine: channel administrator received malformed feedback payload")
		}
		return a.OnFeedback(ctx, msg.ChannelID, fb.AgentID, fb)
	default:
		return fmt.Errorf("engine: channel administrator cannot handle message type %q", msg.Type)
	}
}

var _ agentrt.Recipient = (*ChannelAdministrator)(nil)

// Snapshot returns a copy of a channel's state for read-only inspection
// (tests, the demo facade). The second return is false if no such channel
// exists.
func (a *ChannelAdministrator) Snapshot(channelID string) (types.Channel, bool) {
	cs, ok := a.lookup(channelID)
	if !ok {
		return types.Channel{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cp := cs.c
	cp.Invited = append([]string(nil), cs.c.Invited...)
	cp.Responded = append([]string(nil), cs.c.Responded...)
	cp.Participating = append([]string(nil), cs.c.Participating...)
	return cp, true
}

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/eventbus"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/registry"
	"negotiation-engine/pkg/core/types"
)

// CandidateDirectory lists every agent profile the Coordinator may filter a
// demand against. Kept distinct from registry.ProfileRepository, which
// resolves a single known user ID: the Coordinator needs the whole
// candidate pool, the Registry only ever needs one profile at a time.
type CandidateDirectory interface {
	ListProfiles(ctx context.Context) ([]types.AgentProfile, error)
}

// Coordinator turns a submitted Demand (or a Gap-derived sub-demand) into a
// managed Channel: it runs demand understanding and candidate filtering
// against the Oracle Adapter, then hands the result to the Channel
// Administrator. Grounded on the teacher's DebateManager, which plays the
// same "accept an external request, materialize the stateful thing that
// handles it" role for debates.
type Coordinator struct {
	cfg       Config
	oracleSvc oracle.Service
	bus       *eventbus.Bus
	router    *agentrt.Router
	directory CandidateDirectory
	log       zerolog.Logger

	streamLocks sync.Map // submitterID -> *sync.Mutex, serializes one submitter's demand stream
}

func NewCoordinator(cfg Config, oracleSvc oracle.Service, bus *eventbus.Bus, directory CandidateDirectory) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		oracleSvc: oracleSvc,
		bus:       bus,
		directory: directory,
		log:       log.With().Str("component", "coordinator").Logger(),
	}
}

func (c *Coordinator) SetRouter(router *agentrt.Router) {
	c.router = router
}

func (c *Coordinator) emit(eventType, demandID string, extra map[string]any) {
	if c.bus == nil {
		return
	}
	payload := map[string]any{"demand_id": demandID}
	for k, v := range extra {
		payload[k] = v
	}
	c.bus.Publish(types.NewEvent(eventType, registry.CoordinatorRecipientID, payload))
}

func (c *Coordinator) streamLock(submitterID string) *sync.Mutex {
	lockAny, _ := c.streamLocks.LoadOrStore(submitterID, &sync.Mutex{})
	return lockAny.(*sync.Mutex)
}

// SubmitDemand is the external entry point: a human's raw natural-language
// demand enters the system here. It returns the ID of the Channel now
// managing the negotiation. Two demands from the same submitter are
// processed strictly in submission order; demands from different
// submitters run fully concurrently.
func (c *Coordinator) SubmitDemand(ctx context.Context, submitterID, rawText string) (string, error) {
	lock := c.streamLock(submitterID)
	lock.Lock()
	defer lock.Unlock()

	demand := types.Demand{
		ID:          uuid.New(),
		SubmitterID: submitterID,
		RawText:     rawText,
		Depth:       0,
		Status:      types.DemandPending,
	}
	return c.runDemand(ctx, demand, "", nil, c.cfg.MaxRounds)
}

// onSubnetDemand handles a Gap-derived sub-demand forwarded by the Channel
// Administrator. It is not subject to the per-submitter ordering guarantee
// since it has no human submitter stream to serialize against.
func (c *Coordinator) onSubnetDemand(ctx context.Context, payload SubnetDemandPayload) (string, error) {
	parentDemandID, err := uuid.Parse(payload.ParentDemandID)
	if err != nil {
		return "", fmt.Errorf("engine: coordinator received malformed parent demand id: %w", err)
	}

	demand := types.Demand{
		ID:             uuid.New(),
		SubmitterID:    "system:gap_resolution",
		RawText:        payload.Gap.Description,
		Surface:        payload.Gap.Description,
		Deep:           payload.Gap.Description,
		CapabilityTags: []string{payload.Gap.Capability},
		ParentDemandID: &parentDemandID,
		Depth:          payload.Depth,
		Status:         types.DemandPending,
	}
	gap := payload.Gap
	return c.runDemand(ctx, demand, payload.ParentChannelID, &gap, c.cfg.MaxRounds)
}

// runDemand is the shared understand -> filter -> channel pipeline for both
// top-level demands and Gap-derived sub-demands.
func (c *Coordinator) runDemand(ctx context.Context, demand types.Demand, parentChannelID string, gap *types.Gap, maxRounds int) (string, error) {
	c.emit(types.EventDemandSubmitted, demand.ID.String(), map[string]any{"submitter_id": demand.SubmitterID, "raw_text": demand.RawText, "depth": demand.Depth})

	understood, err := c.oracleSvc.UnderstandDemand(ctx, demand.RawText)
	if err != nil {
		c.log.Warn().Str("demand_id", demand.ID.String()).Err(err).Msg("understand demand returned an error despite adapter fallback contract")
	}
	if demand.Surface == "" {
		demand.Surface = understood.Surface
	}
	if demand.Deep == "" {
		demand.Deep = understood.Deep
	}
	if len(demand.CapabilityTags) == 0 {
		demand.CapabilityTags = understood.Tags
	}
	demand.Status = types.DemandNegotiating
	c.emit(types.EventDemandUnderstood, demand.ID.String(), map[string]any{"surface": demand.Surface, "deep": demand.Deep, "tags": demand.CapabilityTags, "confidence": understood.Confidence})

	profiles, err := c.directory.ListProfiles(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: list candidate profiles: %w", err)
	}

	filtered, err := c.oracleSvc.FilterCandidates(ctx, demand, profiles)
	if err != nil {
		c.log.Warn().Str("demand_id", demand.ID.String()).Err(err).Msg("filter candidates returned an error despite adapter fallback contract")
	}

	inviteCap := c.cfg.FocusedFilterInviteeCap
	if demand.Depth == 0 {
		inviteCap = len(filtered)
	}
	invitees := make([]string, 0, len(filtered))
	for i, f := range filtered {
		if inviteCap > 0 && i >= inviteCap {
			break
		}
		invitees = append(invitees, f.AgentID)
	}
	c.emit(types.EventFilterCompleted, demand.ID.String(), map[string]any{"candidates": invitees, "candidate_count": len(invitees)})

	// A top-level demand with fewer than two candidates still gets a channel:
	// the Channel Administrator's own invitee check fails it uniformly
	// (negotiation.failed, carrying a channel ID) rather than the Coordinator
	// reporting a channel-less failure. A sub-demand only needs one candidate
	// to resolve its gap, so it fails here only when filtering comes up
	// completely empty, since there is no channel to attach the failure to.
	if demand.Depth > 0 && len(invitees) == 0 {
		if parentChannelID != "" {
			c.emit(types.EventSubnetFailed, demand.ID.String(), map[string]any{
				"parent_channel_id": parentChannelID,
				"gap":               gap,
			})
		}
		return "", fmt.Errorf("engine: subnet demand %s found no suitable candidate", demand.ID)
	}

	channelID := "collab-" + demand.ID.String()[:8]
	payload := CreateChannelPayload{
		ChannelID:       channelID,
		Demand:          demand,
		Invitees:        invitees,
		MaxRounds:       maxRounds,
		ParentChannelID: parentChannelID,
		Gap:             gap,
	}

	if c.router == nil {
		return "", ErrNoRouter
	}
	msg := agentrt.Message{
		SenderID:    registry.CoordinatorRecipientID,
		RecipientID: registry.ChannelAdminRecipientID,
		Type:        MsgCreateChannel,
		ChannelID:   channelID,
		Payload:     payload,
	}
	if _, err := c.router.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("engine: coordinator failed to create channel: %w", err)
	}
	return channelID, nil
}

// Deliver implements agentrt.Recipient for inbound subnet_demand messages
// from the Channel Administrator.
func (c *Coordinator) Deliver(ctx context.Context, msg agentrt.Message) error {
	switch msg.Type {
	case MsgSubnetDemand:
		payload, ok := msg.Payload.(SubnetDemandPayload)
		if !ok {
			return fmt.Errorf("engine: coordinator received malformed subnet_demand payload")
		}
		_, err := c.onSubnetDemand(ctx, payload)
		return err
	default:
		return fmt.Errorf("engine: coordinator cannot handle message type %q", msg.Type)
	}
}

var _ agentrt.Recipient = (*Coordinator)(nil)

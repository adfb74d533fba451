// Package engine assembles the Coordinator, Channel Administrator, Agent
// Router and Agent Registry into the negotiation platform's runtime and
// exposes the two operations an outside caller needs: submitting a demand
// and subscribing to the event stream it produces.
package engine

import (
	"context"
	"time"

	"negotiation-engine/pkg/core/agentrt"
	"negotiation-engine/pkg/core/eventbus"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/registry"
	"negotiation-engine/pkg/core/types"
)

// Engine is the process-wide negotiation runtime. Construct exactly one per
// process with New; the Coordinator/Channel Administrator/Router/Registry
// cycle is wired internally the same way the teacher's DebateManager wires
// its own singleton dependencies.
type Engine struct {
	cfg          Config
	bus          *eventbus.Bus
	oracleSvc    *oracle.Adapter
	router       *agentrt.Router
	registry     *registry.Registry
	coordinator  *Coordinator
	channelAdmin *ChannelAdministrator
}

// New builds a fully wired Engine. oracleBackend is the real or mock Oracle
// Service implementation; profiles resolves a single known user's profile
// for materialization; directory lists the whole candidate pool a demand is
// filtered against.
func New(cfg Config, oracleCfg oracle.Config, oracleBackend oracle.Service, profiles registry.ProfileRepository, directory CandidateDirectory) *Engine {
	bus := eventbus.New(1000)
	oracleSvc := oracle.NewAdapter(oracleBackend, oracleCfg, bus)

	channelAdmin := NewChannelAdministrator(cfg, oracleSvc, bus)
	coordinator := NewCoordinator(cfg, oracleSvc, bus, directory)

	e := &Engine{cfg: cfg, bus: bus, oracleSvc: oracleSvc, channelAdmin: channelAdmin, coordinator: coordinator}

	var router *agentrt.Router
	factory := func(profile types.AgentProfile) agentrt.Recipient {
		return NewUserAgent(profile, oracleSvc, router)
	}
	reg := registry.New(profiles, factory)
	reg.SetSingletons(coordinator, channelAdmin)
	router = agentrt.New(reg, 5*time.Second)

	e.registry = reg
	e.router = router
	coordinator.SetRouter(router)
	channelAdmin.SetRouter(router)

	return e
}

// SubmitDemand is the single external entry point for a human's raw demand.
// It returns the ID of the Channel now managing the negotiation.
func (e *Engine) SubmitDemand(ctx context.Context, submitterID, rawText string) (string, error) {
	return e.coordinator.SubmitDemand(ctx, submitterID, rawText)
}

// SubscribeEvents returns a live feed of events matching pattern (an exact
// event type, or a "prefix.*" wildcard).
func (e *Engine) SubscribeEvents(pattern string) *eventbus.Subscription {
	return e.bus.Subscribe(pattern)
}

// RecentEvents returns the Event Bus's bounded recent-event ring buffer.
func (e *Engine) RecentEvents() []types.Event {
	return e.bus.Recent()
}

// ChannelSnapshot exposes a read-only view of one channel's current state.
func (e *Engine) ChannelSnapshot(channelID string) (types.Channel, bool) {
	return e.channelAdmin.Snapshot(channelID)
}

// OracleStats reports the Oracle Adapter's per-operation counters.
func (e *Engine) OracleStats(operation string) oracle.Stats {
	return e.oracleSvc.StatsFor(operation)
}

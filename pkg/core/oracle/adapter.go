package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"negotiation-engine/pkg/core/eventbus"
	"negotiation-engine/pkg/core/types"
)

// Adapter wraps a backing Service with a bounded timeout, a per-operation
// circuit breaker, and a deterministic fallback ladder. It implements
// Service itself so engine code never has to distinguish "the real oracle"
// from "the adapter" - it always talks to an Adapter.
type Adapter struct {
	backing Service
	cfg     Config
	bus     *eventbus.Bus
	log     zerolog.Logger

	mu       sync.Mutex
	breakers map[operation]*circuitBreaker
	stats    map[operation]*statCounters
}

// NewAdapter builds an Adapter in front of backing, publishing circuit
// breaker transitions onto bus (bus may be nil for tests that don't care
// about events). Per-operation stats are not published as events; they are
// read through StatsFor.
func NewAdapter(backing Service, cfg Config, bus *eventbus.Bus) *Adapter {
	return &Adapter{
		backing:  backing,
		cfg:      cfg,
		bus:      bus,
		log:      log.With().Str("component", "oracle").Logger(),
		breakers: make(map[operation]*circuitBreaker),
		stats:    make(map[operation]*statCounters),
	}
}

func (a *Adapter) breakerFor(op operation) *circuitBreaker {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.breakers[op]
	if !ok {
		b = newCircuitBreaker(a.cfg.FailureThreshold, a.cfg.CooldownPeriod)
		a.breakers[op] = b
	}
	return b
}

func (a *Adapter) statsFor(op operation) *statCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.stats[op]
	if !ok {
		s = &statCounters{}
		a.stats[op] = s
	}
	return s
}

// StatsFor returns a snapshot of one operation's published counters.
func (a *Adapter) StatsFor(name string) Stats {
	return a.statsFor(operation(name)).snapshot()
}

func (a *Adapter) publishCircuitChange(op operation, from, to circuitState) {
	if a.bus == nil || from == to {
		return
	}
	a.bus.Publish(types.NewEvent(types.EventCircuitStateChanged, "oracle_adapter", map[string]any{
		"operation":  string(op),
		"from_state": from.String(),
		"to_state":   to.String(),
	}))
}

// call runs fn under op's breaker/timeout/fallback policy. fallback produces
// the operation's typed fallback value; the result carries fn's return value
// on success.
func call[T any](a *Adapter, ctx context.Context, op operation, fallback func() T, fn func(ctx context.Context) (T, error)) (T, error) {
	breaker := a.breakerFor(op)
	stats := a.statsFor(op)
	atomicInc(&stats.total)

	allowed, from, to := breaker.allow()
	a.publishCircuitChange(op, from, to)
	if !allowed {
		atomicInc(&stats.fallback)
		return fallback(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.timeoutFor(op))
	defer cancel()

	result, err := fn(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			atomicInc(&stats.timeout)
		} else {
			atomicInc(&stats.failure)
		}
		changed, from, to := breaker.recordFailure()
		if changed {
			a.publishCircuitChange(op, from, to)
		}
		atomicInc(&stats.fallback)
		a.log.Warn().Str("operation", string(op)).Err(err).Msg("oracle call failed, returning fallback")
		return fallback(), nil
	}

	changed, from, to := breaker.recordSuccess()
	if changed {
		a.publishCircuitChange(op, from, to)
	}
	atomicInc(&stats.success)
	return result, nil
}

func atomicInc(p *int64) {
	atomic.AddInt64(p, 1)
}

func (a *Adapter) UnderstandDemand(ctx context.Context, rawText string) (Understanding, error) {
	return call(a, ctx, opUnderstandDemand,
		func() Understanding { return fallbackUnderstanding(rawText) },
		func(ctx context.Context) (Understanding, error) { return a.backing.UnderstandDemand(ctx, rawText) },
	)
}

func (a *Adapter) FilterCandidates(ctx context.Context, demand types.Demand, profiles []types.AgentProfile) ([]FilterResult, error) {
	return call(a, ctx, opFilterCandidates,
		fallbackFilterCandidates,
		func(ctx context.Context) ([]FilterResult, error) {
			return a.backing.FilterCandidates(ctx, demand, profiles)
		},
	)
}

func (a *Adapter) GenerateOfferResponse(ctx context.Context, demand types.Demand, profile types.AgentProfile, filterReason string) (OfferFields, error) {
	return call(a, ctx, opGenerateOfferResponse,
		fallbackOfferResponse,
		func(ctx context.Context) (OfferFields, error) {
			return a.backing.GenerateOfferResponse(ctx, demand, profile, filterReason)
		},
	)
}

func (a *Adapter) AggregateOffers(ctx context.Context, demand types.Demand, offers []types.Offer) (types.Proposal, error) {
	return call(a, ctx, opAggregateOffers,
		func() types.Proposal { return fallbackAggregateOffers(demand.ID.String(), offers) },
		func(ctx context.Context) (types.Proposal, error) {
			return a.backing.AggregateOffers(ctx, demand, offers)
		},
	)
}

func (a *Adapter) AdjustProposal(ctx context.Context, current types.Proposal, feedback []types.Feedback) (AdjustResult, error) {
	return call(a, ctx, opAdjustProposal,
		func() AdjustResult { return fallbackAdjustProposal(current) },
		func(ctx context.Context) (AdjustResult, error) {
			return a.backing.AdjustProposal(ctx, current, feedback)
		},
	)
}

func (a *Adapter) IdentifyGaps(ctx context.Context, demand types.Demand, proposal types.Proposal) ([]types.Gap, error) {
	return call(a, ctx, opIdentifyGaps,
		fallbackIdentifyGaps,
		func(ctx context.Context) ([]types.Gap, error) { return a.backing.IdentifyGaps(ctx, demand, proposal) },
	)
}

func (a *Adapter) JudgeRecursion(ctx context.Context, gaps []types.Gap, depth int, timeRemaining time.Duration) ([]types.Gap, error) {
	return call(a, ctx, opJudgeRecursion,
		fallbackJudgeRecursion,
		func(ctx context.Context) ([]types.Gap, error) {
			return a.backing.JudgeRecursion(ctx, gaps, depth, timeRemaining)
		},
	)
}

var _ Service = (*Adapter)(nil)

// Package eventbus is the in-process publish/subscribe fabric every other
// core component emits onto. Subscriptions are by exact event type or by a
// "prefix.*" wildcard; the recorder keeps a bounded ring of recent events
// for replay alongside the live feed.
package eventbus

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"negotiation-engine/pkg/core/types"
)

const defaultSubscriberQueueSize = 256

// subscriber holds one consumer's delivery queue and its match pattern.
// An exact pattern has no trailing ".*"; a wildcard pattern matches any
// event type sharing its dotted prefix.
type subscriber struct {
	id       uint64
	pattern  string
	wildcard bool
	ch       chan types.Event
}

func (s *subscriber) matches(eventType string) bool {
	if !s.wildcard {
		return s.pattern == eventType
	}
	return strings.HasPrefix(eventType, s.pattern)
}

// Bus is the publish/subscribe fabric. The zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	nextID      uint64
	log         zerolog.Logger

	ring *ring
}

// New builds a Bus whose Recorder keeps up to ringSize recent events.
// ringSize <= 0 falls back to the spec default of 1000.
func New(ringSize int) *Bus {
	if ringSize <= 0 {
		ringSize = 1000
	}
	return &Bus{
		ring: newRing(ringSize),
		log:  log.With().Str("component", "eventbus").Logger(),
	}
}

// Subscription is returned to a caller so it can later Unsubscribe and drain
// the delivery channel.
type Subscription struct {
	id uint64
	C  <-chan types.Event
}

// Subscribe registers interest in an exact event type or, if pattern ends in
// ".*", in every event type sharing that dotted prefix.
func (b *Bus) Subscribe(pattern string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		pattern: strings.TrimSuffix(pattern, "*"),
		ch:      make(chan types.Event, defaultSubscriberQueueSize),
	}
	sub.wildcard = strings.HasSuffix(pattern, ".*") || pattern == "*"
	b.subscribers = append(b.subscribers, sub)

	return &Subscription{id: sub.id, C: sub.ch}
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s.id == sub.id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish resolves every matching subscriber and enqueues the event to each.
// A full subscriber queue drops the oldest queued event rather than blocking
// the publisher; the ring buffer copy is never dropped this way. Within a
// single SourceAgent, events reach every subscriber in publish order because
// Publish itself does not release its lock until all queues are updated.
func (b *Bus) Publish(evt types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring.push(evt)

	for _, sub := range b.subscribers {
		if !sub.matches(evt.EventType) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// queue full: drop oldest queued event, then enqueue this one
			select {
			case <-sub.ch:
				b.log.Debug().Str("event_type", evt.EventType).Msg("subscriber queue full, dropped oldest")
			default:
			}
			select {
			case sub.ch <- evt:
			default:
				b.log.Debug().Str("event_type", evt.EventType).Msg("subscriber queue full, event dropped")
			}
		}
	}
}

// Recent returns a snapshot of the ring buffer's current contents, oldest
// first.
func (b *Bus) Recent() []types.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ring.snapshot()
}

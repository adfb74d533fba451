// Package agentrt is the Agent Router: it delivers a typed message from one
// agent to a named recipient, deduplicating by a stable fingerprint so a
// redelivered message is a no-op. Recipient resolution goes through a
// Registry interface, kept separate so the Router never holds a
// back-reference into it.
package agentrt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Message is the envelope the Router delivers. Payload is left as `any`
// since each recipient kind (Coordinator, ChannelAdministrator, UserAgent)
// expects a different concrete type and performs its own assertion.
type Message struct {
	SenderID    string
	RecipientID string
	Type        string
	ChannelID   string // empty for messages not scoped to a channel
	Sequence    string // round/version/content discriminator, see fingerprint
	Payload     any
}

// Recipient is anything the Router can deliver a Message to.
type Recipient interface {
	Deliver(ctx context.Context, msg Message) error
}

// Registry resolves a recipient ID to a live Recipient, materializing user
// agents on demand. Implemented by pkg/core/registry.Registry.
type Registry interface {
	Resolve(recipientID string) (Recipient, error)
}

// DeliveryResult reports what the Router actually did with a message.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	Duplicate
)

const defaultDedupWindow = 5 * time.Second

// Router performs fingerprint-based at-most-once delivery and then invokes
// the resolved recipient synchronously, per channel serialization being the
// recipient's own responsibility (not the Router's).
type Router struct {
	registry Registry
	log      zerolog.Logger

	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// New builds a Router that resolves recipients through registry. window
// overrides the default 5s dedup window when > 0.
func New(registry Registry, window time.Duration) *Router {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &Router{
		registry: registry,
		log:      log.With().Str("component", "router").Logger(),
		seen:     make(map[string]time.Time),
		window:   window,
	}
}

// fingerprint is a stable hash of (recipient, type, channel, sender, sequence)
// - the spec's core at-most-once tuple plus the "monotonically increasing
// sequence or content hash" it explicitly permits appending, so that two
// rounds of the same message type between the same sender and recipient on
// the same channel (e.g. a re-distributed proposal_review) don't collide.
func fingerprint(msg Message) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", msg.RecipientID, msg.Type, msg.ChannelID, msg.SenderID, msg.Sequence)
	return hex.EncodeToString(h.Sum(nil))
}

// Send delivers msg to its recipient, returning Duplicate without invoking
// the recipient if an identical (recipient, type, channel, sender, sequence)
// tuple was seen within the dedup window.
func (r *Router) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	fp := fingerprint(msg)

	r.mu.Lock()
	r.evictExpiredLocked()
	if _, ok := r.seen[fp]; ok {
		r.mu.Unlock()
		r.log.Debug().Str("recipient", msg.RecipientID).Str("type", msg.Type).Msg("duplicate message dropped")
		return Duplicate, nil
	}
	r.seen[fp] = time.Now()
	r.mu.Unlock()

	recipient, err := r.registry.Resolve(msg.RecipientID)
	if err != nil {
		return Delivered, fmt.Errorf("agentrt: resolve recipient %q: %w", msg.RecipientID, err)
	}

	if err := recipient.Deliver(ctx, msg); err != nil {
		return Delivered, fmt.Errorf("agentrt: deliver to %q: %w", msg.RecipientID, err)
	}
	return Delivered, nil
}

// evictExpiredLocked drops fingerprints older than the dedup window. Must be
// called with r.mu held.
func (r *Router) evictExpiredLocked() {
	cutoff := time.Now().Add(-r.window)
	for fp, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, fp)
		}
	}
}

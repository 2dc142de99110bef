// Package notify broadcasts advisory "this event changed" signals to
// connected update-stream consumers. Delivery is at-most-once and never
// part of the consistency guarantee: a slow subscriber is dropped rather
// than blocking a mutation.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tovren/raidledger/pkg/logger"
	"github.com/tovren/raidledger/pkg/metrics"
)

// Change types published by the snapshot manager.
const (
	TypeSnapshotLocked   = "snapshot_locked"
	TypeSnapshotUnlocked = "snapshot_unlocked"
	TypeEntryEdited      = "entry_edited"
	TypeRewardChanged    = "reward_changed"
)

// Event is one change notification. ByUserID lets consumers ignore their
// own edits.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	ByUserID   string    `json:"by_user_id"`
	ByUserName string    `json:"by_user_name,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher is the side of the broker the snapshot manager depends on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// subscriber receives events for one event scope; empty scope means all.
type subscriber struct {
	scope string
	ch    chan Event
}

// Broker fans change notifications out to subscribers.
type Broker struct {
	mu         sync.RWMutex
	subs       map[*subscriber]struct{}
	bufferSize int
	logger     logger.Logger
}

// Option applies a configuration option to the Broker.
type Option func(*Broker)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBroker creates a broker with configuration options.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:       make(map[*subscriber]struct{}),
		bufferSize: 16,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Named("notify")
	}
	return b
}

// Publish delivers ev to every matching subscriber without blocking. Full
// subscriber buffers drop the event; the stream is advisory.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.scope != "" && sub.scope != ev.EventID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug(ctx, "dropping notification for slow subscriber",
				logger.String("type", ev.Type),
				logger.String("event", ev.EventID),
			)
		}
	}
	metrics.RecordNotificationPublished()
}

// Subscribe registers a consumer for one event scope (empty for all) and
// returns the receive channel plus a cancel function.
func (b *Broker) Subscribe(scope string) (<-chan Event, func()) {
	sub := &subscriber{
		scope: scope,
		ch:    make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	metrics.StreamClientConnected()

	cancel := func() {
		b.mu.Lock()
		_, ok := b.subs[sub]
		delete(b.subs, sub)
		b.mu.Unlock()
		if ok {
			metrics.StreamClientDisconnected()
		}
	}
	return sub.ch, cancel
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

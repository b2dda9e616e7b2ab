package broker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Broker fans state-change events out to all live subscribers. It owns the
// subscriber registry explicitly; whoever needs to publish or subscribe is
// handed a *Broker rather than reaching for package state.
//
// Each subscription has a bounded backlog. A subscriber that cannot drain
// its backlog is dropped (its channel closed) so that one slow observer
// never blocks publishing to the rest. There is no replay: a subscriber
// only sees events published after Subscribe returns, and must fetch a
// snapshot to cover what came before.
type Broker struct {
	mu      sync.Mutex
	subs    map[*Subscription]bool
	backlog int
	closed  bool
}

// Subscription is one observer's handle on the event stream
type Subscription struct {
	id string
	ch chan Event
}

// Events returns the subscriber's event channel. The channel is closed when
// the subscription is cancelled or dropped; a closed channel means the
// observer must re-run its full snapshot-plus-replay initialization.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// ID returns the subscription's identifier, for logging
func (s *Subscription) ID() string {
	return s.id
}

// DefaultBacklog is the per-subscriber channel capacity used by New
const DefaultBacklog = 256

// New creates a Broker with the given per-subscriber backlog.
// A backlog of zero or less falls back to DefaultBacklog.
func New(backlog int) *Broker {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Broker{
		subs:    make(map[*Subscription]bool),
		backlog: backlog,
	}
}

// Subscribe registers a new subscriber and returns its subscription
func (b *Broker) Subscribe() *Subscription {
	sub := &Subscription{
		id: uuid.New().String(),
		ch: make(chan Event, b.backlog),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = true

	log.Debug().
		Str("subscription_id", sub.id).
		Int("total_subscribers", len(b.subs)).
		Msg("subscriber registered")

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once and safe to call for a subscriber the broker already
// dropped.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

// Publish delivers the event to every live subscriber. Delivery is a
// non-blocking send per subscriber; a full backlog drops that subscriber
// without affecting the others. Publishes are serialized, so every
// subscriber observes events in one publish order.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			// Subscriber backlog is full; drop it rather than block.
			log.Warn().
				Str("subscription_id", sub.id).
				Str("event_type", string(event.Type)).
				Msg("subscriber backlog full, dropping subscriber")
			b.remove(sub)
		}
	}
}

// Close drops every subscriber and rejects future subscriptions
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sub := range b.subs {
		b.remove(sub)
	}
}

// SubscriberCount returns the number of live subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// remove must be called with b.mu held
func (b *Broker) remove(sub *Subscription) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)

	log.Debug().
		Str("subscription_id", sub.id).
		Int("total_subscribers", len(b.subs)).
		Msg("subscriber unregistered")
}

package events

import (
	"sync"
	"time"

	"github.com/modelarena/arena/internal/platform/id"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 64

// Broker fans events out to subscribers. Publishing is fire-and-forget:
// a subscriber whose buffer is full misses the event rather than blocking
// the publisher.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	buffer      int
	dropped     uint64
	clock       func() time.Time
}

// NewBroker creates a broker with the given per-subscriber buffer size.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broker{
		subscribers: make(map[string]chan Event),
		buffer:      buffer,
		clock:       time.Now,
	}
}

// Subscribe registers a new observer and returns its ID and event channel.
// The channel is closed on Unsubscribe.
func (b *Broker) Subscribe() (string, <-chan Event) {
	subscriberID, err := id.NewID()
	if err != nil {
		// id generation only fails when the entropy source does; fall back
		// to a time-derived key so observers can still attach.
		subscriberID = time.Now().UTC().Format("20060102150405.000000000")
	}

	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subscribers[subscriberID] = ch
	b.mu.Unlock()

	return subscriberID, ch
}

// Unsubscribe removes an observer and closes its channel.
func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	ch, ok := b.subscribers[subscriberID]
	if ok {
		delete(b.subscribers, subscriberID)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers an event to every subscriber without blocking. The
// event timestamp is stamped here when unset.
func (b *Broker) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.clock().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped++
		}
	}
}

// SubscriberCount returns the number of attached observers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Dropped returns the number of events discarded due to full buffers.
func (b *Broker) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

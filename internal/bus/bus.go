package bus

import (
	"strings"
	"sync"
	"time"
)

// Event kinds published by chirp components. Subscribers filter by prefix,
// so "rt." matches every inbound realtime frame and "message." every
// store-level message change.
const (
	KindStatusChanged  = "session.status_changed"
	KindAuthExpired    = "session.auth_expired"
	KindLoggedOut      = "session.logged_out"
	KindInboundMessage = "rt.private_message"
	KindPeerTyping     = "rt.typing"
	KindPeerStopTyping = "rt.stop_typing"
	KindPresence       = "rt.presence"
	KindMessageUpsert  = "message.upserted"
	KindSendAck        = "message.send_ack"
	KindSendFailed     = "message.send_failed"
	KindSendUncertain  = "message.send_uncertain"
	KindRosterUpdated  = "roster.updated"
	KindPeerSelected   = "roster.peer_selected"
)

// Event is a domain event carried on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Bus is an in-process publish/subscribe event bus with prefix filtering.
// Delivery is non-blocking: a subscriber that falls behind loses events
// rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
// A zero Timestamp is filled in with the current time.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
}

// Subscribe registers a prefix subscription with the given channel buffer.
// The returned cancel function is idempotent.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

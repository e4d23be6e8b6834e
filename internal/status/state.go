package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chirp-chat/chirp/internal/bus"
)

// State represents the realtime connection state.
type State string

const (
	// Disconnected is the rest state: no transport, no auto-reconnect
	// pending. Fresh start, logout, and auth rejection all land here.
	Disconnected State = "DISCONNECTED"
	// Connecting covers transport dial plus the authenticate handshake.
	Connecting State = "CONNECTING"
	// Authenticated means the server accepted the token; frames flow.
	Authenticated State = "AUTHENTICATED"
	// Reconnecting means the link dropped and backoff retries are running.
	Reconnecting State = "RECONNECTING"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected:  {Connecting},
	Connecting:    {Authenticated, Reconnecting, Disconnected},
	Authenticated: {Reconnecting, Disconnected},
	Reconnecting:  {Connecting, Disconnected},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Disconnected.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

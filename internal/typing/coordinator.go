package typing

import (
	"sync"
	"time"
)

// DefaultCooldown is how long after the last input event the typing
// indicator is withdrawn.
const DefaultCooldown = 3 * time.Second

// Emitter sends typing frames to the peer. Implemented by the realtime
// channel.
type Emitter interface {
	EmitTyping(receiverID string)
	EmitStopTyping(receiverID string)
}

// Coordinator debounces local input into at most one typing frame per
// idle→typing edge, plus a stop_typing when input goes quiet, a message is
// sent, or the conversation changes. One timer covers the single active
// conversation.
type Coordinator struct {
	emitter  Emitter
	cooldown time.Duration

	mu     sync.Mutex
	peerID string // active conversation, "" when none
	typing bool
	seq    int // invalidates timers from superseded input
	timer  *time.Timer
}

// NewCoordinator creates a coordinator. A zero cooldown means
// DefaultCooldown.
func NewCoordinator(emitter Emitter, cooldown time.Duration) *Coordinator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Coordinator{emitter: emitter, cooldown: cooldown}
}

// SetActivePeer switches the conversation the coordinator is scoped to.
// If the previous conversation was mid-typing, its indicator is withdrawn
// first so it cannot leak to the wrong peer.
func (c *Coordinator) SetActivePeer(peerID string) {
	c.mu.Lock()
	if peerID == c.peerID {
		c.mu.Unlock()
		return
	}
	prev := c.peerID
	wasTyping := c.typing
	c.stopLocked()
	c.peerID = peerID
	c.mu.Unlock()

	if wasTyping && prev != "" {
		c.emitter.EmitStopTyping(prev)
	}
}

// InputEvent records a local keystroke. The first event on an idle
// conversation emits a typing frame; every event pushes the cooldown out.
func (c *Coordinator) InputEvent() {
	c.mu.Lock()
	if c.peerID == "" {
		c.mu.Unlock()
		return
	}
	peer := c.peerID
	first := !c.typing
	c.typing = true
	c.seq++
	seq := c.seq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cooldown, func() { c.cooldownFired(seq) })
	c.mu.Unlock()

	if first {
		c.emitter.EmitTyping(peer)
	}
}

// MessageSent forces typing → idle for the active conversation, so the
// indicator never outlives the message it was hinting at.
func (c *Coordinator) MessageSent() {
	c.mu.Lock()
	peer := c.peerID
	wasTyping := c.typing
	c.stopLocked()
	c.mu.Unlock()

	if wasTyping && peer != "" {
		c.emitter.EmitStopTyping(peer)
	}
}

// Reset drops all typing state without emitting anything. Used on logout,
// when the link is going away regardless.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.stopLocked()
	c.peerID = ""
	c.mu.Unlock()
}

func (c *Coordinator) cooldownFired(seq int) {
	c.mu.Lock()
	if seq != c.seq || !c.typing {
		c.mu.Unlock()
		return
	}
	peer := c.peerID
	c.typing = false
	c.timer = nil
	c.mu.Unlock()

	c.emitter.EmitStopTyping(peer)
}

// stopLocked cancels the timer and clears typing state. Call with c.mu held.
func (c *Coordinator) stopLocked() {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.typing = false
}

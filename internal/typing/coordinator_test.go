package typing

import (
	"sync"
	"testing"
	"time"
)

type frame struct {
	event  string
	peerID string
}

type fakeEmitter struct {
	mu     sync.Mutex
	frames []frame
}

func (f *fakeEmitter) EmitTyping(receiverID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{"typing", receiverID})
}

func (f *fakeEmitter) EmitStopTyping(receiverID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{"stop_typing", receiverID})
}

func (f *fakeEmitter) sent() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.frames...)
}

const testCooldown = 30 * time.Millisecond

func TestFirstInputEmitsTypingOnce(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)
	c.SetActivePeer("f1")

	c.InputEvent()
	c.InputEvent()
	c.InputEvent()

	got := e.sent()
	if len(got) != 1 || got[0] != (frame{"typing", "f1"}) {
		t.Errorf("frames = %v, want single typing for f1", got)
	}
}

func TestCooldownEmitsStopTyping(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)
	c.SetActivePeer("f1")

	c.InputEvent()
	time.Sleep(3 * testCooldown)

	got := e.sent()
	if len(got) != 2 || got[1] != (frame{"stop_typing", "f1"}) {
		t.Errorf("frames = %v, want typing then stop_typing", got)
	}
}

func TestInputResetsCooldown(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, 4*testCooldown)
	c.SetActivePeer("f1")

	// Keep typing faster than the cooldown; no stop_typing may fire.
	for i := 0; i < 5; i++ {
		c.InputEvent()
		time.Sleep(testCooldown)
	}

	got := e.sent()
	if len(got) != 1 {
		t.Errorf("frames = %v, want only the initial typing", got)
	}
}

func TestNextEdgeEmitsTypingAgain(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)
	c.SetActivePeer("f1")

	c.InputEvent()
	time.Sleep(3 * testCooldown)
	c.InputEvent()

	got := e.sent()
	if len(got) != 3 || got[2] != (frame{"typing", "f1"}) {
		t.Errorf("frames = %v, want typing, stop_typing, typing", got)
	}
}

func TestMessageSentForcesIdle(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, time.Hour)
	c.SetActivePeer("f1")

	c.InputEvent()
	c.MessageSent()

	got := e.sent()
	if len(got) != 2 || got[1] != (frame{"stop_typing", "f1"}) {
		t.Errorf("frames = %v, want typing then immediate stop_typing", got)
	}

	// Idle now; a second send must not emit another stop_typing.
	c.MessageSent()
	if got := e.sent(); len(got) != 2 {
		t.Errorf("frames = %v, stop_typing emitted while idle", got)
	}

	// The canceled timer must not fire later.
	time.Sleep(3 * testCooldown)
	if got := e.sent(); len(got) != 2 {
		t.Errorf("frames = %v, canceled cooldown still fired", got)
	}
}

func TestSwitchPeerWithdrawsIndicator(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, time.Hour)
	c.SetActivePeer("f1")

	c.InputEvent()
	c.SetActivePeer("f2")

	got := e.sent()
	if len(got) != 2 || got[1] != (frame{"stop_typing", "f1"}) {
		t.Errorf("frames = %v, want stop_typing for abandoned peer", got)
	}

	// Typing in the new conversation is a fresh edge.
	c.InputEvent()
	got = e.sent()
	if len(got) != 3 || got[2] != (frame{"typing", "f2"}) {
		t.Errorf("frames = %v, want typing for f2", got)
	}
}

func TestSwitchPeerWhileIdleEmitsNothing(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)
	c.SetActivePeer("f1")
	c.SetActivePeer("f2")

	if got := e.sent(); len(got) != 0 {
		t.Errorf("frames = %v, want none", got)
	}
}

func TestInputWithoutPeerIgnored(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)

	c.InputEvent()
	c.MessageSent()

	if got := e.sent(); len(got) != 0 {
		t.Errorf("frames = %v, want none", got)
	}
}

func TestResetEmitsNothing(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCoordinator(e, testCooldown)
	c.SetActivePeer("f1")
	c.InputEvent()

	c.Reset()
	time.Sleep(3 * testCooldown)

	got := e.sent()
	if len(got) != 1 {
		t.Errorf("frames = %v, want only the initial typing", got)
	}
}

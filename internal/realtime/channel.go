package realtime

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/status"
)

var (
	// ErrNotAuthenticated is returned for sends attempted before the
	// handshake completed. Callers keep the message queued and retry.
	ErrNotAuthenticated = errors.New("realtime: not authenticated")
	// ErrAckTimeout means the server never acked within the window. The
	// message may or may not have been delivered.
	ErrAckTimeout = errors.New("realtime: ack timeout")
	// ErrNoToken means there are no stored credentials to authenticate with.
	ErrNoToken = errors.New("realtime: no stored token")
)

const (
	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
	ackTimeout    = 10 * time.Second

	// Parked frames older than this are useless: a typing hint from before
	// a reconnect refers to input the peer has long stopped seeing.
	parkTTL   = 5 * time.Second
	maxParked = 32
)

// CredentialSource supplies the current token and user id. Both return ""
// when the session has been cleared.
type CredentialSource interface {
	Token() string
	UserID() string
}

type parkedFrame struct {
	event    string
	payload  any
	deadline time.Time
}

// Channel owns the realtime link: it dials the transport, runs the
// authenticate handshake, fans inbound frames out on the bus, and
// reconnects with capped exponential backoff when the link drops.
//
// State lives in the status.Machine; the Channel is the only writer.
type Channel struct {
	url       string
	creds     CredentialSource
	transport Transport
	machine   *status.Machine
	bus       *bus.Bus
	log       *zap.Logger

	// baseDelay overrides the first backoff step; zero means reconnectBase.
	baseDelay time.Duration

	mu         sync.Mutex
	conn       Conn
	gen        int
	closed     bool
	attempt    int
	parked     []parkedFrame
	retryTimer *time.Timer
}

// NewChannel creates a channel. Connect must be called to bring the link up.
func NewChannel(url string, creds CredentialSource, transport Transport, machine *status.Machine, b *bus.Bus, log *zap.Logger) *Channel {
	return &Channel{
		url:       url,
		creds:     creds,
		transport: transport,
		machine:   machine,
		bus:       b,
		log:       log,
	}
}

// Connect brings the link up. It returns once dialing has started; the
// handshake completes asynchronously and is observable via status events.
// Calling Connect after Close revives the channel, which is how a fresh
// login after a logout gets back online.
func (c *Channel) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds.Token() == "" {
		return ErrNoToken
	}
	c.closed = false
	if err := c.machine.Transition(status.Connecting); err != nil {
		return err
	}
	c.dialLocked()
	return nil
}

// Ready reports whether the link is authenticated and frames can flow.
func (c *Channel) Ready() bool {
	return c.machine.Current() == status.Authenticated
}

// SendMessage delivers one private message and waits for the server ack.
func (c *Channel) SendMessage(receiverID, content, msgType string) error {
	c.mu.Lock()
	conn := c.conn
	ready := c.machine.Current() == status.Authenticated
	c.mu.Unlock()

	if !ready || conn == nil {
		return ErrNotAuthenticated
	}
	payload := map[string]any{
		"receiverId": receiverID,
		"content":    content,
		"type":       msgType,
	}
	result, err := conn.EmitWithAck("private_message", payload, ackTimeout)
	if err != nil {
		return err
	}
	if msg := str(result, "error"); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// EmitTyping sends a typing hint for the given peer. Hints attempted while
// the link is down are parked and replayed once after the next successful
// handshake, unless they have gone stale by then.
func (c *Channel) EmitTyping(receiverID string) {
	c.emitOrPark("typing", map[string]any{"receiverId": receiverID})
}

// EmitStopTyping sends a stop_typing hint for the given peer.
func (c *Channel) EmitStopTyping(receiverID string) {
	c.emitOrPark("stop_typing", map[string]any{"receiverId": receiverID})
}

func (c *Channel) emitOrPark(event string, payload any) {
	c.mu.Lock()
	conn := c.conn
	ready := c.machine.Current() == status.Authenticated
	if !ready || conn == nil {
		if c.closed {
			c.mu.Unlock()
			return
		}
		if len(c.parked) >= maxParked {
			c.parked = c.parked[1:]
		}
		c.parked = append(c.parked, parkedFrame{
			event:    event,
			payload:  payload,
			deadline: time.Now().Add(parkTTL),
		})
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := conn.Emit(event, payload); err != nil {
		c.log.Warn("emit failed", zap.String("event", event), zap.Error(err))
	}
}

// Close tears the link down and suppresses reconnection. Used for both
// logout and shutdown; per-conversation state cleanup belongs to the
// components that own it.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.parked = nil
	if c.machine.Current() != status.Disconnected {
		_ = c.machine.Transition(status.Disconnected)
	}
}

// dialLocked opens a fresh connection. Call with c.mu held and the machine
// in Connecting.
func (c *Channel) dialLocked() {
	c.gen++
	gen := c.gen

	conn, err := c.transport.Dial(c.url)
	if err != nil {
		c.log.Warn("dial failed", zap.Error(err))
		c.dropLocked()
		return
	}
	c.conn = conn
	c.registerHandlers(conn, gen)
}

func (c *Channel) registerHandlers(conn Conn, gen int) {
	conn.On("connect", func(args ...any) {
		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		token := c.creds.Token()
		c.mu.Unlock()
		if token == "" {
			return
		}
		if err := conn.Emit("authenticate", token); err != nil {
			c.log.Warn("authenticate emit failed", zap.Error(err))
		}
	})

	conn.On("authenticated", func(args ...any) {
		c.onAuthenticated(gen)
	})

	conn.On("auth_error", func(args ...any) {
		c.onAuthError(gen, args)
	})

	conn.On("disconnect", func(args ...any) {
		c.onDrop(gen, reasonOf(args))
	})
	conn.On("connect_error", func(args ...any) {
		c.onDrop(gen, reasonOf(args))
	})

	conn.On("private_message", func(args ...any) {
		msg := parseMessage(asMap(args), c.creds.UserID())
		if msg == nil {
			c.log.Warn("unparseable private_message frame")
			return
		}
		c.bus.Publish(bus.Event{Kind: bus.KindInboundMessage, Payload: msg})
	})

	conn.On("typing", func(args ...any) {
		m := asMap(args)
		c.bus.Publish(bus.Event{Kind: bus.KindPeerTyping, Payload: TypingEvent{SenderID: str(m, "senderId")}})
	})

	conn.On("stop_typing", func(args ...any) {
		m := asMap(args)
		c.bus.Publish(bus.Event{Kind: bus.KindPeerStopTyping, Payload: TypingEvent{SenderID: str(m, "senderId")}})
	})

	conn.On("presence", func(args ...any) {
		m := asMap(args)
		c.bus.Publish(bus.Event{Kind: bus.KindPresence, Payload: PresenceUpdate{
			UserID: str(m, "userId"),
			Status: str(m, "status"),
		}})
	})
}

func (c *Channel) onAuthenticated(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err := c.machine.Transition(status.Authenticated); err != nil {
		c.mu.Unlock()
		return
	}
	c.attempt = 0
	parked := c.parked
	c.parked = nil
	conn := c.conn
	c.mu.Unlock()

	c.log.Info("realtime authenticated")
	now := time.Now()
	for _, f := range parked {
		if now.After(f.deadline) {
			c.log.Warn("dropping stale parked frame", zap.String("event", f.event))
			continue
		}
		if err := conn.Emit(f.event, f.payload); err != nil {
			c.log.Warn("parked emit failed", zap.String("event", f.event), zap.Error(err))
		}
	}
}

// onAuthError handles token rejection. The link goes down for good: a token
// the server refused once will be refused again, so the user has to log in
// again instead of burning reconnect attempts.
func (c *Channel) onAuthError(gen int, args []any) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.machine.Current() != status.Disconnected {
		_ = c.machine.Transition(status.Disconnected)
	}
	c.mu.Unlock()

	reason := reasonOf(args)
	c.log.Warn("authentication rejected", zap.String("reason", reason))
	c.bus.Publish(bus.Event{Kind: bus.KindAuthExpired, Payload: reason})
}

func (c *Channel) onDrop(gen int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.log.Warn("realtime link dropped", zap.String("reason", reason))
	c.dropLocked()
}

// dropLocked closes the current connection and schedules a backoff retry.
// Call with c.mu held.
func (c *Channel) dropLocked() {
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	switch c.machine.Current() {
	case status.Connecting, status.Authenticated:
		_ = c.machine.Transition(status.Reconnecting)
	case status.Reconnecting:
	default:
		return
	}

	delay := backoff(c.baseDelay, c.attempt)
	c.attempt++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(delay, c.retry)
}

func (c *Channel) retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.machine.Current() != status.Reconnecting {
		return
	}
	// A cleared session means the user logged out mid-backoff; stop.
	if c.creds.Token() == "" {
		c.log.Info("credentials cleared, stopping reconnect")
		_ = c.machine.Transition(status.Disconnected)
		return
	}
	if err := c.machine.Transition(status.Connecting); err != nil {
		return
	}
	c.dialLocked()
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = reconnectBase
	}
	if attempt > 10 {
		attempt = 10
	}
	d := base << uint(attempt)
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

func reasonOf(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case error:
		return v.Error()
	case map[string]any:
		return str(v, "message")
	}
	return ""
}

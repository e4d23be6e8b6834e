package realtime

import (
	"fmt"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Conn is one live realtime connection. Handlers must be registered before
// frames start flowing; the socket.io client queues events internally, so
// registering right after dial is safe.
type Conn interface {
	On(event string, handler func(args ...any))
	Emit(event string, payload any) error
	EmitWithAck(event string, payload any, timeout time.Duration) (map[string]any, error)
	Connected() bool
	Close() error
}

// Transport dials realtime connections. Each Dial returns a fresh
// connection; reconnection is the caller's job, not the transport's.
type Transport interface {
	Dial(serverURL string) (Conn, error)
}

// SocketIO is the production Transport backed by the socket.io client.
type SocketIO struct{}

// Dial opens a socket.io connection to the server.
func (SocketIO) Dial(serverURL string) (Conn, error) {
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))

	sock, err := socket.Connect(serverURL, opts)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return &socketConn{sock: sock}, nil
}

type socketConn struct {
	sock *socket.Socket
}

func (c *socketConn) On(event string, handler func(args ...any)) {
	c.sock.On(types.EventName(event), handler)
}

func (c *socketConn) Emit(event string, payload any) error {
	if payload == nil {
		return c.sock.Emit(event)
	}
	return c.sock.Emit(event, payload)
}

func (c *socketConn) EmitWithAck(event string, payload any, timeout time.Duration) (map[string]any, error) {
	resultCh := make(chan map[string]any, 1)
	errCh := make(chan error, 1)

	err := c.sock.Emit(event, payload, func(args []any, err error) {
		if err != nil {
			errCh <- err
			return
		}
		if len(args) > 0 {
			if m, ok := args[0].(map[string]any); ok {
				resultCh <- m
				return
			}
		}
		resultCh <- nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, ErrAckTimeout
	}
}

func (c *socketConn) Connected() bool {
	return c.sock.Connected()
}

func (c *socketConn) Close() error {
	c.sock.Disconnect()
	return nil
}

package presence

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/store"
)

// Tracker applies push-delivered presence to the roster. Presence is never
// polled and never inferred: a link drop leaves the last known state in
// place, stale presence being preferable to flapping everyone offline on
// every reconnect.
type Tracker struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	mu     sync.RWMutex
	status map[string]string
}

// NewTracker creates a presence tracker.
func NewTracker(db *store.DB, b *bus.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{db: db, bus: b, logger: logger, status: make(map[string]string)}
}

// Start subscribes to inbound presence events.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	ch, unsub := t.bus.Subscribe(bus.KindPresence, 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				update, ok := evt.Payload.(realtime.PresenceUpdate)
				if !ok {
					continue
				}
				t.apply(update)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the tracker.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

// StatusOf returns the last pushed status for a user, "offline" when the
// user was never seen.
func (t *Tracker) StatusOf(userID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.status[userID]; ok {
		return s
	}
	return "offline"
}

// Snapshot returns a copy of the full presence map.
func (t *Tracker) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.status)
}

func (t *Tracker) apply(update realtime.PresenceUpdate) {
	if update.UserID == "" {
		return
	}
	status := update.Status
	if status != "online" {
		status = "offline"
	}
	t.mu.Lock()
	t.status[update.UserID] = status
	t.mu.Unlock()
	if err := t.db.SetPresence(update.UserID, status); err != nil {
		t.logger.Error("failed to record presence", zap.Error(err), zap.String("user_id", update.UserID))
		return
	}
	t.bus.Publish(bus.Event{
		Kind:    bus.KindRosterUpdated,
		Payload: map[string]string{"friend_id": update.UserID, "presence": status},
	})
}

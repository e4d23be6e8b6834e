package roster

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/store"
)

// Directory is the server-side friend API. Implemented by the api client.
type Directory interface {
	Friends(ctx context.Context) ([]api.Friend, error)
	SearchUser(ctx context.Context, userID string) (*api.Friend, error)
	AddFriend(ctx context.Context, friendID string) error
}

// Manager owns the friend list and the currently selected conversation
// partner. The roster itself is server-backed: Refresh pulls it over REST
// into the store, presence lands on it separately via push.
type Manager struct {
	db        *store.DB
	directory Directory
	bus       *bus.Bus
	logger    *zap.Logger

	mu       sync.RWMutex
	selected string
}

// NewManager creates a roster manager.
func NewManager(db *store.DB, directory Directory, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		db:        db,
		directory: directory,
		bus:       b,
		logger:    logger,
	}
}

// Refresh pulls the friend list from the server into the store.
func (m *Manager) Refresh(ctx context.Context) error {
	friends, err := m.directory.Friends(ctx)
	if err != nil {
		return fmt.Errorf("fetch friends: %w", err)
	}

	rows := make([]store.Friend, 0, len(friends))
	for _, f := range friends {
		rows = append(rows, store.Friend{ID: f.ID, UserID: f.UserID, Username: f.Username})
	}
	if err := m.db.BulkUpsertFriends(rows); err != nil {
		return fmt.Errorf("store friends: %w", err)
	}

	m.logger.Info("roster refreshed", zap.Int("friends", len(rows)))
	m.bus.Publish(bus.Event{Kind: bus.KindRosterUpdated})
	return nil
}

// List returns the stored roster with last known presence.
func (m *Manager) List() ([]store.Friend, error) {
	return m.db.ListFriends()
}

// Select makes the given friend the active conversation partner and
// announces the switch. Selecting an unknown id is an error; selecting the
// current peer again is a no-op.
func (m *Manager) Select(peerID string) error {
	friend, err := m.db.GetFriend(peerID)
	if err != nil {
		return err
	}
	if friend == nil {
		return fmt.Errorf("unknown friend %q", peerID)
	}

	m.mu.Lock()
	if m.selected == peerID {
		m.mu.Unlock()
		return nil
	}
	m.selected = peerID
	m.mu.Unlock()

	m.bus.Publish(bus.Event{Kind: bus.KindPeerSelected, Payload: friend})
	return nil
}

// Selected returns the active peer id, or "" when no conversation is open.
func (m *Manager) Selected() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// ClearSelection drops the active conversation, e.g. on logout.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	m.selected = ""
	m.mu.Unlock()
}

// Search looks a user up by their public display id.
func (m *Manager) Search(ctx context.Context, displayID string) (*api.Friend, error) {
	return m.directory.SearchUser(ctx, displayID)
}

// AddFriend adds a user to the friend list and refreshes the roster.
func (m *Manager) AddFriend(ctx context.Context, friendID string) error {
	if err := m.directory.AddFriend(ctx, friendID); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

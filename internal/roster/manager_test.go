package roster

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/store"
)

type fakeDirectory struct {
	friends    []api.Friend
	friendsErr error
	added      []string
	addErr     error
	searchHit  *api.Friend
}

func (f *fakeDirectory) Friends(ctx context.Context) ([]api.Friend, error) {
	return f.friends, f.friendsErr
}

func (f *fakeDirectory) SearchUser(ctx context.Context, userID string) (*api.Friend, error) {
	if f.searchHit == nil {
		return nil, &api.Error{Kind: api.KindNotFound, Message: "User not found"}
	}
	return f.searchHit, nil
}

func (f *fakeDirectory) AddFriend(ctx context.Context, friendID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, friendID)
	return nil
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRefreshStoresRoster(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	dir := &fakeDirectory{friends: []api.Friend{
		{ID: "f1", UserID: "U100", Username: "bob"},
		{ID: "f2", UserID: "U200", Username: "carol"},
	}}
	m := NewManager(db, dir, b, zap.NewNop())

	updates, unsub := b.Subscribe(bus.KindRosterUpdated, 10)
	defer unsub()

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no roster update event")
	}

	friends, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 2 {
		t.Fatalf("got %d friends, want 2", len(friends))
	}
	if friends[0].Username != "bob" || friends[1].Username != "carol" {
		t.Errorf("friends = %+v", friends)
	}
}

func TestRefreshError(t *testing.T) {
	db := testDB(t)
	dir := &fakeDirectory{friendsErr: errors.New("boom")}
	m := NewManager(db, dir, bus.New(), zap.NewNop())

	if err := m.Refresh(context.Background()); err == nil {
		t.Error("Refresh() error = nil, want error")
	}
}

func TestSelectPublishesPeer(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	m := NewManager(db, &fakeDirectory{}, b, zap.NewNop())

	if err := db.UpsertFriend(&store.Friend{ID: "f1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}

	selections, unsub := b.Subscribe(bus.KindPeerSelected, 10)
	defer unsub()

	if err := m.Select("f1"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if m.Selected() != "f1" {
		t.Errorf("Selected() = %q, want f1", m.Selected())
	}

	select {
	case evt := <-selections:
		friend := evt.Payload.(*store.Friend)
		if friend.ID != "f1" || friend.Username != "bob" {
			t.Errorf("payload = %+v", friend)
		}
	case <-time.After(time.Second):
		t.Fatal("no peer selected event")
	}

	// Reselecting the same peer is a no-op.
	if err := m.Select("f1"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-selections:
		t.Error("reselect published a second event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSelectUnknownFriend(t *testing.T) {
	db := testDB(t)
	m := NewManager(db, &fakeDirectory{}, bus.New(), zap.NewNop())

	if err := m.Select("ghost"); err == nil {
		t.Error("Select() error = nil, want error")
	}
	if m.Selected() != "" {
		t.Errorf("Selected() = %q, want empty", m.Selected())
	}
}

func TestClearSelection(t *testing.T) {
	db := testDB(t)
	m := NewManager(db, &fakeDirectory{}, bus.New(), zap.NewNop())
	if err := db.UpsertFriend(&store.Friend{ID: "f1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Select("f1"); err != nil {
		t.Fatal(err)
	}

	m.ClearSelection()
	if m.Selected() != "" {
		t.Errorf("Selected() = %q after clear", m.Selected())
	}
}

func TestAddFriendRefreshesRoster(t *testing.T) {
	db := testDB(t)
	dir := &fakeDirectory{friends: []api.Friend{{ID: "f9", UserID: "U900", Username: "dave"}}}
	m := NewManager(db, dir, bus.New(), zap.NewNop())

	if err := m.AddFriend(context.Background(), "f9"); err != nil {
		t.Fatalf("AddFriend() error = %v", err)
	}
	if len(dir.added) != 1 || dir.added[0] != "f9" {
		t.Errorf("added = %v", dir.added)
	}

	friends, _ := m.List()
	if len(friends) != 1 || friends[0].ID != "f9" {
		t.Errorf("friends = %+v", friends)
	}
}

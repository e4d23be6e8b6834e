package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestFriendUpsertAndList(t *testing.T) {
	db := testDB(t)

	f := &Friend{ID: "f1", UserID: "U100", Username: "bob"}
	if err := db.UpsertFriend(f); err != nil {
		t.Fatal(err)
	}

	f.Username = "bobby"
	if err := db.UpsertFriend(f); err != nil {
		t.Fatal(err)
	}

	friends, err := db.ListFriends()
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 {
		t.Fatalf("got %d friends, want 1", len(friends))
	}
	if friends[0].Username != "bobby" {
		t.Errorf("username = %q, want bobby", friends[0].Username)
	}
	if friends[0].Presence != "offline" {
		t.Errorf("presence = %q, want offline", friends[0].Presence)
	}
}

func TestRosterRefreshKeepsPresence(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertFriend(&Friend{ID: "f1", UserID: "U100", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetPresence("f1", "online"); err != nil {
		t.Fatal(err)
	}

	// A roster refresh from the server carries no presence.
	if err := db.BulkUpsertFriends([]Friend{
		{ID: "f1", UserID: "U100", Username: "bob"},
		{ID: "f2", UserID: "U200", Username: "carol"},
	}); err != nil {
		t.Fatal(err)
	}

	f, err := db.GetFriend("f1")
	if err != nil {
		t.Fatal(err)
	}
	if f.Presence != "online" {
		t.Errorf("presence after refresh = %q, want online", f.Presence)
	}
	f2, err := db.GetFriend("f2")
	if err != nil {
		t.Fatal(err)
	}
	if f2.Presence != "offline" {
		t.Errorf("new friend presence = %q, want offline", f2.Presence)
	}
}

func TestSetPresenceUnknownFriend(t *testing.T) {
	db := testDB(t)
	// No row, no error.
	if err := db.SetPresence("ghost", "online"); err != nil {
		t.Errorf("SetPresence() error = %v", err)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{PeerID: "f1", MsgID: "m1", SenderID: "f1", SenderName: "bob", Content: "hi", MsgType: "text", DeliveryState: DeliveryReceived, Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	// Redelivery of the same frame.
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	count, err := db.MessageCount("f1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestListMessagesArrivalOrder(t *testing.T) {
	db := testDB(t)

	// Insert out of timestamp order; arrival order must win.
	msgs := []Message{
		{PeerID: "f1", MsgID: "m1", Content: "first", Timestamp: 3000, DeliveryState: DeliveryReceived},
		{PeerID: "f1", MsgID: "m2", Content: "second", Timestamp: 1000, DeliveryState: DeliveryReceived},
		{PeerID: "f1", MsgID: "m3", Content: "third", Timestamp: 2000, DeliveryState: DeliveryReceived},
	}
	for i := range msgs {
		if err := db.UpsertMessage(&msgs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListMessages("f1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Content != want {
			t.Errorf("got[%d].Content = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := db.UpsertMessage(&Message{PeerID: "f1", MsgID: id, Content: id, DeliveryState: DeliveryReceived}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListMessages("f1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Content != "m2" || got[1].Content != "m3" {
		t.Errorf("got %q, %q; want m2, m3", got[0].Content, got[1].Content)
	}
}

func TestBulkUpsertKeepsDeliveryState(t *testing.T) {
	db := testDB(t)

	// An optimistic local echo already marked sent.
	if err := db.UpsertMessage(&Message{PeerID: "f1", MsgID: "c1", Content: "hi", FromMe: true, DeliveryState: DeliverySent}); err != nil {
		t.Fatal(err)
	}

	// History batch includes the same message.
	if err := db.BulkUpsertMessages([]Message{
		{PeerID: "f1", MsgID: "c1", Content: "hi", FromMe: true, DeliveryState: DeliveryReceived},
		{PeerID: "f1", MsgID: "m9", Content: "yo", DeliveryState: DeliveryReceived},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListMessages("f1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].MsgID != "c1" || got[0].DeliveryState != DeliverySent {
		t.Errorf("got[0] = %+v, want c1 still sent", got[0])
	}
}

func TestSetDeliveryState(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{PeerID: "f1", MsgID: "c1", FromMe: true, DeliveryState: DeliveryPending}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetDeliveryState("f1", "c1", DeliverySent); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListMessages("f1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].DeliveryState != DeliverySent {
		t.Errorf("state = %q, want sent", got[0].DeliveryState)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "f1", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("c2", "f1", "world", "text"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ClientMsgID != "c1" {
		t.Errorf("pending[0] = %q, want c1 (enqueue order)", pending[0].ClientMsgID)
	}

	if err := db.MarkOutboxSending("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("c2", "receiver offline"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after settle = %d, want 0", len(pending))
	}
}

func TestRequeueOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "f1", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("c1", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := db.RequeueOutbox("c1"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ErrorMessage != "" {
		t.Errorf("pending = %+v, want one requeued entry with cleared error", pending)
	}
}

func TestResetSendingOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "f1", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSending("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.ResetSendingOutbox(); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1 after reset", len(pending))
	}
}

func TestMarkOutboxUncertain(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "f1", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxUncertain("c1"); err != nil {
		t.Fatal(err)
	}

	// Uncertain entries must not come back as pending.
	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertFriend inserts or updates a roster entry. Presence is only
// overwritten when the incoming value is non-empty, so roster refreshes do
// not clobber push-delivered status.
func (db *DB) UpsertFriend(f *Friend) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO friends (id, user_id, username, presence, updated_at)
		VALUES (?, ?, ?, COALESCE(NULLIF(?, ''), 'offline'), ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			presence = CASE WHEN ? != '' THEN ? ELSE friends.presence END,
			updated_at = excluded.updated_at`,
		f.ID, f.UserID, f.Username, f.Presence, now, f.Presence, f.Presence)
	return err
}

// BulkUpsertFriends refreshes the roster in a single transaction, keeping
// stored presence for entries that already exist.
func (db *DB) BulkUpsertFriends(friends []Friend) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, f := range friends {
		if _, err := tx.Exec(`
			INSERT INTO friends (id, user_id, username, presence, updated_at)
			VALUES (?, ?, ?, 'offline', ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				username = excluded.username,
				updated_at = excluded.updated_at`,
			f.ID, f.UserID, f.Username, now); err != nil {
			return fmt.Errorf("upsert friend %q: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// SetPresence records push-delivered presence for a friend. Unknown ids are
// ignored; presence for someone not on the roster has nowhere to show.
func (db *DB) SetPresence(friendID, presence string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE friends SET presence = ?, updated_at = ? WHERE id = ?`,
		presence, now, friendID)
	return err
}

// ListFriends returns the roster ordered by username.
func (db *DB) ListFriends() ([]Friend, error) {
	rows, err := db.Query(`
		SELECT id, user_id, username, presence
		FROM friends ORDER BY username COLLATE NOCASE ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var friends []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.ID, &f.UserID, &f.Username, &f.Presence); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// GetFriend returns a roster entry by id, or nil when absent.
func (db *DB) GetFriend(id string) (*Friend, error) {
	var f Friend
	err := db.QueryRow(`SELECT id, user_id, username, presence FROM friends WHERE id = ?`, id).
		Scan(&f.ID, &f.UserID, &f.Username, &f.Presence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

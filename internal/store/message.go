package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DerivedMsgID computes a stable fallback key for messages a server returns
// without an id, keeping (peer_id, msg_id) dedup intact across history
// reloads.
func DerivedMsgID(senderID, content string, timestamp int64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%s", senderID, timestamp, content))
	return hex.EncodeToString(sum[:12])
}

// UpsertMessage inserts or updates a message (idempotent on peer_id +
// msg_id). Redelivered frames and history overlaps collapse into the
// existing row.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (peer_id, msg_id, sender_id, sender_name, content, msg_type, from_me, delivery_state, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			content = excluded.content,
			delivery_state = excluded.delivery_state`,
		m.PeerID, m.MsgID, m.SenderID, m.SenderName, m.Content, m.MsgType, m.FromMe, m.DeliveryState, m.Timestamp, now)
	return err
}

// BulkUpsertMessages ingests a history batch in a single transaction.
// Rows that already exist locally keep their delivery state; history is
// authoritative for content, not for the pending/sent lifecycle.
func (db *DB) BulkUpsertMessages(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (peer_id, msg_id, sender_id, sender_name, content, msg_type, from_me, delivery_state, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(peer_id, msg_id) DO UPDATE SET
				sender_name = excluded.sender_name,
				content = excluded.content`,
			m.PeerID, m.MsgID, m.SenderID, m.SenderName, m.Content, m.MsgType, m.FromMe, m.DeliveryState, m.Timestamp, now); err != nil {
			return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
		}
	}
	return tx.Commit()
}

// SetDeliveryState updates the delivery state of one message.
func (db *DB) SetDeliveryState(peerID, msgID, state string) error {
	_, err := db.Exec(`UPDATE messages SET delivery_state = ? WHERE peer_id = ? AND msg_id = ?`,
		state, peerID, msgID)
	return err
}

// ListMessages returns the most recent messages for a conversation in
// arrival order (insertion order, oldest first). The limit applies to the
// newest end.
func (db *DB) ListMessages(peerID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, peer_id, msg_id, sender_id, sender_name, content, msg_type, from_me, delivery_state, timestamp
		FROM messages
		WHERE peer_id = ?
		ORDER BY id DESC
		LIMIT ?`, peerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PeerID, &m.MsgID, &m.SenderID, &m.SenderName, &m.Content, &m.MsgType, &m.FromMe, &m.DeliveryState, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Flip newest-first query order back to arrival order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessageCount returns the number of stored messages for a conversation.
func (db *DB) MessageCount(peerID string) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE peer_id = ?`, peerID).Scan(&count)
	return count, err
}

package realtime

import (
	"time"

	"github.com/chirp-chat/chirp/internal/store"
)

// TypingEvent is the payload published for inbound typing and stop_typing
// frames.
type TypingEvent struct {
	SenderID string
}

// PresenceUpdate is the payload published for inbound presence frames.
type PresenceUpdate struct {
	UserID string
	Status string // online, offline
}

func asMap(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m, _ := args[0].(map[string]any)
	return m
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// parseTimestamp accepts either an RFC3339 string or an epoch-milliseconds
// number, which is what JSON servers tend to alternate between.
func parseTimestamp(v any) int64 {
	switch ts := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.UnixMilli()
		}
	case float64:
		return int64(ts)
	}
	return time.Now().UnixMilli()
}

// parseMessage converts an inbound private_message frame into a store row.
// selfID decides the conversation key: frames echoed back for our own sends
// belong to the receiver's conversation, everything else to the sender's.
func parseMessage(m map[string]any, selfID string) *store.Message {
	if m == nil {
		return nil
	}

	msg := &store.Message{
		MsgID:         str(m, "_id"),
		Content:       str(m, "content"),
		MsgType:       str(m, "type"),
		DeliveryState: store.DeliveryReceived,
		Timestamp:     parseTimestamp(m["timestamp"]),
	}
	if msg.MsgType == "" {
		msg.MsgType = "text"
	}

	// The sender block may carry the internal _id, the public userId, or
	// both. selfID is the public id from login, so the echo check has to
	// accept a match on either.
	senderUserID := ""
	if sender, ok := m["sender"].(map[string]any); ok {
		msg.SenderID = str(sender, "_id")
		senderUserID = str(sender, "userId")
		if msg.SenderID == "" {
			msg.SenderID = senderUserID
		}
		msg.SenderName = str(sender, "username")
	} else {
		msg.SenderID = str(m, "senderId")
	}

	receiverID := str(m, "receiverId")
	if receiver, ok := m["receiver"].(map[string]any); ok {
		receiverID = str(receiver, "_id")
	}

	fromMe := selfID != "" &&
		(msg.SenderID == selfID || (senderUserID != "" && senderUserID == selfID))
	if fromMe {
		msg.FromMe = true
		msg.PeerID = receiverID
	} else {
		msg.PeerID = msg.SenderID
	}

	if msg.MsgID == "" || msg.PeerID == "" {
		return nil
	}
	return msg
}

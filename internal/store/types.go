package store

// Delivery states for messages. Outgoing messages start at pending and
// settle to sent or failed; inbound messages are always received.
const (
	DeliveryPending  = "pending"
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryReceived = "received"
)

// Outbox statuses. An entry is 'uncertain' when the ack timed out: the
// server may or may not have the message, so it is neither retried nor
// marked failed.
const (
	OutboxQueued    = "queued"
	OutboxSending   = "sending"
	OutboxSent      = "sent"
	OutboxFailed    = "failed"
	OutboxUncertain = "uncertain"
)

// Friend is a roster entry with last known presence.
type Friend struct {
	ID       string
	UserID   string
	Username string
	Presence string // online, offline
}

// Message is one message in a conversation. PeerID identifies the
// conversation; MsgID is unique within it (server id for inbound and
// history, client-minted id for outgoing).
type Message struct {
	ID            int64
	PeerID        string
	MsgID         string
	SenderID      string
	SenderName    string
	Content       string
	MsgType       string // text, image, audio, gif
	FromMe        bool
	DeliveryState string
	Timestamp     int64
}

// OutboxEntry is a queued outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	PeerID       string
	Content      string
	MsgType      string
	Status       string
	ErrorMessage string
}

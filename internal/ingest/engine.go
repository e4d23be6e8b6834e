package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/store"
)

// HistoryFetcher loads server-side conversation history. Implemented by the
// api client.
type HistoryFetcher interface {
	History(ctx context.Context, peerID string) ([]api.HistoryMessage, error)
}

// Engine ingests inbound messages into the store. Live frames arrive via
// the bus; history loads come in as one batch per conversation. Both paths
// are idempotent upserts keyed on (peer_id, msg_id), so redelivery after a
// reconnect collapses into the existing rows.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	history HistoryFetcher
	selfID  func() string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates an ingest engine. selfID reports the current user id,
// used to mark our own messages in history batches.
func NewEngine(db *store.DB, b *bus.Bus, history HistoryFetcher, selfID func() string, logger *zap.Logger) *Engine {
	return &Engine{
		db:      db,
		bus:     b,
		history: history,
		selfID:  selfID,
		logger:  logger,
	}
}

// Start subscribes to inbound realtime messages on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe(bus.KindInboundMessage, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(*store.Message)
				if !ok {
					continue
				}
				if err := e.IngestMessage(msg); err != nil {
					e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.MsgID))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// IngestMessage upserts a single message and announces the change.
func (e *Engine) IngestMessage(msg *store.Message) error {
	if err := e.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	e.bus.Publish(bus.Event{
		Kind: bus.KindMessageUpsert,
		Payload: map[string]string{
			"peer_id": msg.PeerID,
			"msg_id":  msg.MsgID,
		},
	})
	return nil
}

// LoadHistory fetches the stored conversation with a peer and ingests it
// as one batch. Messages already present locally keep their delivery
// state; only new rows appear.
func (e *Engine) LoadHistory(ctx context.Context, peerID string) error {
	history, err := e.history.History(ctx, peerID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	self := e.selfID()
	batch := make([]store.Message, 0, len(history))
	for _, h := range history {
		// The sender block carries the internal _id, the public userId, or
		// both, depending on the server's serializer. The stored self id is
		// the public one issued at login, so match on that first.
		fromMe := self != "" &&
			(h.Sender.UserID == self || (h.Sender.ID != "" && h.Sender.ID == self))
		senderID := h.Sender.ID
		if senderID == "" {
			senderID = h.Sender.UserID
		}

		m := store.Message{
			PeerID:        peerID,
			MsgID:         h.ID,
			SenderID:      senderID,
			SenderName:    h.Sender.Username,
			Content:       h.Content,
			MsgType:       h.Type,
			FromMe:        fromMe,
			DeliveryState: store.DeliveryReceived,
			Timestamp:     h.Timestamp.UnixMilli(),
		}
		// Our own history rows came back from the server, so they were
		// delivered even if this device never saw the ack.
		if m.FromMe {
			m.DeliveryState = store.DeliverySent
		}
		if m.MsgType == "" {
			m.MsgType = "text"
		}
		// Some servers serialize history rows without an id. Derive a
		// stable key so reloads still collapse into the same rows.
		if m.MsgID == "" {
			m.MsgID = store.DerivedMsgID(senderID, m.Content, m.Timestamp)
		}
		batch = append(batch, m)
	}

	if err := e.db.BulkUpsertMessages(batch); err != nil {
		return fmt.Errorf("ingest history batch: %w", err)
	}
	e.logger.Info("history ingested", zap.String("peer_id", peerID), zap.Int("messages", len(batch)))

	e.bus.Publish(bus.Event{
		Kind:    bus.KindMessageUpsert,
		Payload: map[string]string{"peer_id": peerID},
	})
	return nil
}

package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/store"
)

// FrameSender delivers one message over the realtime link. Implemented by
// the realtime channel.
type FrameSender interface {
	Ready() bool
	SendMessage(receiverID, content, msgType string) error
}

// Sender owns outbound message delivery. Send appends the message locally
// in pending state right away; a drain loop pushes queued entries over the
// link in program order and settles each to sent or failed. The queue
// survives restarts, so a message typed while offline goes out after the
// next login.
type Sender struct {
	db     *store.DB
	sender FrameSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, sender FrameSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// ErrUnsupportedType rejects a message type outside the wire contract.
var ErrUnsupportedType = errors.New("unsupported message type")

func validType(msgType string) bool {
	switch msgType {
	case "text", "image", "audio", "gif":
		return true
	}
	return false
}

// Send queues one message and appends it optimistically as pending. The
// returned id is the client-minted message id used for the local echo.
func (s *Sender) Send(peerID, content, msgType string) (string, error) {
	if !validType(msgType) {
		return "", ErrUnsupportedType
	}
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, peerID, content, msgType); err != nil {
		return "", err
	}

	if err := s.db.UpsertMessage(&store.Message{
		PeerID:        peerID,
		MsgID:         clientMsgID,
		Content:       content,
		MsgType:       msgType,
		FromMe:        true,
		DeliveryState: store.DeliveryPending,
		Timestamp:     time.Now().UnixMilli(),
	}); err != nil {
		return "", err
	}
	s.publishUpsert(peerID, clientMsgID)
	return clientMsgID, nil
}

// Retry requeues a failed message and flips its local echo back to pending.
func (s *Sender) Retry(peerID, clientMsgID string) error {
	if err := s.db.RequeueOutbox(clientMsgID); err != nil {
		return err
	}
	if err := s.db.SetDeliveryState(peerID, clientMsgID, store.DeliveryPending); err != nil {
		return err
	}
	s.publishUpsert(peerID, clientMsgID)
	return nil
}

// Start begins draining the outbox.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	// A crash mid-send leaves 'sending' rows behind; reclaim them.
	if err := s.db.ResetSendingOutbox(); err != nil {
		s.logger.Error("failed to reset stuck outbox entries", zap.Error(err))
	}
	go s.loop(ctx)
}

// Stop stops the drain loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending() {
	if !s.sender.Ready() {
		return
	}

	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		err := s.sender.SendMessage(entry.PeerID, entry.Content, entry.MsgType)
		switch {
		case err == nil:
			if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
				s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			}
			_ = s.db.SetDeliveryState(entry.PeerID, entry.ClientMsgID, store.DeliverySent)
			s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID))
			s.publishUpsert(entry.PeerID, entry.ClientMsgID)
			s.bus.Publish(bus.Event{
				Kind:    bus.KindSendAck,
				Payload: map[string]string{"client_msg_id": entry.ClientMsgID, "peer_id": entry.PeerID},
			})

		case errors.Is(err, realtime.ErrNotAuthenticated):
			// Link dropped between Ready and the send. Put the entry back
			// and let a later pass retry it; stop this pass to keep
			// program order.
			_ = s.db.MarkOutboxQueued(entry.ClientMsgID)
			return

		case errors.Is(err, realtime.ErrAckTimeout):
			// The server may have the message. Park the entry and leave
			// the local echo pending rather than risk a duplicate send.
			s.logger.Warn("send ack timed out", zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxUncertain(entry.ClientMsgID)
			s.bus.Publish(bus.Event{
				Kind:    bus.KindSendUncertain,
				Payload: map[string]string{"client_msg_id": entry.ClientMsgID, "peer_id": entry.PeerID},
			})

		default:
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			_ = s.db.SetDeliveryState(entry.PeerID, entry.ClientMsgID, store.DeliveryFailed)
			s.publishUpsert(entry.PeerID, entry.ClientMsgID)
			s.bus.Publish(bus.Event{
				Kind:    bus.KindSendFailed,
				Payload: map[string]string{"client_msg_id": entry.ClientMsgID, "peer_id": entry.PeerID, "error": err.Error()},
			})
		}
	}
}

func (s *Sender) publishUpsert(peerID, msgID string) {
	s.bus.Publish(bus.Event{
		Kind:    bus.KindMessageUpsert,
		Payload: map[string]string{"peer_id": peerID, "msg_id": msgID},
	})
}

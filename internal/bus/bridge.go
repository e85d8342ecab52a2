package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"drawsync/internal/model"
)

// Subject layout shared with the game service.
const (
	// SubjectGameEvents matches every lifecycle event the game service
	// publishes (game.event.round-started, game.event.game-ended, ...).
	SubjectGameEvents = "game.event.*"
	// SubjectGameRequest is where outbound queries are published.
	SubjectGameRequest = "game.request"
	// replyPrefix derives the per-request ephemeral reply subject.
	replyPrefix = "drawing.response."
)

// RequestTimeout bounds how long Ask waits for a correlated reply before
// resolving with the fallback value.
const RequestTimeout = 1000 * time.Millisecond

// LifecycleHandler receives game lifecycle events forwarded into the relay.
type LifecycleHandler interface {
	ClearCanvasForRoom(ctx context.Context, roomCode, reason string)
	SetCurrentDrawer(roomCode, drawerID string)
}

// Bridge is the request/reply facade over the one-way bus: it forwards game
// lifecycle events into the relay and correlates outbound queries with their
// replies. It degrades to a fixed fallback value whenever the bus or the game
// service is unavailable.
type Bridge struct {
	conn    Conn
	relay   LifecycleHandler
	timeout time.Duration

	eventsSub Subscription
}

// NewBridge creates a new bridge over the given bus connection.
func NewBridge(conn Conn, relay LifecycleHandler) *Bridge {
	return &Bridge{
		conn:    conn,
		relay:   relay,
		timeout: RequestTimeout,
	}
}

// Start subscribes to the lifecycle event feed. A subscription failure here
// is fatal to the caller: the service cannot run without its lifecycle feed.
func (b *Bridge) Start() error {
	sub, err := b.conn.Subscribe(SubjectGameEvents, b.handleGameEvent)
	if err != nil {
		return fmt.Errorf("subscribe to game events: %w", err)
	}
	b.eventsSub = sub
	log.WithField("subject", SubjectGameEvents).Info("subscribed to game lifecycle events")
	return nil
}

// Close tears down the lifecycle subscription.
func (b *Bridge) Close() {
	if b.eventsSub != nil {
		if err := b.eventsSub.Unsubscribe(); err != nil {
			log.WithError(err).Warn("failed to unsubscribe from game events")
		}
		b.eventsSub = nil
	}
}

// handleGameEvent dispatches one lifecycle notification. Malformed payloads
// are dropped; nothing thrown here may take down the subscriber.
func (b *Bridge) handleGameEvent(subject string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"subject": subject, "panic": r}).
				Error("game event handler panicked")
		}
	}()

	var ev model.GameEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.WithFields(log.Fields{"subject": subject, "error": err}).
			Warn("dropping malformed game event")
		return
	}

	ctx := context.Background()
	switch ev.Type {
	case model.GameRoundStarted:
		b.relay.ClearCanvasForRoom(ctx, ev.RoomCode, "New round started")
	case model.GameEnded:
		b.relay.ClearCanvasForRoom(ctx, ev.RoomCode, "Game ended")
	case model.GameWordSelected:
		var d model.WordSelectedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			log.WithFields(log.Fields{"roomCode": ev.RoomCode, "error": err}).
				Warn("dropping malformed word-selected payload")
			return
		}
		if d.DrawerID != "" {
			b.relay.SetCurrentDrawer(ev.RoomCode, d.DrawerID)
		}
	default:
		log.WithField("type", ev.Type).Debug("ignoring unknown game event")
	}
}

// FallbackValue is the conservative answer returned when the game service does
// not reply in time or the bus is unavailable.
func FallbackValue() json.RawMessage {
	return json.RawMessage(`{"currentDrawer":null,"gamePhase":"unknown"}`)
}

// Ask publishes a correlated request to the game service and waits for its
// reply. The reply subscription exists before the request is published, so a
// reply can never arrive with nobody listening. Exactly one outcome resolves
// the call: the correlated reply, the timeout, or context cancellation; the
// two losing paths are torn down either way.
func (b *Bridge) Ask(ctx context.Context, action string, payload interface{}) json.RawMessage {
	requestID := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
	replySubject := replyPrefix + requestID

	replies := make(chan json.RawMessage, 1)
	sub, err := b.conn.Subscribe(replySubject, func(subject string, data []byte) {
		var resp model.GameResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			log.WithFields(log.Fields{"subject": subject, "error": err}).
				Warn("dropping malformed game response")
			return
		}
		if resp.RequestID != requestID {
			// Not ours; leave it for whoever is waiting on it.
			return
		}
		select {
		case replies <- resp.Data:
		default:
		}
	})
	if err != nil {
		log.WithFields(log.Fields{"action": action, "error": err}).
			Error("failed to provision reply subscription")
		return FallbackValue()
	}
	defer sub.Unsubscribe()

	data, err := json.Marshal(payload)
	if err != nil {
		log.WithFields(log.Fields{"action": action, "error": err}).
			Error("failed to encode game request payload")
		return FallbackValue()
	}
	req := &model.GameRequest{
		ID:        requestID,
		Action:    action,
		Data:      data,
		ReplyTo:   replySubject,
		Timestamp: time.Now().UnixMilli(),
	}
	out, err := json.Marshal(req)
	if err != nil {
		return FallbackValue()
	}
	if err := b.conn.Publish(SubjectGameRequest, out); err != nil {
		log.WithFields(log.Fields{"action": action, "error": err}).
			Error("failed to publish game request")
		return FallbackValue()
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-replies:
		return resp
	case <-timer.C:
		log.WithFields(log.Fields{"action": action, "requestId": requestID}).
			Warn("game request timed out")
		return FallbackValue()
	case <-ctx.Done():
		return FallbackValue()
	}
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"drawsync/internal/cache"
	"drawsync/internal/model"
)

// ErrJoinValidation is reported back to the joining connection only; it is
// never broadcast to the room.
var ErrJoinValidation = errors.New("room code and user ID required")

// DrawingService implements the room-scoped relay semantics: it drives the
// canvas log and the presence registry and fans events out through the
// Broadcaster. Persistence is fail-open: a Redis outage degrades the room to
// relay-only behavior instead of taking it down.
type DrawingService struct {
	canvas   cache.CanvasCache
	presence cache.PresenceCache

	broadcaster Broadcaster

	mu      sync.RWMutex
	drawers map[string]string // roomCode -> current drawer userId
}

// NewDrawingService creates a new drawing service
func NewDrawingService(canvas cache.CanvasCache, presence cache.PresenceCache) *DrawingService {
	return &DrawingService{
		canvas:   canvas,
		presence: presence,
		drawers:  make(map[string]string),
	}
}

// SetBroadcaster injects the WebSocket hub (implements Broadcaster)
func (s *DrawingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Join registers the user in the room, replays the retained canvas privately
// to the joining connection, and announces presence to the rest of the room.
// The replay is never broadcast.
func (s *DrawingService) Join(ctx context.Context, roomCode, userID, username, socketID string) error {
	if roomCode == "" || userID == "" {
		return ErrJoinValidation
	}

	session := &model.Session{
		Username: username,
		SocketID: socketID,
		JoinedAt: nowMillis(),
	}
	if err := s.presence.Put(ctx, roomCode, userID, session); err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID, "error": err}).
			Error("failed to store session")
	}

	drawings, err := s.canvas.ReadAll(ctx, roomCode)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to read canvas for replay")
		drawings = nil
	}
	if len(drawings) > 0 {
		s.broadcaster.SendToUser(roomCode, userID, "canvas-state", map[string]interface{}{
			"drawings": drawings,
		})
	}

	s.broadcaster.BroadcastToOthers(roomCode, userID, "user-joined-drawing", map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"timestamp": nowMillis(),
	})

	log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID, "username": username}).
		Info("user joined drawing room")
	return nil
}

// Leave removes the user from the room and announces the departure. Explicit
// leaves and transport disconnects share this path.
func (s *DrawingService) Leave(ctx context.Context, roomCode, userID, username string) {
	if roomCode == "" || userID == "" {
		return
	}

	if err := s.presence.Remove(ctx, roomCode, userID); err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID, "error": err}).
			Error("failed to remove session")
	}

	s.broadcaster.BroadcastToOthers(roomCode, userID, "user-left-drawing", map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"timestamp": nowMillis(),
	})

	log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID}).
		Info("user left drawing room")
}

// RecordStroke stamps and persists a draw-start/move/end event, then relays it
// to every other connection in the room. The sender already has local state.
func (s *DrawingService) RecordStroke(ctx context.Context, roomCode, userID string, typ model.EventType, payload model.StrokePayload) {
	if roomCode == "" {
		return
	}

	event := &model.DrawEvent{
		Type:      typ,
		UserID:    userID,
		Timestamp: nowMillis(),
		X:         payload.X,
		Y:         payload.Y,
		Color:     payload.Color,
		Size:      payload.Size,
		Tool:      payload.Tool,
	}

	if event.Type.Durable() {
		if err := s.canvas.Append(ctx, roomCode, event); err != nil {
			log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
				Error("failed to store drawing event")
		}
	}

	s.broadcaster.BroadcastToOthers(roomCode, userID, string(typ), event)
}

// ClearCanvas wipes the room's log on behalf of a participant, records the
// clear marker, and notifies everyone in the room including the sender so all
// clients resync.
func (s *DrawingService) ClearCanvas(ctx context.Context, roomCode, userID, username string) {
	if roomCode == "" {
		return
	}

	if err := s.canvas.Clear(ctx, roomCode); err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to clear canvas")
	}

	marker := &model.DrawEvent{
		Type:      model.EventClearCanvas,
		UserID:    userID,
		Username:  username,
		Timestamp: nowMillis(),
	}
	if err := s.canvas.Append(ctx, roomCode, marker); err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to store clear marker")
	}

	s.broadcaster.BroadcastToRoom(roomCode, "canvas-cleared", marker)
}

// ChangeColor relays an ephemeral color change; never persisted.
func (s *DrawingService) ChangeColor(roomCode, userID, username, color string) {
	if roomCode == "" || color == "" {
		return
	}
	s.broadcaster.BroadcastToOthers(roomCode, userID, "color-changed", map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"color":     color,
		"timestamp": nowMillis(),
	})
}

// ChangePenSize relays an ephemeral pen size change; never persisted.
func (s *DrawingService) ChangePenSize(roomCode, userID, username string, size *float64) {
	if roomCode == "" || size == nil {
		return
	}
	s.broadcaster.BroadcastToOthers(roomCode, userID, "pen-size-changed", map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"size":      *size,
		"timestamp": nowMillis(),
	})
}

// ChangeTool relays an ephemeral tool change; never persisted.
func (s *DrawingService) ChangeTool(roomCode, userID, username, tool, color string, size *float64) {
	if roomCode == "" || tool == "" {
		return
	}
	payload := map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"tool":      tool,
		"timestamp": nowMillis(),
	}
	if color != "" {
		payload["color"] = color
	}
	if size != nil {
		payload["size"] = *size
	}
	s.broadcaster.BroadcastToOthers(roomCode, userID, "tool-changed", payload)
}

// CanvasState replays the room's retained log privately to the requester.
func (s *DrawingService) CanvasState(ctx context.Context, roomCode, userID string) {
	if roomCode == "" {
		return
	}
	drawings, err := s.canvas.ReadAll(ctx, roomCode)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to read canvas state")
		drawings = nil
	}
	if drawings == nil {
		drawings = []model.DrawEvent{}
	}
	s.broadcaster.SendToUser(roomCode, userID, "canvas-state", map[string]interface{}{
		"drawings": drawings,
	})
}

// ClearCanvasForRoom clears the room's canvas on behalf of the game service
// and notifies the whole room with a human-readable reason. Clearing an
// already-empty room is a no-op.
func (s *DrawingService) ClearCanvasForRoom(ctx context.Context, roomCode, reason string) {
	if roomCode == "" {
		return
	}
	if err := s.canvas.Clear(ctx, roomCode); err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to clear canvas for room")
		return
	}
	s.broadcaster.BroadcastToRoom(roomCode, "canvas-cleared", map[string]interface{}{
		"message":   reason,
		"timestamp": nowMillis(),
	})
	log.WithField("roomCode", roomCode).Info("canvas cleared by game service")
}

// SetCurrentDrawer records out-of-band drawer identity for the room.
func (s *DrawingService) SetCurrentDrawer(roomCode, drawerID string) {
	s.mu.Lock()
	s.drawers[roomCode] = drawerID
	s.mu.Unlock()
	log.WithFields(log.Fields{"roomCode": roomCode, "drawerId": drawerID}).
		Info("current drawer updated")
}

// CurrentDrawer returns the last drawer recorded for the room, if any.
func (s *DrawingService) CurrentDrawer(roomCode string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.drawers[roomCode]
	return id, ok
}

// Canvas returns the room's retained log in chronological order.
func (s *DrawingService) Canvas(ctx context.Context, roomCode string) ([]model.DrawEvent, error) {
	return s.canvas.ReadAll(ctx, roomCode)
}

// ClearByRequest clears the canvas via the HTTP surface and records who did
// it. No broadcast: the REST path has no originating connection.
func (s *DrawingService) ClearByRequest(ctx context.Context, roomCode, userID, username string) (int64, error) {
	if err := s.canvas.Clear(ctx, roomCode); err != nil {
		return 0, err
	}
	marker := &model.DrawEvent{
		Type:      model.EventClearCanvas,
		UserID:    userID,
		Username:  username,
		Timestamp: nowMillis(),
	}
	if err := s.canvas.Append(ctx, roomCode, marker); err != nil {
		return 0, err
	}
	return marker.Timestamp, nil
}

// Users lists the room's current sessions.
func (s *DrawingService) Users(ctx context.Context, roomCode string) ([]model.RoomUser, error) {
	return s.presence.ListAll(ctx, roomCode)
}

// Stats summarizes the room's retained log.
func (s *DrawingService) Stats(ctx context.Context, roomCode string) (*model.CanvasStats, error) {
	events, err := s.canvas.ReadAll(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	stats := &model.CanvasStats{}
	drawers := make(map[string]struct{})
	for _, ev := range events {
		switch ev.Type {
		case model.EventDrawStart:
			stats.TotalStrokes++
		case model.EventDrawMove:
			stats.TotalPoints++
		case model.EventClearCanvas:
			stats.ClearEvents++
		}
		if ev.UserID != "" {
			drawers[ev.UserID] = struct{}{}
		}
	}
	stats.UniqueDrawers = len(drawers)
	if len(events) > 0 {
		first := events[0].Timestamp
		last := events[len(events)-1].Timestamp
		stats.FirstDrawing = &first
		stats.LastDrawing = &last
	}
	return stats, nil
}

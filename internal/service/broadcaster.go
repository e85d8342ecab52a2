package service

// Broadcaster interface for WebSocket fan-out (avoids import cycle)
type Broadcaster interface {
	BroadcastToRoom(roomCode string, msgType string, payload interface{})
	BroadcastToOthers(roomCode, excludeUserID string, msgType string, payload interface{})
	SendToUser(roomCode, userID string, msgType string, payload interface{})
}

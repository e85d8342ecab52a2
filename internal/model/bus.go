package model

import "encoding/json"

// GameEventType tags a lifecycle notification from the game service.
type GameEventType string

const (
	GameRoundStarted GameEventType = "round-started"
	GameEnded        GameEventType = "game-ended"
	GameWordSelected GameEventType = "word-selected"
)

// GameEvent is a lifecycle notification received on game.event.* subjects.
// Delivery is at-least-once; handlers must be idempotent.
type GameEvent struct {
	Type     GameEventType   `json:"type"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// WordSelectedData is the payload of a word-selected event.
type WordSelectedData struct {
	DrawerID string `json:"drawerId"`
}

// GameRequest is an outbound query to the game service, published to
// game.request. ReplyTo names the ephemeral subject the response must be
// delivered on.
type GameRequest struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	ReplyTo   string          `json:"replyTo"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// GameResponse correlates back to exactly one outstanding GameRequest.
type GameResponse struct {
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

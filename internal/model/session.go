package model

// Session is one participant's membership record in a drawing room, stored as
// a hash field keyed by userId. A rejoin overwrites the previous record
// (last-write-wins).
type Session struct {
	Username string `json:"username"`
	SocketID string `json:"socketId"`
	JoinedAt int64  `json:"joinedAt"` // epoch millis
}

// RoomUser is a session annotated with its userId, as returned by the
// users endpoint and the presence listing.
type RoomUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	SocketID string `json:"socketId"`
	JoinedAt int64  `json:"joinedAt"`
}

package ws

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connection represents one WebSocket connection's outbound side.
type Connection struct {
	// Buffered; the hub drops messages instead of blocking when a slow
	// consumer fills it.
	Send chan []byte
}

// NewConnection creates a connection with the standard send buffer.
func NewConnection() *Connection {
	return &Connection{Send: make(chan []byte, 256)}
}

type membership struct {
	roomCode string
	userID   string
}

// Hub manages room membership for WebSocket connections and implements
// service.Broadcaster. Connections are keyed by (roomCode, userId); a rejoin
// for the same user replaces the map entry, and the replaced connection's
// later removal does not evict the newer one.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Connection // roomCode -> userId -> conn
	members map[*Connection]membership
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Connection),
		members: make(map[*Connection]membership),
	}
}

// Join subscribes the connection to a room under the given user identity.
// Any previous membership of the same connection is dropped first.
func (h *Hub) Join(conn *Connection, roomCode, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(conn)

	room, ok := h.rooms[roomCode]
	if !ok {
		room = make(map[string]*Connection)
		h.rooms[roomCode] = room
	}
	room[userID] = conn
	h.members[conn] = membership{roomCode: roomCode, userID: userID}

	log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID}).
		Debug("connection joined room")
}

// Leave unsubscribes the connection from its room, keeping it usable for a
// later join.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(conn)
}

// Drop unsubscribes the connection and closes its send channel. Called once,
// on transport disconnect.
func (h *Hub) Drop(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(conn)
	close(conn.Send)
}

func (h *Hub) detachLocked(conn *Connection) {
	m, ok := h.members[conn]
	if !ok {
		return
	}
	delete(h.members, conn)
	if room, ok := h.rooms[m.roomCode]; ok {
		// A rejoin may have replaced this entry already; only evict if the
		// room still points at this connection.
		if existing, ok := room[m.userID]; ok && existing == conn {
			delete(room, m.userID)
		}
		if len(room) == 0 {
			delete(h.rooms, m.roomCode)
		}
	}
}

// BroadcastToRoom sends a message to every connection in the room
// (implements service.Broadcaster)
func (h *Hub) BroadcastToRoom(roomCode string, msgType string, payload interface{}) {
	h.send(roomCode, "", "", msgType, payload)
}

// BroadcastToOthers sends a message to every connection in the room except
// the excluded user (implements service.Broadcaster)
func (h *Hub) BroadcastToOthers(roomCode, excludeUserID string, msgType string, payload interface{}) {
	h.send(roomCode, "", excludeUserID, msgType, payload)
}

// SendToUser sends a message to one user's connection only (implements
// service.Broadcaster)
func (h *Hub) SendToUser(roomCode, userID string, msgType string, payload interface{}) {
	h.send(roomCode, userID, "", msgType, payload)
}

func (h *Hub) send(roomCode, toUser, excludeUser, msgType string, payload interface{}) {
	data, err := Encode(msgType, payload)
	if err != nil {
		log.WithFields(log.Fields{"type": msgType, "error": err}).
			Error("failed to encode message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	for userID, conn := range room {
		if toUser != "" && userID != toUser {
			continue
		}
		if excludeUser != "" && userID == excludeUser {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			// Drop message if buffer full
		}
	}
}

// Encode marshals a message envelope for the wire.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: msgType, Payload: data})
}

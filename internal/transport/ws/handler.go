package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"drawsync/internal/model"
	"drawsync/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	drawingSvc *service.DrawingService
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, drawingSvc *service.DrawingService) *Handler {
	return &Handler{
		hub:        hub,
		drawingSvc: drawingSvc,
	}
}

// client tracks one connection's state machine: unjoined until a successful
// join-drawing-room, then bound to (roomCode, userId) until leave/disconnect.
type client struct {
	handler *Handler
	wsConn  *websocket.Conn
	conn    *Connection

	roomCode string
	userID   string
	username string
	socketID string
}

func (c *client) joined() bool {
	return c.roomCode != ""
}

// ServeWS handles GET /drawing/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	c := &client{
		handler:  h,
		wsConn:   wsConn,
		conn:     NewConnection(),
		socketID: r.RemoteAddr,
	}

	log.WithField("socketId", c.socketID).Info("drawing client connected")
	c.send("welcome", map[string]interface{}{
		"message": "Connected to drawing service",
	})

	go c.writePump()
	go c.readPump()
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type colorPayload struct {
	Color string `json:"color"`
}

type sizePayload struct {
	Size *float64 `json:"size"`
}

type toolPayload struct {
	Tool  string   `json:"tool"`
	Color string   `json:"color"`
	Size  *float64 `json:"size"`
}

func (c *client) readPump() {
	defer func() {
		c.disconnect()
		c.wsConn.Close()
	}()

	c.wsConn.SetReadLimit(maxMessageSize)
	c.wsConn.SetReadDeadline(time.Now().Add(pongWait))
	c.wsConn.SetPongHandler(func(string) error {
		c.wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithFields(log.Fields{"socketId": c.socketID, "error": err}).
					Warn("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.dispatch(&msg)
	}
}

// dispatch routes one inbound message. Handler failures never escape this
// method; the worst outcome for the client is an error event.
func (c *client) dispatch(msg *Message) {
	ctx := context.Background()
	svc := c.handler.drawingSvc

	switch msg.Type {
	case "join-drawing-room":
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.sendError("invalid join payload")
			return
		}
		if p.RoomCode == "" || p.UserID == "" {
			c.sendError(service.ErrJoinValidation.Error())
			return
		}
		c.handler.hub.Join(c.conn, p.RoomCode, p.UserID)
		c.roomCode, c.userID, c.username = p.RoomCode, p.UserID, p.Username
		if err := svc.Join(ctx, p.RoomCode, p.UserID, p.Username, c.socketID); err != nil {
			c.sendError(err.Error())
		}

	case "leave-drawing-room":
		if !c.joined() {
			return
		}
		svc.Leave(ctx, c.roomCode, c.userID, c.username)
		c.handler.hub.Leave(c.conn)
		c.roomCode, c.userID, c.username = "", "", ""

	case "draw-start", "draw-move", "draw-end":
		if !c.joined() {
			return
		}
		var p model.StrokePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.sendError("invalid drawing payload")
			return
		}
		svc.RecordStroke(ctx, c.roomCode, c.userID, model.EventType(msg.Type), p)

	case "clear-canvas":
		if !c.joined() {
			return
		}
		svc.ClearCanvas(ctx, c.roomCode, c.userID, c.username)

	case "change-color":
		if !c.joined() {
			return
		}
		var p colorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		svc.ChangeColor(c.roomCode, c.userID, c.username, p.Color)

	case "change-pen-size":
		if !c.joined() {
			return
		}
		var p sizePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		svc.ChangePenSize(c.roomCode, c.userID, c.username, p.Size)

	case "change-tool":
		if !c.joined() {
			return
		}
		var p toolPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		svc.ChangeTool(c.roomCode, c.userID, c.username, p.Tool, p.Color, p.Size)

	case "get-canvas-state":
		if !c.joined() {
			return
		}
		svc.CanvasState(ctx, c.roomCode, c.userID)

	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// disconnect runs the uniform cleanup path shared with an explicit leave,
// then tears the connection down.
func (c *client) disconnect() {
	if c.joined() {
		c.handler.drawingSvc.Leave(context.Background(), c.roomCode, c.userID, c.username)
	}
	c.handler.hub.Drop(c.conn)
	log.WithField("socketId", c.socketID).Info("drawing client disconnected")
}

func (c *client) send(msgType string, payload interface{}) {
	data, err := Encode(msgType, payload)
	if err != nil {
		return
	}
	select {
	case c.conn.Send <- data:
	default:
	}
}

func (c *client) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-c.conn.Send:
			c.wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package model

// EventType tags a drawing event on the wire and in the canvas log.
type EventType string

const (
	EventDrawStart   EventType = "draw-start"
	EventDrawMove    EventType = "draw-move"
	EventDrawEnd     EventType = "draw-end"
	EventClearCanvas EventType = "clear-canvas"
	EventChangeColor EventType = "change-color"
	EventChangeSize  EventType = "change-pen-size"
	EventChangeTool  EventType = "change-tool"
)

// Durable reports whether events of this type are appended to the canvas log.
// Tool/color/size changes are broadcast-only.
func (t EventType) Durable() bool {
	switch t {
	case EventDrawStart, EventDrawMove, EventDrawEnd, EventClearCanvas:
		return true
	}
	return false
}

// DrawEvent is one entry in a room's canvas log. Tool payload fields are
// optional and depend on the event type; the stamp fields are always set by
// the service before the event is stored or broadcast.
type DrawEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Timestamp int64     `json:"timestamp"` // epoch millis

	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Color string   `json:"color,omitempty"`
	Size  *float64 `json:"size,omitempty"`
	Tool  string   `json:"tool,omitempty"`
}

// StrokePayload is the client-supplied part of a draw-start/move/end event.
type StrokePayload struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Color string   `json:"color,omitempty"`
	Size  *float64 `json:"size,omitempty"`
	Tool  string   `json:"tool,omitempty"`
}

// CanvasStats summarizes a room's retained log for the stats endpoint.
type CanvasStats struct {
	TotalStrokes  int    `json:"totalStrokes"`
	TotalPoints   int    `json:"totalPoints"`
	ClearEvents   int    `json:"clearEvents"`
	UniqueDrawers int    `json:"uniqueDrawers"`
	FirstDrawing  *int64 `json:"firstDrawing"`
	LastDrawing   *int64 `json:"lastDrawing"`
}

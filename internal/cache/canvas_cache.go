package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"drawsync/internal/model"
)

// MaxEvents caps the retained canvas log per room. The list is pushed at the
// head and trimmed, so the retained window is always the most recent events.
const MaxEvents = 1000

// CanvasCache handles Redis operations for the per-room drawing event log
type CanvasCache interface {
	Append(ctx context.Context, roomCode string, event *model.DrawEvent) error
	ReadAll(ctx context.Context, roomCode string) ([]model.DrawEvent, error)
	Clear(ctx context.Context, roomCode string) error
}

type canvasCache struct {
	client *redis.Client
}

// NewCanvasCache creates a new canvas cache
func NewCanvasCache(client *redis.Client) CanvasCache {
	return &canvasCache{client: client}
}

func (c *canvasCache) key(roomCode string) string {
	return fmt.Sprintf("drawing:room:%s:canvas", roomCode)
}

// Append inserts the event at the head of the room's log and trims the log to
// MaxEvents. The push and the trim are separate commands; a concurrent read
// between them may briefly observe a log one entry over the cap.
func (c *canvasCache) Append(ctx context.Context, roomCode string, event *model.DrawEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := c.key(roomCode)
	if err := c.client.LPush(ctx, key, data).Err(); err != nil {
		return err
	}
	return c.client.LTrim(ctx, key, 0, MaxEvents-1).Err()
}

// ReadAll returns the retained events in chronological order (oldest first).
// A missing key is an empty room, not an error. Entries that no longer parse
// are skipped.
func (c *canvasCache) ReadAll(ctx context.Context, roomCode string) ([]model.DrawEvent, error) {
	raw, err := c.client.LRange(ctx, c.key(roomCode), 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	events := make([]model.DrawEvent, 0, len(raw))
	// LRange returns head-first (most recent first); walk backwards to get
	// chronological order.
	for i := len(raw) - 1; i >= 0; i-- {
		var ev model.DrawEvent
		if err := json.Unmarshal([]byte(raw[i]), &ev); err != nil {
			log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
				Warn("skipping unparsable canvas entry")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Clear deletes the room's entire log. Deleting an absent key is a no-op.
func (c *canvasCache) Clear(ctx context.Context, roomCode string) error {
	return c.client.Del(ctx, c.key(roomCode)).Err()
}

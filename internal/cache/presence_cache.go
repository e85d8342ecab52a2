package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"drawsync/internal/model"
)

// PresenceCache handles Redis operations for room membership
type PresenceCache interface {
	Put(ctx context.Context, roomCode, userID string, session *model.Session) error
	Remove(ctx context.Context, roomCode, userID string) error
	ListAll(ctx context.Context, roomCode string) ([]model.RoomUser, error)
}

type presenceCache struct {
	client *redis.Client
}

// NewPresenceCache creates a new presence cache
func NewPresenceCache(client *redis.Client) PresenceCache {
	return &presenceCache{client: client}
}

func (c *presenceCache) key(roomCode string) string {
	return fmt.Sprintf("drawing:room:%s:users", roomCode)
}

// Put upserts the session record; a rejoin with a new connection silently
// supersedes the previous record for the same user.
func (c *presenceCache) Put(ctx context.Context, roomCode, userID string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, c.key(roomCode), userID, data).Err()
}

// Remove deletes the user's session record; removing an absent field is a no-op.
func (c *presenceCache) Remove(ctx context.Context, roomCode, userID string) error {
	return c.client.HDel(ctx, c.key(roomCode), userID).Err()
}

// ListAll returns every current session in the room. A missing key is an
// empty room.
func (c *presenceCache) ListAll(ctx context.Context, roomCode string) ([]model.RoomUser, error) {
	fields, err := c.client.HGetAll(ctx, c.key(roomCode)).Result()
	if err != nil {
		return nil, err
	}

	users := make([]model.RoomUser, 0, len(fields))
	for userID, raw := range fields {
		var s model.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			log.WithFields(log.Fields{"roomCode": roomCode, "userId": userID, "error": err}).
				Warn("skipping unparsable session record")
			continue
		}
		users = append(users, model.RoomUser{
			UserID:   userID,
			Username: s.Username,
			SocketID: s.SocketID,
			JoinedAt: s.JoinedAt,
		})
	}
	return users, nil
}

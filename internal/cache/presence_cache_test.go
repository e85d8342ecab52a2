package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawsync/internal/cache"
	"drawsync/internal/model"
)

func TestPresenceCache_PutListRemove(t *testing.T) {
	client := newTestRedis(t)
	p := cache.NewPresenceCache(client)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "ABCD", "u1", &model.Session{Username: "alice", SocketID: "s1", JoinedAt: 100}))
	require.NoError(t, p.Put(ctx, "ABCD", "u2", &model.Session{Username: "bob", SocketID: "s2", JoinedAt: 200}))

	users, err := p.ListAll(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, users, 2)

	byID := make(map[string]model.RoomUser)
	for _, u := range users {
		byID[u.UserID] = u
	}
	assert.Equal(t, "alice", byID["u1"].Username)
	assert.Equal(t, "s2", byID["u2"].SocketID)
	assert.Equal(t, int64(200), byID["u2"].JoinedAt)

	require.NoError(t, p.Remove(ctx, "ABCD", "u1"))
	users, err = p.ListAll(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].UserID)

	// Removing an absent user is a no-op.
	require.NoError(t, p.Remove(ctx, "ABCD", "u1"))
}

func TestPresenceCache_RejoinOverwrites(t *testing.T) {
	client := newTestRedis(t)
	p := cache.NewPresenceCache(client)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "ABCD", "u1", &model.Session{Username: "alice", SocketID: "old", JoinedAt: 100}))
	require.NoError(t, p.Put(ctx, "ABCD", "u1", &model.Session{Username: "alice", SocketID: "new", JoinedAt: 200}))

	users, err := p.ListAll(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "new", users[0].SocketID)
	assert.Equal(t, int64(200), users[0].JoinedAt)
}

func TestPresenceCache_ListAllMissingRoom(t *testing.T) {
	client := newTestRedis(t)
	p := cache.NewPresenceCache(client)

	users, err := p.ListAll(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, users)
}

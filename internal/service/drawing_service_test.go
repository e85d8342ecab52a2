package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawsync/internal/cache"
	"drawsync/internal/model"
	"drawsync/internal/service"
)

type broadcastCall struct {
	kind     string // "room", "others", "user"
	roomCode string
	target   string // excluded user or direct recipient
	msgType  string
	payload  interface{}
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (f *fakeBroadcaster) BroadcastToRoom(roomCode, msgType string, payload interface{}) {
	f.record(broadcastCall{kind: "room", roomCode: roomCode, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) BroadcastToOthers(roomCode, excludeUserID, msgType string, payload interface{}) {
	f.record(broadcastCall{kind: "others", roomCode: roomCode, target: excludeUserID, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) SendToUser(roomCode, userID, msgType string, payload interface{}) {
	f.record(broadcastCall{kind: "user", roomCode: roomCode, target: userID, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) record(c broadcastCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeBroadcaster) byType(msgType string) []broadcastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastCall
	for _, c := range f.calls {
		if c.msgType == msgType {
			out = append(out, c)
		}
	}
	return out
}

func newTestService(t *testing.T) (*service.DrawingService, cache.CanvasCache, *fakeBroadcaster) {
	svc, canvas, b, _ := newTestServiceWithRedis(t)
	return svc, canvas, b
}

func newTestServiceWithRedis(t *testing.T) (*service.DrawingService, cache.CanvasCache, *fakeBroadcaster, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	canvas := cache.NewCanvasCache(client)
	presence := cache.NewPresenceCache(client)
	svc := service.NewDrawingService(canvas, presence)
	b := &fakeBroadcaster{}
	svc.SetBroadcaster(b)
	return svc, canvas, b, mr
}

func strokePayload(x, y float64) model.StrokePayload {
	return model.StrokePayload{X: &x, Y: &y}
}

func TestJoin_Validation(t *testing.T) {
	svc, _, b := newTestService(t)
	ctx := context.Background()

	err := svc.Join(ctx, "", "u1", "alice", "s1")
	assert.ErrorIs(t, err, service.ErrJoinValidation)
	err = svc.Join(ctx, "ABCD", "", "alice", "s1")
	assert.ErrorIs(t, err, service.ErrJoinValidation)

	// A failed join produces no broadcast of any kind.
	assert.Empty(t, b.calls)
}

func TestJoin_ReplaysPrivatelyAndAnnounces(t *testing.T) {
	svc, _, b := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(10, 10))
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawMove, strokePayload(15, 15))
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawEnd, strokePayload(20, 20))

	require.NoError(t, svc.Join(ctx, "ABCD", "u2", "bob", "s2"))

	// Replay goes to u2 only, in chronological order.
	replays := b.byType("canvas-state")
	require.Len(t, replays, 1)
	assert.Equal(t, "user", replays[0].kind)
	assert.Equal(t, "u2", replays[0].target)

	payload := replays[0].payload.(map[string]interface{})
	drawings := payload["drawings"].([]model.DrawEvent)
	require.Len(t, drawings, 3)
	assert.Equal(t, model.EventDrawStart, drawings[0].Type)
	assert.Equal(t, model.EventDrawMove, drawings[1].Type)
	assert.Equal(t, model.EventDrawEnd, drawings[2].Type)
	require.NotNil(t, drawings[0].X)
	assert.Equal(t, 10.0, *drawings[0].X)
	assert.Equal(t, 20.0, *drawings[2].X)

	// Presence announcement excludes the joiner.
	joins := b.byType("user-joined-drawing")
	require.Len(t, joins, 1)
	assert.Equal(t, "others", joins[0].kind)
	assert.Equal(t, "u2", joins[0].target)
}

func TestJoin_EmptyRoomSendsNoReplay(t *testing.T) {
	svc, _, b := newTestService(t)

	require.NoError(t, svc.Join(context.Background(), "ABCD", "u1", "alice", "s1"))
	assert.Empty(t, b.byType("canvas-state"))
}

func TestRecordStroke_ExcludesSenderAndPersists(t *testing.T) {
	svc, canvas, b := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawMove, strokePayload(5, 5))

	moves := b.byType("draw-move")
	require.Len(t, moves, 1)
	assert.Equal(t, "others", moves[0].kind)
	assert.Equal(t, "u1", moves[0].target)

	ev := moves[0].payload.(*model.DrawEvent)
	assert.Equal(t, "u1", ev.UserID)
	assert.NotZero(t, ev.Timestamp)

	events, err := canvas.ReadAll(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDrawMove, events[0].Type)
}

func TestRecordStroke_EphemeralTypeNotPersisted(t *testing.T) {
	svc, canvas, b := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventChangeColor, model.StrokePayload{Color: "#ff0000"})

	changes := b.byType("change-color")
	require.Len(t, changes, 1)
	assert.Equal(t, "others", changes[0].kind)

	events, err := canvas.ReadAll(ctx, "ABCD")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventTypeDurability(t *testing.T) {
	durable := []model.EventType{
		model.EventDrawStart, model.EventDrawMove, model.EventDrawEnd, model.EventClearCanvas,
	}
	for _, typ := range durable {
		assert.True(t, typ.Durable(), string(typ))
	}

	ephemeral := []model.EventType{
		model.EventChangeColor, model.EventChangeSize, model.EventChangeTool,
	}
	for _, typ := range ephemeral {
		assert.False(t, typ.Durable(), string(typ))
	}
}

func TestClearCanvas_ReachesEveryoneAndLeavesMarker(t *testing.T) {
	svc, canvas, b := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(1, 1))
	svc.ClearCanvas(ctx, "ABCD", "u1", "alice")

	cleared := b.byType("canvas-cleared")
	require.Len(t, cleared, 1)
	// Whole-room broadcast, sender included.
	assert.Equal(t, "room", cleared[0].kind)

	events, err := canvas.ReadAll(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventClearCanvas, events[0].Type)
	assert.Equal(t, "alice", events[0].Username)
}

func TestToolChanges_EphemeralAndGated(t *testing.T) {
	svc, canvas, b := newTestService(t)
	ctx := context.Background()

	size := 4.0
	svc.ChangeColor("ABCD", "u1", "alice", "#ff0000")
	svc.ChangePenSize("ABCD", "u1", "alice", &size)
	svc.ChangeTool("ABCD", "u1", "alice", "eraser", "", &size)

	// Required field absent: silent no-op.
	svc.ChangeColor("ABCD", "u1", "alice", "")
	svc.ChangePenSize("ABCD", "u1", "alice", nil)
	svc.ChangeTool("ABCD", "u1", "alice", "", "", nil)

	assert.Len(t, b.byType("color-changed"), 1)
	assert.Len(t, b.byType("pen-size-changed"), 1)
	assert.Len(t, b.byType("tool-changed"), 1)
	for _, c := range b.calls {
		assert.Equal(t, "others", c.kind)
		assert.Equal(t, "u1", c.target)
	}

	// Never persisted.
	events, err := canvas.ReadAll(ctx, "ABCD")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClearCanvasForRoom_Idempotent(t *testing.T) {
	svc, canvas, b := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(1, 1))

	svc.ClearCanvasForRoom(ctx, "ABCD", "New round started")
	svc.ClearCanvasForRoom(ctx, "ABCD", "New round started")

	events, err := canvas.ReadAll(ctx, "ABCD")
	require.NoError(t, err)
	assert.Empty(t, events)

	cleared := b.byType("canvas-cleared")
	require.Len(t, cleared, 2)
	payload := cleared[0].payload.(map[string]interface{})
	assert.Equal(t, "New round started", payload["message"])
}

func TestLeave_CleansUpPresence(t *testing.T) {
	svc, _, b := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "ABCD", "u1", "alice", "s1"))
	require.NoError(t, svc.Join(ctx, "ABCD", "u2", "bob", "s2"))

	svc.Leave(ctx, "ABCD", "u1", "alice")

	users, err := svc.Users(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].UserID)

	left := b.byType("user-left-drawing")
	require.Len(t, left, 1)
	assert.Equal(t, "u1", left[0].target)

	// The remaining participant's state requests still work.
	svc.CanvasState(ctx, "ABCD", "u2")
	states := b.byType("canvas-state")
	require.NotEmpty(t, states)
	assert.Equal(t, "u2", states[len(states)-1].target)
}

func TestCurrentDrawer(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, ok := svc.CurrentDrawer("ABCD")
	assert.False(t, ok)

	svc.SetCurrentDrawer("ABCD", "u7")
	id, ok := svc.CurrentDrawer("ABCD")
	assert.True(t, ok)
	assert.Equal(t, "u7", id)
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(1, 1))
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawMove, strokePayload(2, 2))
	svc.RecordStroke(ctx, "ABCD", "u2", model.EventDrawMove, strokePayload(3, 3))
	svc.ClearCanvas(ctx, "ABCD", "u1", "alice")
	svc.RecordStroke(ctx, "ABCD", "u2", model.EventDrawStart, strokePayload(4, 4))

	stats, err := svc.Stats(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStrokes)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Equal(t, 1, stats.ClearEvents)
	assert.Equal(t, 2, stats.UniqueDrawers)
	require.NotNil(t, stats.FirstDrawing)
	require.NotNil(t, stats.LastDrawing)
	assert.LessOrEqual(t, *stats.FirstDrawing, *stats.LastDrawing)
}

func TestStoreOutage_DegradesToRelayOnly(t *testing.T) {
	svc, _, b, mr := newTestServiceWithRedis(t)
	ctx := context.Background()

	mr.Close()

	// Strokes still reach the rest of the room even though nothing can be
	// persisted.
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(10, 10))
	moves := b.byType("draw-start")
	require.Len(t, moves, 1)
	assert.Equal(t, "others", moves[0].kind)
	assert.Equal(t, "u1", moves[0].target)

	// Joining still succeeds: no replay (reads degrade to empty), but the
	// presence announcement goes out.
	require.NoError(t, svc.Join(ctx, "ABCD", "u2", "bob", "s2"))
	assert.Empty(t, b.byType("canvas-state"))
	joins := b.byType("user-joined-drawing")
	require.Len(t, joins, 1)
	assert.Equal(t, "u2", joins[0].target)

	// Leaving and clearing stay no-ops rather than errors.
	svc.Leave(ctx, "ABCD", "u2", "bob")
	assert.Len(t, b.byType("user-left-drawing"), 1)
	svc.ClearCanvas(ctx, "ABCD", "u1", "alice")
	assert.Len(t, b.byType("canvas-cleared"), 1)
}

func TestEndToEnd_LateJoinerReplay(t *testing.T) {
	svc, _, b := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "ABCD", "u1", "alice", "s1"))
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawStart, strokePayload(10, 10))
	svc.RecordStroke(ctx, "ABCD", "u1", model.EventDrawEnd, strokePayload(20, 20))

	require.NoError(t, svc.Join(ctx, "ABCD", "u2", "bob", "s2"))

	replays := b.byType("canvas-state")
	require.Len(t, replays, 1)
	assert.Equal(t, "u2", replays[0].target)

	drawings := replays[0].payload.(map[string]interface{})["drawings"].([]model.DrawEvent)
	require.Len(t, drawings, 2)
	assert.Equal(t, model.EventDrawStart, drawings[0].Type)
	require.NotNil(t, drawings[0].X)
	assert.Equal(t, 10.0, *drawings[0].X)
	assert.Equal(t, model.EventDrawEnd, drawings[1].Type)
	assert.Equal(t, 20.0, *drawings[1].X)

	// U1's own strokes were only ever broadcast with U1 excluded.
	for _, typ := range []string{"draw-start", "draw-end"} {
		calls := b.byType(typ)
		require.Len(t, calls, 1)
		assert.Equal(t, "others", calls[0].kind)
		assert.Equal(t, "u1", calls[0].target)
	}
}

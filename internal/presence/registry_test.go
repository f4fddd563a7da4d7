package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-core/internal/domain"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRegistry(rdb, zap.NewNop(), 30*time.Minute), mr
}

func TestRegisterConnection_FirstConnectionWinsTransition(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	assert.True(t, registry.RegisterConnection(ctx, 1, "conn-a"), "first connection goes online")
	assert.False(t, registry.RegisterConnection(ctx, 1, "conn-b"), "second connection is silent")
	assert.True(t, registry.IsOnline(ctx, 1))
}

func TestRegisterConnection_ReRegisterSameConnection(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	require.True(t, registry.RegisterConnection(ctx, 1, "conn-a"))
	assert.False(t, registry.RegisterConnection(ctx, 1, "conn-a"), "re-register is idempotent")
	assert.True(t, registry.IsOnline(ctx, 1))
}

func TestDeregisterConnection_LastConnectionOut(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	registry.RegisterConnection(ctx, 1, "conn-a")
	registry.RegisterConnection(ctx, 1, "conn-b")

	assert.False(t, registry.DeregisterConnection(ctx, 1, "conn-a"), "one connection remains")
	assert.True(t, registry.IsOnline(ctx, 1))

	assert.True(t, registry.DeregisterConnection(ctx, 1, "conn-b"), "last connection out")
	assert.False(t, registry.IsOnline(ctx, 1))
}

func TestDeregisterConnection_UnknownIsNoOp(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	assert.False(t, registry.DeregisterConnection(ctx, 1, "never-seen"))
}

func TestConnectionTTL_ExpiresUnobservedDisconnects(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := context.Background()

	var reaped []int64
	registry.NotifyReaped(func(userID int64) { reaped = append(reaped, userID) })

	registry.RegisterConnection(ctx, 1, "conn-a")

	mr.FastForward(31 * time.Minute)
	require.False(t, mr.Exists("presence:conns:1"))

	// The read notices the expired connection set, repairs the online entry
	// and reports the transition the missing disconnect never produced.
	assert.False(t, registry.IsOnline(ctx, 1), "user with zero live connections must read offline")
	assert.Equal(t, []int64{1}, reaped)

	assert.False(t, registry.IsOnline(ctx, 1))
	assert.Len(t, reaped, 1, "repair fires once")
}

func TestOnlineUsers_RepairsExpiredEntries(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := context.Background()

	var reaped []int64
	registry.NotifyReaped(func(userID int64) { reaped = append(reaped, userID) })

	registry.RegisterConnection(ctx, 1, "conn-a")
	mr.FastForward(31 * time.Minute)
	registry.RegisterConnection(ctx, 2, "conn-b")

	assert.Equal(t, []int64{2}, registry.OnlineUsers(ctx))
	assert.Equal(t, []int64{1}, reaped)
	assert.Equal(t, []int64{2}, registry.OnlineUsers(ctx))
	assert.Len(t, reaped, 1)
}

func TestConnectionTTL_TouchKeepsUserOnline(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := context.Background()

	registry.RegisterConnection(ctx, 1, "conn-a")
	mr.FastForward(20 * time.Minute)
	registry.Touch(ctx, 1)
	mr.FastForward(20 * time.Minute)

	assert.True(t, registry.IsOnline(ctx, 1))
}

func TestTouch_SlidesTTL(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := context.Background()

	registry.RegisterConnection(ctx, 1, "conn-a")
	mr.FastForward(20 * time.Minute)

	registry.Touch(ctx, 1)
	mr.FastForward(20 * time.Minute)

	assert.True(t, mr.Exists("presence:conns:1"), "touch reset the clock")
}

func TestReset_ClearsAllPresenceState(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := context.Background()

	registry.RegisterConnection(ctx, 1, "conn-a")
	registry.RegisterConnection(ctx, 2, "conn-b")

	require.NoError(t, registry.Reset(ctx))

	assert.False(t, registry.IsOnline(ctx, 1) && mr.Exists("presence:conns:1"))
	assert.Empty(t, registry.OnlineUsers(ctx))
}

func TestRegistry_FailsOpenWithoutStore(t *testing.T) {
	registry := NewRegistry(nil, zap.NewNop(), 0)
	ctx := context.Background()

	assert.False(t, registry.RegisterConnection(ctx, 1, "conn-a"), "no transitions without a store")
	assert.True(t, registry.IsOnline(ctx, 1), "reads fail open")
	assert.Equal(t, domain.StatusAway, registry.EffectiveStatus(ctx, 1, domain.StatusAway))
	assert.NoError(t, registry.Reset(ctx))
}

func TestOnlineUsers_ListsEveryOnlineUser(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	registry.RegisterConnection(ctx, 1, "conn-a")
	registry.RegisterConnection(ctx, 2, "conn-b")

	users := registry.OnlineUsers(ctx)
	assert.ElementsMatch(t, []int64{1, 2}, users)
}

func TestEffectiveStatus_OfflineUnlessConnected(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	assert.Equal(t, domain.StatusOffline, registry.EffectiveStatus(ctx, 1, domain.StatusAway))

	registry.RegisterConnection(ctx, 1, "conn-a")
	assert.Equal(t, domain.StatusAway, registry.EffectiveStatus(ctx, 1, domain.StatusAway))
	assert.Equal(t, domain.StatusOnline, registry.EffectiveStatus(ctx, 1, ""))
}

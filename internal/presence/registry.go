package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-core/internal/domain"
)

const (
	onlineSetKey = "presence:online"

	// DefaultConnectionTTL reaps connections whose disconnect was never
	// observed (network failure without a close frame).
	DefaultConnectionTTL = 30 * time.Minute
)

// deregisterScript removes one connection and, when it was the last, clears
// the connection set and the online entry in one atomic step, so a register
// racing in from another process cannot be wiped between the two writes.
// Returns 1 on the offline transition.
var deregisterScript = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[1])
if redis.call('SCARD', KEYS[1]) > 0 then
	return 0
end
redis.call('DEL', KEYS[1])
return redis.call('SREM', KEYS[2], ARGV[2])
`)

// livenessScript reads online-set membership and repairs the entry when the
// TTL already expired the connection set: a user is online iff live
// connections remain. Returns 0 offline, 1 online, 2 repaired just now.
var livenessScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
	return 0
end
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 1
end
redis.call('SREM', KEYS[2], ARGV[1])
return 2
`)

// reapScript drops the online entry only while the connection set is still
// gone; a registration landing in between wins. Returns 1 when reaped.
var reapScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.call('SREM', KEYS[2], ARGV[1])
end
return 0
`)

const (
	livenessOffline = 0
	livenessOnline  = 1
	livenessReaped  = 2
)

func connSetKey(userID int64) string {
	return fmt.Sprintf("presence:conns:%d", userID)
}

// Registry is the shared source of truth for "is this user reachable right
// now", across all server processes. Every operation degrades gracefully
// when the store is unreachable: presence is a liveness feature and must
// never fail a request.
type Registry struct {
	rdb     *redis.Client
	logger  *zap.Logger
	connTTL time.Duration
	onReap  func(userID int64)
}

func NewRegistry(rdb *redis.Client, logger *zap.Logger, connTTL time.Duration) *Registry {
	if connTTL <= 0 {
		connTTL = DefaultConnectionTTL
	}
	return &Registry{rdb: rdb, logger: logger, connTTL: connTTL}
}

// NotifyReaped registers a callback fired when a read discovers that every
// connection of an online user already expired and repairs the online set.
// The callback owns pushing the offline transition the missing disconnect
// never produced. Set once during wiring, before the registry serves reads.
func (r *Registry) NotifyReaped(fn func(userID int64)) {
	r.onReap = fn
}

// Reset clears the online set and all per-user connection sets. Called once
// on process start: the service does not drain connections on shutdown, so
// stale entries from a previous process must not linger. Reconnecting
// clients repopulate the registry.
func (r *Registry) Reset(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	if err := r.rdb.Del(ctx, onlineSetKey).Err(); err != nil {
		return fmt.Errorf("clear online set: %w", err)
	}
	iter := r.rdb.Scan(ctx, 0, "presence:conns:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("clear connection set: %w", err)
		}
	}
	return iter.Err()
}

// RegisterConnection adds a connection to the user's connection set and
// reports whether the user just transitioned to online. The transition check
// rides on the SADD return value of the global online set, which is atomic,
// so concurrent first connections elect exactly one winner.
func (r *Registry) RegisterConnection(ctx context.Context, userID int64, connID string) bool {
	if r.rdb == nil {
		return false
	}

	key := connSetKey(userID)
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, key, connID)
	pipe.Expire(ctx, key, r.connTTL)
	added := pipe.SAdd(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("presence register failed, continuing without presence",
			zap.Int64("userId", userID), zap.Error(err))
		return false
	}
	return added.Val() == 1
}

// DeregisterConnection removes a connection and reports whether the user just
// transitioned to offline (last-connection-out). Deregistering a connection
// that was never registered is a safe no-op.
func (r *Registry) DeregisterConnection(ctx context.Context, userID int64, connID string) bool {
	if r.rdb == nil {
		return false
	}

	removed, err := deregisterScript.Run(ctx, r.rdb,
		[]string{connSetKey(userID), onlineSetKey}, connID, userID).Int()
	if err != nil {
		r.logger.Warn("presence deregister failed",
			zap.Int64("userId", userID), zap.Error(err))
		return false
	}
	return removed == 1
}

// Touch refreshes the sliding TTL on the user's connection set. Called on
// inbound activity.
func (r *Registry) Touch(ctx context.Context, userID int64) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Expire(ctx, connSetKey(userID), r.connTTL).Err(); err != nil {
		r.logger.Warn("presence touch failed", zap.Int64("userId", userID), zap.Error(err))
	}
}

// IsOnline checks membership in the global online set against the user's live
// connections. An online entry whose connection set the TTL already expired
// is repaired here, so a crashed client stops reading online on the next
// lookup. Fails open: when the registry is unreachable the user is assumed
// reachable, so callers fall back to the preferred status instead of forcing
// everyone offline.
func (r *Registry) IsOnline(ctx context.Context, userID int64) bool {
	if r.rdb == nil {
		return true
	}
	state, err := livenessScript.Run(ctx, r.rdb,
		[]string{connSetKey(userID), onlineSetKey}, userID).Int()
	if err != nil {
		r.logger.Warn("presence read failed, assuming online",
			zap.Int64("userId", userID), zap.Error(err))
		return true
	}
	if state == livenessReaped {
		r.reaped(userID)
		return false
	}
	return state == livenessOnline
}

// EffectiveStatus derives the visible status. This is the only function
// callers should use to render status; the stored preferred status alone
// says nothing about reachability.
func (r *Registry) EffectiveStatus(ctx context.Context, userID int64, preferred domain.PresenceStatus) domain.PresenceStatus {
	if !r.IsOnline(ctx, userID) {
		return domain.StatusOffline
	}
	if preferred == "" {
		return domain.StatusOnline
	}
	return preferred
}

// OnlineUsers returns the global online set, repairing entries whose
// connection sets the TTL already expired. Empty on registry failure.
func (r *Registry) OnlineUsers(ctx context.Context) []int64 {
	if r.rdb == nil {
		return nil
	}
	members, err := r.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		r.logger.Warn("online set read failed", zap.Error(err))
		return nil
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	pipe := r.rdb.Pipeline()
	checks := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		checks[i] = pipe.Exists(ctx, connSetKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("presence liveness check failed", zap.Error(err))
		return ids
	}

	users := make([]int64, 0, len(ids))
	for i, id := range ids {
		if checks[i].Val() > 0 {
			users = append(users, id)
			continue
		}
		reaped, err := reapScript.Run(ctx, r.rdb,
			[]string{connSetKey(id), onlineSetKey}, id).Int()
		if err != nil {
			r.logger.Warn("presence repair failed", zap.Int64("userId", id), zap.Error(err))
			continue
		}
		if reaped == 1 {
			r.reaped(id)
		}
	}
	return users
}

func (r *Registry) reaped(userID int64) {
	r.logger.Info("expired presence entry repaired", zap.Int64("userId", userID))
	if r.onReap != nil {
		r.onReap(userID)
	}
}

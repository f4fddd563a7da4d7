package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-core/internal/domain"
)

// Entry TTLs. Membership mutations invalidate the affected keys synchronously,
// so the TTLs only bound staleness for entries nobody thought to invalidate.
const (
	channelAccessTTL    = 5 * time.Minute
	userWorkspacesTTL   = 10 * time.Minute
	workspaceMembersTTL = 5 * time.Minute
	dmListTTL           = 2 * time.Minute
)

func channelAccessKey(userID, channelID int64) string {
	return fmt.Sprintf("channel_access:%d:%d", userID, channelID)
}

func userWorkspacesKey(userID int64) string {
	return fmt.Sprintf("user_workspaces:%d", userID)
}

func workspaceMembersKey(workspaceID int64) string {
	return fmt.Sprintf("workspace_members:%d", workspaceID)
}

func dmListKey(userID int64) string {
	return fmt.Sprintf("dms:user:%d", userID)
}

// AccessCache shields the membership store from a relational round trip on
// every message and join operation. It is delete-on-write: mutations drop
// keys rather than recompute them, and a nil or failing client degrades every
// read to a miss so authorization falls through to the store.
type AccessCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAccessCache(rdb *redis.Client, logger *zap.Logger) *AccessCache {
	return &AccessCache{rdb: rdb, logger: logger}
}

// GetChannelAccess returns (decision, hit).
func (c *AccessCache) GetChannelAccess(ctx context.Context, userID, channelID int64) (bool, bool) {
	val, ok := c.get(ctx, channelAccessKey(userID, channelID))
	if !ok {
		return false, false
	}
	return val == "1", true
}

// SetChannelAccess caches the decision. Negative results are cached too, so
// a non-member cannot force repeated store hits by retrying.
func (c *AccessCache) SetChannelAccess(ctx context.Context, userID, channelID int64, allowed bool) {
	val := "0"
	if allowed {
		val = "1"
	}
	c.set(ctx, channelAccessKey(userID, channelID), val, channelAccessTTL)
}

func (c *AccessCache) InvalidateChannelAccess(ctx context.Context, userID, channelID int64) {
	c.del(ctx, channelAccessKey(userID, channelID))
}

func (c *AccessCache) GetUserWorkspaces(ctx context.Context, userID int64) ([]int64, bool) {
	val, ok := c.get(ctx, userWorkspacesKey(userID))
	if !ok {
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		c.logger.Warn("corrupt user_workspaces entry, dropping",
			zap.Int64("userId", userID), zap.Error(err))
		c.del(ctx, userWorkspacesKey(userID))
		return nil, false
	}
	return ids, true
}

func (c *AccessCache) SetUserWorkspaces(ctx context.Context, userID int64, workspaceIDs []int64) {
	data, err := json.Marshal(workspaceIDs)
	if err != nil {
		return
	}
	c.set(ctx, userWorkspacesKey(userID), string(data), userWorkspacesTTL)
}

func (c *AccessCache) InvalidateUserWorkspaces(ctx context.Context, userID int64) {
	c.del(ctx, userWorkspacesKey(userID))
}

func (c *AccessCache) GetWorkspaceMembers(ctx context.Context, workspaceID int64) ([]domain.MemberSummary, bool) {
	val, ok := c.get(ctx, workspaceMembersKey(workspaceID))
	if !ok {
		return nil, false
	}
	var members []domain.MemberSummary
	if err := json.Unmarshal([]byte(val), &members); err != nil {
		c.logger.Warn("corrupt workspace_members entry, dropping",
			zap.Int64("workspaceId", workspaceID), zap.Error(err))
		c.del(ctx, workspaceMembersKey(workspaceID))
		return nil, false
	}
	return members, true
}

func (c *AccessCache) SetWorkspaceMembers(ctx context.Context, workspaceID int64, members []domain.MemberSummary) {
	data, err := json.Marshal(members)
	if err != nil {
		return
	}
	c.set(ctx, workspaceMembersKey(workspaceID), string(data), workspaceMembersTTL)
}

func (c *AccessCache) InvalidateWorkspaceMembers(ctx context.Context, workspaceID int64) {
	c.del(ctx, workspaceMembersKey(workspaceID))
}

// GetDMList unmarshals the cached conversation list into dest.
func (c *AccessCache) GetDMList(ctx context.Context, userID int64, dest any) bool {
	val, ok := c.get(ctx, dmListKey(userID))
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.del(ctx, dmListKey(userID))
		return false
	}
	return true
}

func (c *AccessCache) SetDMList(ctx context.Context, userID int64, list any) {
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	c.set(ctx, dmListKey(userID), string(data), dmListTTL)
}

func (c *AccessCache) InvalidateDMList(ctx context.Context, userID int64) {
	c.del(ctx, dmListKey(userID))
}

func (c *AccessCache) get(ctx context.Context, key string) (string, bool) {
	if c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("cache read failed, falling through to store",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

func (c *AccessCache) set(ctx context.Context, key, val string, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *AccessCache) del(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

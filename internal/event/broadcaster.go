package event

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Topic names shared by the publisher and the hub's pub/sub bridge.

func ChannelTopic(channelID int64) string {
	return fmt.Sprintf("channel:%d", channelID)
}

func WorkspaceTopic(workspaceID int64) string {
	return fmt.Sprintf("workspace:%d", workspaceID)
}

func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Broadcaster fans events out to the connections subscribed to a channel,
// a workspace presence scope, or a single user, across all server processes.
// Delivery is at-most-once best-effort; callers never retry.
type Broadcaster interface {
	ToChannel(ctx context.Context, channelID int64, p Payload) error
	ToWorkspace(ctx context.Context, workspaceID int64, p Payload) error
	ToUser(ctx context.Context, userID int64, p Payload) error
}

// RedisBroadcaster publishes encoded events over Redis pub/sub. Per-topic
// publish order is preserved by Redis, which keeps broadcast order equal to
// commit order for a single channel.
type RedisBroadcaster struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisBroadcaster(rdb *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, logger: logger}
}

func (b *RedisBroadcaster) ToChannel(ctx context.Context, channelID int64, p Payload) error {
	return b.publish(ctx, ChannelTopic(channelID), p)
}

func (b *RedisBroadcaster) ToWorkspace(ctx context.Context, workspaceID int64, p Payload) error {
	return b.publish(ctx, WorkspaceTopic(workspaceID), p)
}

func (b *RedisBroadcaster) ToUser(ctx context.Context, userID int64, p Payload) error {
	return b.publish(ctx, UserTopic(userID), p)
}

func (b *RedisBroadcaster) publish(ctx context.Context, topic string, p Payload) error {
	if b.rdb == nil {
		return fmt.Errorf("broadcast transport not available")
	}
	raw, err := Encode(p)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

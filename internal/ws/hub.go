package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub tracks which local connections are subscribed to which broadcast
// groups and bridges each group to its Redis pub/sub topic, so events
// published by any server process reach the local subscribers. Group names
// are the pub/sub topic names.
type Hub struct {
	rdb    *redis.Client
	logger *zap.Logger

	mu      sync.RWMutex
	groups  map[string]map[*Client]bool
	bridges map[string]*redis.PubSub
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		rdb:     rdb,
		logger:  logger,
		groups:  make(map[string]map[*Client]bool),
		bridges: make(map[string]*redis.PubSub),
	}
}

// Subscribe adds the client to a group, opening the Redis bridge when it is
// the group's first local subscriber.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	if h.groups[topic] == nil {
		h.groups[topic] = make(map[*Client]bool)
	}
	h.groups[topic][client] = true
	client.trackTopic(topic)
	needBridge := h.rdb != nil && h.bridges[topic] == nil
	h.mu.Unlock()

	if needBridge {
		h.openBridge(topic)
	}
}

// Unsubscribe removes the client from a group, closing the Redis bridge when
// no local subscriber remains.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, topic)
	client.untrackTopic(topic)
}

// Remove drops the client from every group it joined. Called once on
// disconnect; a connection's subscriptions never outlive it.
func (h *Hub) Remove(client *Client) {
	topics := client.topicList()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		h.unsubscribeLocked(client, topic)
		client.untrackTopic(topic)
	}
}

func (h *Hub) unsubscribeLocked(client *Client, topic string) {
	clients, ok := h.groups[topic]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.groups, topic)
		if bridge, ok := h.bridges[topic]; ok {
			delete(h.bridges, topic)
			if err := bridge.Close(); err != nil {
				h.logger.Warn("bridge close failed", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
}

// openBridge subscribes the process to the group's Redis topic and pumps
// every received payload to the local subscribers. The network subscribe runs
// outside the hub lock so a slow round trip cannot stall subscribe or
// fan-out; on re-lock a losing racer, or a bridge whose group already
// emptied, closes its subscription instead of registering it.
func (h *Hub) openBridge(topic string) {
	bridge := h.rdb.Subscribe(context.Background(), topic)

	h.mu.Lock()
	_, duplicate := h.bridges[topic]
	stale := h.groups[topic] == nil
	if !duplicate && !stale {
		h.bridges[topic] = bridge
	}
	h.mu.Unlock()

	if duplicate || stale {
		if err := bridge.Close(); err != nil {
			h.logger.Warn("bridge close failed", zap.String("topic", topic), zap.Error(err))
		}
		return
	}

	go func() {
		for msg := range bridge.Channel() {
			h.fanOut(topic, []byte(msg.Payload))
		}
	}()
}

// fanOut delivers a payload to every local subscriber of the group. Slow
// consumers are dropped rather than allowed to stall the group; delivery is
// at-most-once.
func (h *Hub) fanOut(topic string, payload []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[topic]))
	for client := range h.groups[topic] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping event for slow connection",
				zap.String("topic", topic),
				zap.String("connectionId", client.ID),
				zap.Int64("userId", client.UserID))
		}
	}
}

// LocalSubscribers reports the number of local connections in a group.
func (h *Hub) LocalSubscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[topic])
}

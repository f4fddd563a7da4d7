package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-core/internal/event"
	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 64
)

// Session operations accepted from a connection.
const (
	opJoinWorkspace = "JOIN_WORKSPACE"
	opJoinChannel   = "JOIN_CHANNEL"
	opLeaveChannel  = "LEAVE_CHANNEL"
	opSendMessage   = "SEND_MESSAGE"
	opTyping        = "TYPING"
)

type request struct {
	Op            string  `json:"op"`
	WorkspaceID   int64   `json:"workspaceId,omitempty"`
	ChannelID     int64   `json:"channelId,omitempty"`
	Content       string  `json:"content,omitempty"`
	AttachmentIDs []int64 `json:"attachmentIds,omitempty"`
	IsTyping      bool    `json:"isTyping,omitempty"`
}

type errorReply struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ChannelID int64  `json:"channelId,omitempty"`
}

// Client is one live connection: a user can hold several at once, each with
// its own identifier and subscription set.
type Client struct {
	ID     string
	UserID int64

	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	presence *service.PresenceService
	access   *service.AccessService
	messages *service.MessageService
	logger   *zap.Logger

	mu     sync.Mutex
	topics map[string]bool

	closeOnce sync.Once
}

func newClient(
	id string,
	userID int64,
	hub *Hub,
	conn *websocket.Conn,
	presence *service.PresenceService,
	access *service.AccessService,
	messages *service.MessageService,
	logger *zap.Logger,
) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		presence: presence,
		access:   access,
		messages: messages,
		logger:   logger.With(zap.String("connectionId", id), zap.Int64("userId", userID)),
		topics:   make(map[string]bool),
	}
}

func (c *Client) trackTopic(topic string) {
	c.mu.Lock()
	c.topics[topic] = true
	c.mu.Unlock()
}

func (c *Client) untrackTopic(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *Client) topicList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

// readPump owns the inbound side of the connection. Session operations run on
// a background context: a drop mid-operation must not roll back a message
// that already committed.
func (c *Client) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		c.presence.Touch(context.Background(), c.UserID)

		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.logger.Debug("malformed frame", zap.Error(err))
			continue
		}
		c.handle(context.Background(), req)
	}
}

// writePump owns the outbound side: hub deliveries, error replies and pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// shutdown runs exactly once, whichever pump exits first.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.hub.Remove(c)
		c.conn.Close()
		close(c.send)

		c.presence.HandleDisconnect(context.Background(), c.UserID, c.ID)
		middleware.RecordWebSocketDisconnection()
	})
}

func (c *Client) handle(ctx context.Context, req request) {
	switch req.Op {
	case opJoinWorkspace:
		c.handleJoinWorkspace(ctx, req.WorkspaceID)
	case opJoinChannel:
		c.handleJoinChannel(ctx, req.ChannelID)
	case opLeaveChannel:
		c.hub.Unsubscribe(c, event.ChannelTopic(req.ChannelID))
	case opSendMessage:
		c.handleSendMessage(ctx, req)
	case opTyping:
		c.handleTyping(ctx, req)
	default:
		c.logger.Debug("unknown op", zap.String("op", req.Op))
	}
}

// handleJoinWorkspace subscribes the connection to a workspace's event group.
// The subscription is advisory (events there carry no message content), so a
// failed membership check is dropped without a reply.
func (c *Client) handleJoinWorkspace(ctx context.Context, workspaceID int64) {
	isMember, err := c.access.IsWorkspaceMember(ctx, c.UserID, workspaceID)
	if err != nil {
		c.logger.Warn("workspace join check failed", zap.Int64("workspaceId", workspaceID), zap.Error(err))
		return
	}
	if !isMember {
		c.logger.Debug("workspace join rejected", zap.Int64("workspaceId", workspaceID))
		return
	}
	c.hub.Subscribe(c, event.WorkspaceTopic(workspaceID))
}

// handleJoinChannel subscribes the connection to a channel's message group.
// Rejections are explicit so the client UI can surface them.
func (c *Client) handleJoinChannel(ctx context.Context, channelID int64) {
	allowed, err := c.access.IsUserInChannel(ctx, c.UserID, channelID)
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			c.reply(errorReply{Type: "ERROR", Code: "CHANNEL_NOT_FOUND", Message: "channel does not exist", ChannelID: channelID})
			return
		}
		c.logger.Warn("channel join check failed", zap.Int64("channelId", channelID), zap.Error(err))
		return
	}
	if !allowed {
		c.reply(errorReply{Type: "ERROR", Code: "JOIN_REJECTED", Message: "not a member of this channel", ChannelID: channelID})
		return
	}
	c.hub.Subscribe(c, event.ChannelTopic(channelID))
}

func (c *Client) handleSendMessage(ctx context.Context, req request) {
	_, err := c.messages.SendMessage(ctx, c.UserID, req.ChannelID, req.Content, req.AttachmentIDs)
	if err == nil {
		middleware.RecordMessageSent()
		return
	}

	switch {
	case errors.Is(err, service.ErrNotChannelMember):
		// Silently dropped: an explicit rejection would confirm the channel
		// exists to someone not allowed to see it.
		c.logger.Debug("unauthorized send dropped", zap.Int64("channelId", req.ChannelID))
	case errors.Is(err, service.ErrNoSharedWorkspace):
		c.reply(errorReply{Type: "ERROR", Code: "NO_SHARED_WORKSPACE", Message: "you no longer share a workspace with this user", ChannelID: req.ChannelID})
	case errors.Is(err, service.ErrChannelNotFound):
		c.reply(errorReply{Type: "ERROR", Code: "CHANNEL_NOT_FOUND", Message: "channel does not exist", ChannelID: req.ChannelID})
	case errors.Is(err, service.ErrAttachmentNotFound):
		c.reply(errorReply{Type: "ERROR", Code: "ATTACHMENT_NOT_FOUND", Message: "attachment missing or already claimed", ChannelID: req.ChannelID})
	default:
		c.logger.Error("send failed", zap.Int64("channelId", req.ChannelID), zap.Error(err))
		c.reply(errorReply{Type: "ERROR", Code: "SEND_FAILED", Message: "message could not be sent", ChannelID: req.ChannelID})
	}
}

// handleTyping only relays for channels this connection has joined; joining
// already proved membership, so no second authorization round-trip.
func (c *Client) handleTyping(ctx context.Context, req request) {
	if !c.subscribed(event.ChannelTopic(req.ChannelID)) {
		return
	}
	c.messages.Typing(ctx, c.UserID, req.ChannelID, req.IsTyping)
}

func (c *Client) reply(r errorReply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("dropping error reply for slow connection")
	}
}

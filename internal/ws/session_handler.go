package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-core/internal/event"
	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin through the gateway; the token
	// check below is the actual gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionHandler upgrades HTTP requests to chat sessions and owns the
// connect-side lifecycle.
type SessionHandler struct {
	hub       *Hub
	validator middleware.TokenValidator
	presence  *service.PresenceService
	access    *service.AccessService
	messages  *service.MessageService
	logger    *zap.Logger
}

func NewSessionHandler(
	hub *Hub,
	validator middleware.TokenValidator,
	presenceSvc *service.PresenceService,
	access *service.AccessService,
	messages *service.MessageService,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		hub:       hub,
		validator: validator,
		presence:  presenceSvc,
		access:    access,
		messages:  messages,
		logger:    logger,
	}
}

// Handle authenticates the token query parameter, upgrades the connection and
// starts the pumps. The browser WebSocket API cannot set headers, hence the
// query parameter.
func (h *SessionHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := h.validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Int64("userId", userID), zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), userID, h.hub, conn, h.presence, h.access, h.messages, h.logger)

	// Every connection receives its user's out-of-band pushes; no join needed.
	h.hub.Subscribe(client, event.UserTopic(userID))

	h.presence.HandleConnect(context.Background(), userID, client.ID)
	middleware.RecordWebSocketConnection()

	h.logger.Info("session established",
		zap.String("connectionId", client.ID), zap.Int64("userId", userID))

	go client.writePump()
	go client.readPump()
}

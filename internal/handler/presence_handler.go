package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/domain"
	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

type PresenceHandler struct {
	presence *service.PresenceService
	access   *service.AccessService
}

func NewPresenceHandler(presenceSvc *service.PresenceService, access *service.AccessService) *PresenceHandler {
	return &PresenceHandler{presence: presenceSvc, access: access}
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ONLINE AWAY"`
}

// OnlineUsers lists the workspace members currently online.
func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := strconv.ParseInt(c.Param("workspaceId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid workspace ID"})
		return
	}

	isMember, err := h.access.IsWorkspaceMember(c.Request.Context(), userID, workspaceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a workspace member"})
		return
	}

	users, err := h.presence.OnlineUsersInWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userIds": users})
}

// UserStatus returns a user's effective presence status.
func (h *PresenceHandler) UserStatus(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	status := h.presence.EffectiveStatus(c.Request.Context(), targetID)
	c.JSON(http.StatusOK, gin.H{"userId": targetID, "status": status})
}

// SetStatus stores the caller's preferred status.
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.presence.SetPreferredStatus(c.Request.Context(), userID, domain.PresenceStatus(req.Status)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

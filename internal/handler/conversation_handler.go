package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

type ConversationHandler struct {
	conversations *service.ConversationService
}

func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type StartDirectRequest struct {
	TargetUserID int64  `json:"targetUserId" binding:"required"`
	WorkspaceID  *int64 `json:"workspaceId"`
}

type CreateGroupRequest struct {
	MemberIDs []int64 `json:"memberIds" binding:"required,min=2,max=8"`
	Name      string  `json:"name"`
}

type GroupMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// StartDirect opens (or reuses) the direct conversation with another user.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req StartDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.conversations.StartDirectMessage(c.Request.Context(), userID, req.TargetUserID, req.WorkspaceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	middleware.RecordConversationCreated()
	c.JSON(http.StatusOK, view)
}

func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conversations, err := h.conversations.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.conversations.CreateGroupDM(c.Request.Context(), userID, req.MemberIDs, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	middleware.RecordConversationCreated()
	c.JSON(http.StatusCreated, channel)
}

func (h *ConversationHandler) AddGroupMember(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}

	var req GroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.conversations.AddGroupMember(c.Request.Context(), userID, channelID, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"channelId": channelID, "userId": req.UserID})
}

// LeaveGroup removes the caller from a group conversation.
func (h *ConversationHandler) LeaveGroup(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}

	if err := h.conversations.RemoveGroupMember(c.Request.Context(), userID, channelID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

type ChannelHandler struct {
	channels *service.ChannelService
}

func NewChannelHandler(channels *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

type CreateChannelRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	IsPrivate bool   `json:"isPrivate"`
}

type ChannelMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.channels.CreateChannel(c.Request.Context(), workspaceID, userID, req.Name, req.IsPrivate)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, channel)
}

func (h *ChannelHandler) AddMember(c *gin.Context) {
	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}

	var req ChannelMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.channels.AddMember(c.Request.Context(), channelID, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"channelId": channelID, "userId": req.UserID})
}

func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}
	memberID, err := parseID(c, "userId")
	if err != nil {
		return
	}

	if err := h.channels.RemoveMember(c.Request.Context(), channelID, memberID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}

	if err := h.channels.DeleteChannel(c.Request.Context(), channelID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

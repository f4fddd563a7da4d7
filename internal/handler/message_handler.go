package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-core/internal/domain"
	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type UploadAttachmentRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	FileURL     string `json:"fileUrl" binding:"required"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// GetMessages pages a channel's history. With ?after=<RFC3339> it returns
// messages newer than that instant oldest-first, which is what reconnecting
// clients use to catch up; otherwise newest-first with limit/offset.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	channelID, err := parseID(c, "channelId")
	if err != nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if afterStr := c.Query("after"); afterStr != "" {
		after, err := time.Parse(time.RFC3339, afterStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after timestamp"})
			return
		}

		messages, err := h.messages.GetMessagesAfter(c.Request.Context(), userID, channelID, after, limit)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	messages, err := h.messages.GetMessages(c.Request.Context(), userID, channelID, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UploadAttachment registers attachment metadata ahead of the message that
// will reference it. The file bytes live in external storage; only the
// pointer is recorded here.
func (h *MessageHandler) UploadAttachment(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req UploadAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attachment := &domain.Attachment{
		UploadedBy:  userID,
		FileName:    req.FileName,
		FileURL:     req.FileURL,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
	}
	if err := h.messages.UploadAttachment(c.Request.Context(), attachment); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

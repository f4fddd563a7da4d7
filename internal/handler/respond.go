package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/service"
)

// respondServiceError maps service sentinels to HTTP statuses. Unknown errors
// become opaque 500s; the request logger has the detail.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkspaceNotFound),
		errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, service.ErrAttachmentNotFound),
		errors.Is(err, service.ErrInvitationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotWorkspaceMember),
		errors.Is(err, service.ErrNotChannelMember),
		errors.Is(err, service.ErrNoSharedWorkspace):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateMember),
		errors.Is(err, service.ErrDuplicateInvitation),
		errors.Is(err, service.ErrOwnerMustTransfer):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGroupTooLarge),
		errors.Is(err, service.ErrGroupTooSmall),
		errors.Is(err, service.ErrNotGroupChannel),
		errors.Is(err, service.ErrSelfConversation),
		errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

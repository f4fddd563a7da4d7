package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/middleware"
	"chat-core/internal/service"
)

type WorkspaceHandler struct {
	workspaces *service.WorkspaceService
	access     *service.AccessService
}

func NewWorkspaceHandler(workspaces *service.WorkspaceService, access *service.AccessService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces, access: access}
}

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

type AddMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

type TransferOwnershipRequest struct {
	ToUserID int64 `json:"toUserId" binding:"required"`
}

type InviteMemberRequest struct {
	InviteeID int64 `json:"inviteeId" binding:"required"`
}

func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspace, err := h.workspaces.CreateWorkspace(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workspace)
}

func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
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

	members, err := h.access.ListWorkspaceMembers(c.Request.Context(), workspaceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.workspaces.AddMember(c.Request.Context(), workspaceID, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"workspaceId": workspaceID, "userId": req.UserID})
}

func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}
	memberID, err := parseID(c, "userId")
	if err != nil {
		return
	}

	if err := h.workspaces.RemoveMember(c.Request.Context(), workspaceID, memberID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) TransferOwnership(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	var req TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.workspaces.TransferOwnership(c.Request.Context(), workspaceID, userID, req.ToUserID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ownerId": req.ToUserID})
}

func (h *WorkspaceHandler) InviteMember(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitation, err := h.workspaces.InviteMember(c.Request.Context(), workspaceID, userID, req.InviteeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (h *WorkspaceHandler) AcceptInvitation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	if err := h.workspaces.AcceptInvitation(c.Request.Context(), workspaceID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaceId": workspaceID, "userId": userID})
}

func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	workspaceID, err := parseID(c, "workspaceId")
	if err != nil {
		return
	}

	if err := h.workspaces.DeleteWorkspace(c.Request.Context(), workspaceID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// parseID reads a numeric path parameter, writing the 400 itself on failure.
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, err
	}
	return id, nil
}

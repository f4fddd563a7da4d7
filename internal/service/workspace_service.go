package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-core/internal/cache"
	"chat-core/internal/domain"
	"chat-core/internal/event"
	"chat-core/internal/repository"
)

// WorkspaceService owns membership-mutating operations on workspaces. Every
// mutation invalidates the affected cache keys before reporting success, so
// the next authorization read is consistent with the store.
type WorkspaceService struct {
	workspaces  repository.WorkspaceRepository
	cache       *cache.AccessCache
	broadcaster event.Broadcaster
	logger      *zap.Logger
}

func NewWorkspaceService(
	workspaces repository.WorkspaceRepository,
	accessCache *cache.AccessCache,
	broadcaster event.Broadcaster,
	logger *zap.Logger,
) *WorkspaceService {
	return &WorkspaceService{
		workspaces:  workspaces,
		cache:       accessCache,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *WorkspaceService) CreateWorkspace(ctx context.Context, ownerID int64, name string) (*domain.Workspace, error) {
	workspace := &domain.Workspace{OwnerID: ownerID, Name: name}
	if err := s.workspaces.CreateWorkspace(workspace); err != nil {
		return nil, err
	}
	s.cache.InvalidateUserWorkspaces(ctx, ownerID)
	return workspace, nil
}

func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, userID int64) error {
	if _, err := s.workspaces.GetWorkspace(workspaceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceNotFound
		}
		return err
	}

	member := &domain.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        domain.RoleMember,
	}
	if err := s.workspaces.AddMember(member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMember
		}
		return err
	}

	s.cache.InvalidateUserWorkspaces(ctx, userID)
	s.cache.InvalidateWorkspaceMembers(ctx, workspaceID)
	return nil
}

// RemoveMember drops a user from a workspace. The owner cannot be removed;
// ownership must be transferred first, so the workspace always keeps exactly
// one owner. Channel-access entries for the user in this workspace's
// channels are left to expire by TTL: they re-derive from workspace
// membership on the next miss.
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID int64) error {
	member, err := s.workspaces.GetMember(workspaceID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotWorkspaceMember
		}
		return err
	}
	if member.Role == domain.RoleOwner {
		return ErrOwnerMustTransfer
	}

	if err := s.workspaces.RemoveMember(workspaceID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotWorkspaceMember
		}
		return err
	}

	s.cache.InvalidateUserWorkspaces(ctx, userID)
	s.cache.InvalidateWorkspaceMembers(ctx, workspaceID)
	s.cache.InvalidateDMList(ctx, userID)

	s.notifyRemoved(ctx, userID, workspaceID)
	return nil
}

func (s *WorkspaceService) TransferOwnership(ctx context.Context, workspaceID, fromUserID, toUserID int64) error {
	if err := s.workspaces.TransferOwnership(workspaceID, fromUserID, toUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotWorkspaceMember
		}
		return err
	}
	s.cache.InvalidateWorkspaceMembers(ctx, workspaceID)
	return nil
}

// InviteMember creates a pending invitation. Duplicate pending invites are
// rejected by the store's unique constraint rather than a check-then-insert
// race.
func (s *WorkspaceService) InviteMember(ctx context.Context, workspaceID, inviterID, inviteeID int64) (*domain.WorkspaceInvitation, error) {
	isMember, err := s.workspaces.IsMember(workspaceID, inviterID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	alreadyMember, err := s.workspaces.IsMember(workspaceID, inviteeID)
	if err != nil {
		return nil, err
	}
	if alreadyMember {
		return nil, ErrDuplicateMember
	}

	invitation := &domain.WorkspaceInvitation{
		WorkspaceID: workspaceID,
		InviteeID:   inviteeID,
		InvitedBy:   inviterID,
	}
	if err := s.workspaces.CreateInvitation(invitation); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateInvitation
		}
		return nil, err
	}
	return invitation, nil
}

func (s *WorkspaceService) AcceptInvitation(ctx context.Context, workspaceID, inviteeID int64) error {
	if err := s.workspaces.AcceptInvitation(workspaceID, inviteeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMember
		}
		return err
	}

	s.cache.InvalidateUserWorkspaces(ctx, inviteeID)
	s.cache.InvalidateWorkspaceMembers(ctx, workspaceID)
	return nil
}

// DeleteWorkspace cascades the store delete, then invalidates every former
// member's workspace entry and pushes a removal notice. A user must never be
// shown as having access to a workspace that no longer exists.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, workspaceID int64) error {
	memberIDs, err := s.workspaces.DeleteWorkspace(workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceNotFound
		}
		return err
	}

	s.cache.InvalidateWorkspaceMembers(ctx, workspaceID)
	for _, userID := range memberIDs {
		s.cache.InvalidateUserWorkspaces(ctx, userID)
		s.cache.InvalidateDMList(ctx, userID)
		s.notifyRemoved(ctx, userID, workspaceID)
	}
	return nil
}

// notifyRemoved is the out-of-band user push; best-effort.
func (s *WorkspaceService) notifyRemoved(ctx context.Context, userID, workspaceID int64) {
	payload := event.RemovedFromWorkspace{WorkspaceID: workspaceID}
	if err := s.broadcaster.ToUser(ctx, userID, payload); err != nil {
		s.logger.Warn("removal notice push failed",
			zap.Int64("userId", userID),
			zap.Int64("workspaceId", workspaceID),
			zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-core/internal/cache"
	"chat-core/internal/domain"
	"chat-core/internal/repository"
)

// ChannelService owns workspace channel lifecycle and channel membership
// mutations, including their cache-invalidation obligations.
type ChannelService struct {
	channels   repository.ChannelRepository
	workspaces repository.WorkspaceRepository
	cache      *cache.AccessCache
	logger     *zap.Logger
}

func NewChannelService(
	channels repository.ChannelRepository,
	workspaces repository.WorkspaceRepository,
	accessCache *cache.AccessCache,
	logger *zap.Logger,
) *ChannelService {
	return &ChannelService{
		channels:   channels,
		workspaces: workspaces,
		cache:      accessCache,
		logger:     logger,
	}
}

// CreateChannel creates a workspace-scoped channel. Public channels need no
// membership rows (workspace membership is the authorization boundary);
// private channels start with the creator as their only member.
func (s *ChannelService) CreateChannel(ctx context.Context, workspaceID, creatorID int64, name string, isPrivate bool) (*domain.Channel, error) {
	isMember, err := s.workspaces.IsMember(workspaceID, creatorID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	channelType := domain.ChannelPublic
	if isPrivate {
		channelType = domain.ChannelPrivate
	}

	channel := &domain.Channel{
		WorkspaceID: &workspaceID,
		Name:        name,
		Type:        channelType,
		IsPrivate:   isPrivate,
		CreatedBy:   creatorID,
	}

	var memberIDs []int64
	if isPrivate {
		memberIDs = []int64{creatorID}
	}
	if err := s.channels.CreateChannelWithMembers(channel, memberIDs); err != nil {
		return nil, err
	}
	return channel, nil
}

// AddMember adds a channel membership row and invalidates that user's access
// entry before returning.
func (s *ChannelService) AddMember(ctx context.Context, channelID, userID int64) error {
	channel, err := s.channels.GetChannel(channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChannelNotFound
	}
	if err != nil {
		return err
	}

	if channel.WorkspaceID != nil {
		isMember, err := s.workspaces.IsMember(*channel.WorkspaceID, userID)
		if err != nil {
			return err
		}
		if !isMember {
			return ErrNotWorkspaceMember
		}
	}

	if err := s.channels.AddMember(channelID, userID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMember
		}
		return err
	}

	s.cache.InvalidateChannelAccess(ctx, userID, channelID)
	return nil
}

// RemoveMember drops a channel membership row and invalidates the access
// entry, so a revoked user cannot ride a stale positive decision.
func (s *ChannelService) RemoveMember(ctx context.Context, channelID, userID int64) error {
	if err := s.channels.RemoveMember(channelID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotChannelMember
		}
		return err
	}

	s.cache.InvalidateChannelAccess(ctx, userID, channelID)
	return nil
}

// DeleteChannel removes a workspace channel with its messages and membership
// rows, invalidating access entries for every former member.
func (s *ChannelService) DeleteChannel(ctx context.Context, channelID int64) error {
	if _, err := s.channels.GetChannel(channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}

	memberIDs, err := s.channels.MemberIDs(channelID)
	if err != nil {
		return err
	}

	if err := s.channels.DeleteChannel(channelID); err != nil {
		return err
	}

	for _, userID := range memberIDs {
		s.cache.InvalidateChannelAccess(ctx, userID, channelID)
	}
	return nil
}

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

// AccessService answers "may this user see this channel / which workspaces is
// this user in", caching decisions in front of the membership store. The
// store stays the only strongly consistent truth; cached answers are at most
// one TTL stale and mutations invalidate forward.
type AccessService struct {
	cache      *cache.AccessCache
	channels   repository.ChannelRepository
	workspaces repository.WorkspaceRepository
	logger     *zap.Logger
}

func NewAccessService(
	accessCache *cache.AccessCache,
	channels repository.ChannelRepository,
	workspaces repository.WorkspaceRepository,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		cache:      accessCache,
		channels:   channels,
		workspaces: workspaces,
		logger:     logger,
	}
}

// IsUserInChannel decides channel access. Workspace-scoped public channels
// are gated by workspace membership; private and global (direct/group)
// channels by channel membership. Both outcomes are cached.
func (s *AccessService) IsUserInChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	if allowed, hit := s.cache.GetChannelAccess(ctx, userID, channelID); hit {
		return allowed, nil
	}

	allowed, err := s.computeChannelAccess(userID, channelID)
	if err != nil {
		return false, err
	}

	s.cache.SetChannelAccess(ctx, userID, channelID, allowed)
	return allowed, nil
}

func (s *AccessService) computeChannelAccess(userID, channelID int64) (bool, error) {
	channel, err := s.channels.GetChannel(channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrChannelNotFound
	}
	if err != nil {
		return false, err
	}

	if channel.WorkspaceID != nil {
		isMember, err := s.workspaces.IsMember(*channel.WorkspaceID, userID)
		if err != nil {
			return false, err
		}
		if !isMember {
			return false, nil
		}
		if !channel.IsPrivate {
			return true, nil
		}
	}

	return s.channels.IsMember(channelID, userID)
}

// IsWorkspaceMember checks membership through the user_workspaces cache.
func (s *AccessService) IsWorkspaceMember(ctx context.Context, userID, workspaceID int64) (bool, error) {
	ids, err := s.ListWorkspaceIDsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == workspaceID {
			return true, nil
		}
	}
	return false, nil
}

// ListWorkspaceIDsForUser returns the user's workspaces, cached. Used for
// presence fan-out scoping and conversation eligibility.
func (s *AccessService) ListWorkspaceIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if ids, hit := s.cache.GetUserWorkspaces(ctx, userID); hit {
		return ids, nil
	}

	ids, err := s.workspaces.ListWorkspaceIDsForUser(userID)
	if err != nil {
		return nil, err
	}

	s.cache.SetUserWorkspaces(ctx, userID, ids)
	return ids, nil
}

// ListWorkspaceMembers serves membership listings, cached. Not on the
// dispatch path.
func (s *AccessService) ListWorkspaceMembers(ctx context.Context, workspaceID int64) ([]domain.MemberSummary, error) {
	if members, hit := s.cache.GetWorkspaceMembers(ctx, workspaceID); hit {
		return members, nil
	}

	rows, err := s.workspaces.ListMembers(workspaceID)
	if err != nil {
		return nil, err
	}

	members := make([]domain.MemberSummary, len(rows))
	for i, row := range rows {
		members[i] = domain.MemberSummary{
			UserID:   row.UserID,
			Role:     row.Role,
			Position: row.Position,
			JoinedAt: row.JoinedAt,
		}
	}

	s.cache.SetWorkspaceMembers(ctx, workspaceID, members)
	return members, nil
}

package service

import (
	"context"

	"go.uber.org/zap"

	"chat-core/internal/domain"
	"chat-core/internal/event"
	"chat-core/internal/middleware"
	"chat-core/internal/presence"
	"chat-core/internal/repository"
)

// PresenceService ties connection lifecycle to the shared registry and fans
// status transitions out to the user's workspaces.
type PresenceService struct {
	registry    *presence.Registry
	statuses    repository.StatusRepository
	access      *AccessService
	broadcaster event.Broadcaster
	logger      *zap.Logger
}

func NewPresenceService(
	registry *presence.Registry,
	statuses repository.StatusRepository,
	access *AccessService,
	broadcaster event.Broadcaster,
	logger *zap.Logger,
) *PresenceService {
	s := &PresenceService{
		registry:    registry,
		statuses:    statuses,
		access:      access,
		broadcaster: broadcaster,
		logger:      logger,
	}
	// A TTL-reaped connection never produced a disconnect; when a read
	// repairs the registry, push the offline transition it missed.
	registry.NotifyReaped(func(userID int64) {
		middleware.RecordPresenceTransition("offline")
		s.broadcastStatus(context.Background(), userID, domain.StatusOffline)
	})
	return s
}

// HandleConnect registers a connection. Only the first connection of a user
// with no prior connections emits an online broadcast; additional tabs or
// devices are silent.
func (s *PresenceService) HandleConnect(ctx context.Context, userID int64, connID string) {
	wentOnline := s.registry.RegisterConnection(ctx, userID, connID)
	if !wentOnline {
		return
	}
	middleware.RecordPresenceTransition("online")
	s.broadcastStatus(ctx, userID, s.EffectiveStatus(ctx, userID))
}

// HandleDisconnect deregisters a connection. The offline broadcast fires only
// when the last connection goes away.
func (s *PresenceService) HandleDisconnect(ctx context.Context, userID int64, connID string) {
	wentOffline := s.registry.DeregisterConnection(ctx, userID, connID)
	if !wentOffline {
		return
	}
	middleware.RecordPresenceTransition("offline")
	s.broadcastStatus(ctx, userID, domain.StatusOffline)
}

// Touch refreshes the connection TTL on inbound activity.
func (s *PresenceService) Touch(ctx context.Context, userID int64) {
	s.registry.Touch(ctx, userID)
}

// EffectiveStatus is the only status callers should render: offline unless
// the registry shows the user connected, otherwise the stored preference.
func (s *PresenceService) EffectiveStatus(ctx context.Context, userID int64) domain.PresenceStatus {
	preferred, err := s.statuses.GetPreferred(userID)
	if err != nil {
		s.logger.Warn("preferred status read failed, defaulting",
			zap.Int64("userId", userID), zap.Error(err))
		preferred = domain.StatusOnline
	}
	return s.registry.EffectiveStatus(ctx, userID, preferred)
}

// SetPreferredStatus stores the user's intent and broadcasts the resulting
// effective status.
func (s *PresenceService) SetPreferredStatus(ctx context.Context, userID int64, status domain.PresenceStatus) error {
	if status != domain.StatusOnline && status != domain.StatusAway {
		return ErrInvalidStatus
	}
	if err := s.statuses.SetPreferred(userID, status); err != nil {
		return err
	}
	s.broadcastStatus(ctx, userID, s.registry.EffectiveStatus(ctx, userID, status))
	return nil
}

// OnlineUsersInWorkspace intersects the global online set with the workspace
// member list.
func (s *PresenceService) OnlineUsersInWorkspace(ctx context.Context, workspaceID int64) ([]int64, error) {
	members, err := s.access.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	online := make(map[int64]bool)
	for _, id := range s.registry.OnlineUsers(ctx) {
		online[id] = true
	}

	var users []int64
	for _, m := range members {
		if online[m.UserID] {
			users = append(users, m.UserID)
		}
	}
	return users, nil
}

// broadcastStatus pushes the change to every workspace the user belongs to.
// Presence is a best-effort side channel; failures are logged, never
// surfaced.
func (s *PresenceService) broadcastStatus(ctx context.Context, userID int64, status domain.PresenceStatus) {
	workspaceIDs, err := s.access.ListWorkspaceIDsForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("presence fan-out scoping failed",
			zap.Int64("userId", userID), zap.Error(err))
		return
	}

	payload := event.UserStatusChanged{UserID: userID, Status: status}
	for _, workspaceID := range workspaceIDs {
		if err := s.broadcaster.ToWorkspace(ctx, workspaceID, payload); err != nil {
			s.logger.Warn("status broadcast failed",
				zap.Int64("userId", userID),
				zap.Int64("workspaceId", workspaceID),
				zap.Error(err))
		}
	}
}

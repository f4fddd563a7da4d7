package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-core/internal/cache"
	"chat-core/internal/client"
	"chat-core/internal/domain"
	"chat-core/internal/repository"
)

// ConversationService resolves direct and group conversations to canonical
// channels: two users never end up with two global direct threads, and a
// member set maps to at most one group conversation.
type ConversationService struct {
	channels   repository.ChannelRepository
	workspaces repository.WorkspaceRepository
	messages   repository.MessageRepository
	users      client.UserClient
	presence   *PresenceService
	cache      *cache.AccessCache
	logger     *zap.Logger
}

func NewConversationService(
	channels repository.ChannelRepository,
	workspaces repository.WorkspaceRepository,
	messages repository.MessageRepository,
	users client.UserClient,
	presenceSvc *PresenceService,
	accessCache *cache.AccessCache,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		channels:   channels,
		workspaces: workspaces,
		messages:   messages,
		users:      users,
		presence:   presenceSvc,
		cache:      accessCache,
		logger:     logger,
	}
}

// DirectMessageView is what a client renders for a direct conversation: the
// other participant's live identity, never the channel's own stored name
// (which is a meaningless placeholder for direct channels).
type DirectMessageView struct {
	ChannelID       int64                 `json:"channelId"`
	OtherUserID     int64                 `json:"otherUserId"`
	OtherUserName   string                `json:"otherUserName,omitempty"`
	OtherAvatarURL  string                `json:"otherAvatarUrl,omitempty"`
	OtherUserStatus domain.PresenceStatus `json:"otherUserStatus"`
	LastMessage     string                `json:"lastMessage,omitempty"`
}

// StartDirectMessage returns the canonical direct channel between requester
// and target, creating a global one when none exists. Both users must share
// a workspace; the optional workspaceHint additionally requires both to be
// members of that workspace. The hint gates eligibility only, the resulting
// channel is always global.
func (s *ConversationService) StartDirectMessage(ctx context.Context, requesterID, targetID int64, workspaceHint *int64) (*DirectMessageView, error) {
	if requesterID == targetID {
		return nil, ErrSelfConversation
	}

	shared, err := s.workspaces.HasSharedWorkspace(requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if !shared {
		return nil, ErrNoSharedWorkspace
	}

	if workspaceHint != nil {
		for _, userID := range []int64{requesterID, targetID} {
			isMember, err := s.workspaces.IsMember(*workspaceHint, userID)
			if err != nil {
				return nil, err
			}
			if !isMember {
				return nil, ErrNotWorkspaceMember
			}
		}
	}

	channel, err := s.channels.FindDirectChannel(requesterID, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		channel, err = s.createDirectChannel(ctx, requesterID, targetID)
	}
	if err != nil {
		return nil, err
	}

	return s.directView(ctx, channel.ID, targetID), nil
}

func (s *ConversationService) createDirectChannel(ctx context.Context, requesterID, targetID int64) (*domain.Channel, error) {
	channel := &domain.Channel{
		WorkspaceID: nil,
		Type:        domain.ChannelDirect,
		IsPrivate:   true,
		CreatedBy:   requesterID,
	}
	if err := s.channels.CreateChannelWithMembers(channel, []int64{requesterID, targetID}); err != nil {
		return nil, fmt.Errorf("create direct channel: %w", err)
	}

	s.cache.InvalidateDMList(ctx, requesterID)
	s.cache.InvalidateDMList(ctx, targetID)
	return channel, nil
}

func (s *ConversationService) directView(ctx context.Context, channelID, otherID int64) *DirectMessageView {
	view := &DirectMessageView{
		ChannelID:       channelID,
		OtherUserID:     otherID,
		OtherUserStatus: s.presence.EffectiveStatus(ctx, otherID),
	}

	if info, err := s.users.GetUser(ctx, otherID); err == nil {
		view.OtherUserName = info.Name
		view.OtherAvatarURL = info.AvatarURL
	} else {
		s.logger.Warn("direct view user lookup failed",
			zap.Int64("userId", otherID), zap.Error(err))
	}

	if last, err := s.messages.LatestMessage(channelID); err == nil {
		view.LastMessage = last.Content
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("direct view preview lookup failed",
			zap.Int64("channelId", channelID), zap.Error(err))
	}

	return view
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ChannelID   int64              `json:"channelId"`
	Type        domain.ChannelType `json:"type"`
	Name        string             `json:"name,omitempty"`
	OtherUserID *int64             `json:"otherUserId,omitempty"`
	LastMessage string             `json:"lastMessage,omitempty"`
}

// ListConversations returns the user's direct and group conversations,
// served from the short-lived dms:user cache when possible. Direct entries
// are titled with the other participant's name, never the channel's stored
// placeholder.
func (s *ConversationService) ListConversations(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	var cached []ConversationSummary
	if s.cache.GetDMList(ctx, userID, &cached) {
		return cached, nil
	}

	channels, err := s.channels.ListDirectChannelsFor(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(channels))
	for _, ch := range channels {
		summary := ConversationSummary{ChannelID: ch.ID, Type: ch.Type, Name: ch.Name}

		if ch.Type == domain.ChannelDirect {
			memberIDs, err := s.channels.MemberIDs(ch.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range memberIDs {
				if id != userID {
					other := id
					summary.OtherUserID = &other
					if info, err := s.users.GetUser(ctx, id); err == nil {
						summary.Name = info.Name
					}
					break
				}
			}
		}

		if last, err := s.messages.LatestMessage(ch.ID); err == nil {
			summary.LastMessage = last.Content
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	s.cache.SetDMList(ctx, userID, summaries)
	return summaries, nil
}

// CreateGroupDM resolves a group conversation for creator plus memberIDs.
// If a global group channel with exactly that member set exists it is
// returned instead of creating a duplicate, regardless of who asks or in
// what order the members are listed.
func (s *ConversationService) CreateGroupDM(ctx context.Context, creatorID int64, memberIDs []int64, name string) (*domain.Channel, error) {
	if len(memberIDs) < domain.GroupMinMembers-1 {
		return nil, ErrGroupTooSmall
	}
	if len(memberIDs) > domain.GroupMaxMembers-1 {
		return nil, ErrGroupTooLarge
	}

	seen := map[int64]bool{creatorID: true}
	for _, id := range memberIDs {
		if seen[id] {
			return nil, ErrDuplicateMember
		}
		seen[id] = true
	}

	// Every member must share a workspace with the creator individually.
	for _, id := range memberIDs {
		shared, err := s.workspaces.HasSharedWorkspace(creatorID, id)
		if err != nil {
			return nil, err
		}
		if !shared {
			return nil, ErrNoSharedWorkspace
		}
	}

	fullSet := append([]int64{creatorID}, memberIDs...)
	sort.Slice(fullSet, func(i, j int) bool { return fullSet[i] < fullSet[j] })

	if existing, err := s.findGroupByMemberSet(creatorID, fullSet); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if name == "" {
		name = s.generateGroupName(ctx, memberIDs)
	}

	channel := &domain.Channel{
		WorkspaceID: nil,
		Name:        name,
		Type:        domain.ChannelGroup,
		IsPrivate:   true,
		CreatedBy:   creatorID,
	}
	if err := s.channels.CreateChannelWithMembers(channel, fullSet); err != nil {
		return nil, fmt.Errorf("create group channel: %w", err)
	}

	for _, id := range fullSet {
		s.cache.InvalidateDMList(ctx, id)
	}
	return channel, nil
}

func (s *ConversationService) findGroupByMemberSet(userID int64, sortedSet []int64) (*domain.Channel, error) {
	candidates, err := s.channels.FindGlobalGroupChannelsFor(userID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		ids, err := s.channels.MemberIDs(candidates[i].ID)
		if err != nil {
			return nil, err
		}
		if equalIDSets(ids, sortedSet) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// AddGroupMember grows a group conversation. The acting user must already be
// a member and the new member must share a workspace with them.
func (s *ConversationService) AddGroupMember(ctx context.Context, actorID, channelID, newMemberID int64) error {
	channel, err := s.groupChannel(channelID)
	if err != nil {
		return err
	}

	isMember, err := s.channels.IsMember(channel.ID, actorID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotChannelMember
	}

	alreadyMember, err := s.channels.IsMember(channel.ID, newMemberID)
	if err != nil {
		return err
	}
	if alreadyMember {
		return ErrDuplicateMember
	}

	shared, err := s.workspaces.HasSharedWorkspace(actorID, newMemberID)
	if err != nil {
		return err
	}
	if !shared {
		return ErrNoSharedWorkspace
	}

	count, err := s.channels.MemberCount(channel.ID)
	if err != nil {
		return err
	}
	if count >= domain.GroupMaxMembers {
		return ErrGroupTooLarge
	}

	if err := s.channels.AddMember(channel.ID, newMemberID); err != nil {
		return err
	}

	s.cache.InvalidateChannelAccess(ctx, newMemberID, channel.ID)
	s.invalidateGroupDMLists(ctx, channel.ID, newMemberID)
	return nil
}

// RemoveGroupMember shrinks a group conversation. Removing someone else
// below the two-member floor is rejected: a one-member group is nonsensical.
// A self-leave at the floor instead winds the conversation down and deletes
// the channel, so a shrunken group never traps its last members.
func (s *ConversationService) RemoveGroupMember(ctx context.Context, actorID, channelID, memberID int64) error {
	channel, err := s.groupChannel(channelID)
	if err != nil {
		return err
	}

	isActor, err := s.channels.IsMember(channel.ID, actorID)
	if err != nil {
		return err
	}
	if !isActor {
		return ErrNotChannelMember
	}

	isMember, err := s.channels.IsMember(channel.ID, memberID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotChannelMember
	}

	count, err := s.channels.MemberCount(channel.ID)
	if err != nil {
		return err
	}

	memberIDs, err := s.channels.MemberIDs(channel.ID)
	if err != nil {
		return err
	}

	if count-1 < domain.DirectMemberCount {
		if actorID != memberID {
			return ErrGroupTooSmall
		}
		if err := s.channels.DeleteChannel(channel.ID); err != nil {
			return err
		}
		for _, id := range memberIDs {
			s.cache.InvalidateChannelAccess(ctx, id, channel.ID)
			s.cache.InvalidateDMList(ctx, id)
		}
		return nil
	}

	if err := s.channels.RemoveMember(channel.ID, memberID); err != nil {
		return err
	}

	s.cache.InvalidateChannelAccess(ctx, memberID, channel.ID)
	for _, id := range memberIDs {
		s.cache.InvalidateDMList(ctx, id)
	}
	return nil
}

func (s *ConversationService) groupChannel(channelID int64) (*domain.Channel, error) {
	channel, err := s.channels.GetChannel(channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	if channel.Type != domain.ChannelGroup {
		return nil, ErrNotGroupChannel
	}
	return channel, nil
}

func (s *ConversationService) invalidateGroupDMLists(ctx context.Context, channelID, extraUserID int64) {
	memberIDs, err := s.channels.MemberIDs(channelID)
	if err != nil {
		s.logger.Warn("group member list lookup failed",
			zap.Int64("channelId", channelID), zap.Error(err))
		memberIDs = nil
	}
	seen := map[int64]bool{}
	for _, id := range append(memberIDs, extraUserID) {
		if seen[id] {
			continue
		}
		seen[id] = true
		s.cache.InvalidateDMList(ctx, id)
	}
}

// generateGroupName builds a default name from member display names:
// "A and B", "A, B, C", or "A, B, C and N others". Cosmetic but deterministic
// for a given member list.
func (s *ConversationService) generateGroupName(ctx context.Context, memberIDs []int64) string {
	var names []string
	for _, id := range memberIDs {
		info, err := s.users.GetUser(ctx, id)
		if err != nil || info.Name == "" {
			continue
		}
		names = append(names, info.Name)
	}

	switch {
	case len(names) == 0:
		return "Group DM"
	case len(names) == 1:
		return names[0]
	case len(names) == 2:
		return names[0] + " and " + names[1]
	case len(names) == 3:
		return strings.Join(names, ", ")
	default:
		return fmt.Sprintf("%s and %d others", strings.Join(names[:3], ", "), len(names)-3)
	}
}

func equalIDSets(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	// Both inputs arrive sorted ascending.
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

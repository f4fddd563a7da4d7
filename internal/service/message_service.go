package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-core/internal/client"
	"chat-core/internal/domain"
	"chat-core/internal/event"
	"chat-core/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// MessageService is the send path: the single place where "can this user post
// to this channel right now" is decided and where persistence and broadcast
// are sequenced.
type MessageService struct {
	messages    repository.MessageRepository
	channels    repository.ChannelRepository
	workspaces  repository.WorkspaceRepository
	access      *AccessService
	presence    *PresenceService
	users       client.UserClient
	broadcaster event.Broadcaster
	logger      *zap.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	workspaces repository.WorkspaceRepository,
	access *AccessService,
	presenceSvc *PresenceService,
	users client.UserClient,
	broadcaster event.Broadcaster,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messages:    messages,
		channels:    channels,
		workspaces:  workspaces,
		access:      access,
		presence:    presenceSvc,
		users:       users,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SendMessage authorizes, persists and broadcasts, in that order. The
// broadcast starts only after the persistence transaction committed; a
// fan-out failure never fails the send, since clients converge on the next
// history fetch. Returns ErrNotChannelMember for unauthorized senders; the
// transport layer decides whether to swallow it (it does, to avoid leaking
// channel existence).
func (s *MessageService) SendMessage(ctx context.Context, userID, channelID int64, content string, attachmentIDs []int64) (*domain.Message, error) {
	allowed, err := s.access.IsUserInChannel(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotChannelMember
	}

	channel, err := s.channels.GetChannel(channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}

	// A global direct channel's existence does not grant a perpetual right to
	// message: the pair must still share a workspace. This rejection is
	// explicit, unlike plain unauthorized, because the conversation worked
	// before and the sender should learn why it stopped.
	if channel.IsGlobal() && channel.Type == domain.ChannelDirect {
		otherID, err := s.otherDirectMember(channelID, userID)
		if err != nil {
			return nil, err
		}
		shared, err := s.workspaces.HasSharedWorkspace(userID, otherID)
		if err != nil {
			return nil, err
		}
		if !shared {
			return nil, ErrNoSharedWorkspace
		}
	}

	message := &domain.Message{
		ChannelID: channelID,
		AuthorID:  userID,
		Content:   content,
	}
	if err := s.messages.CreateMessage(message, attachmentIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}

	s.broadcastMessage(ctx, message)
	return message, nil
}

// Typing is a non-persisted, fire-and-forget broadcast. No authorization
// re-check here: the caller only invokes it for channels the connection has
// already joined, and joining required authorization.
func (s *MessageService) Typing(ctx context.Context, userID, channelID int64, isTyping bool) {
	payload := event.UserTyping{ChannelID: channelID, UserID: userID, IsTyping: isTyping}
	if err := s.broadcaster.ToChannel(ctx, channelID, payload); err != nil {
		s.logger.Debug("typing broadcast failed",
			zap.Int64("channelId", channelID), zap.Error(err))
	}
}

// GetMessages pages channel history, newest first.
func (s *MessageService) GetMessages(ctx context.Context, userID, channelID int64, limit, offset int) ([]domain.Message, error) {
	allowed, err := s.access.IsUserInChannel(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotChannelMember
	}
	return s.messages.GetMessages(channelID, clampLimit(limit), offset)
}

// GetMessagesAfter serves reload-after-reconnect reads, oldest first.
func (s *MessageService) GetMessagesAfter(ctx context.Context, userID, channelID int64, after time.Time, limit int) ([]domain.Message, error) {
	allowed, err := s.access.IsUserInChannel(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotChannelMember
	}
	return s.messages.GetMessagesAfter(channelID, after, clampLimit(limit))
}

// UploadAttachment records placeholder attachment metadata ahead of the
// message that will carry it.
func (s *MessageService) UploadAttachment(ctx context.Context, attachment *domain.Attachment) error {
	return s.messages.CreateAttachment(attachment)
}

func (s *MessageService) otherDirectMember(channelID, userID int64) (int64, error) {
	memberIDs, err := s.channels.MemberIDs(channelID)
	if err != nil {
		return 0, err
	}
	for _, id := range memberIDs {
		if id != userID {
			return id, nil
		}
	}
	return 0, ErrNotChannelMember
}

func (s *MessageService) broadcastMessage(ctx context.Context, message *domain.Message) {
	payload := event.MessageReceived{
		MessageID:    message.ID,
		ChannelID:    message.ChannelID,
		AuthorID:     message.AuthorID,
		AuthorStatus: s.presence.EffectiveStatus(ctx, message.AuthorID),
		Content:      message.Content,
		CreatedAt:    message.CreatedAt,
	}

	// Author snapshot is best-effort decoration; a user-service hiccup must
	// not block delivery.
	if info, err := s.users.GetUser(ctx, message.AuthorID); err == nil {
		payload.AuthorName = info.Name
		payload.AuthorAvatarURL = info.AvatarURL
	} else {
		s.logger.Warn("author snapshot lookup failed",
			zap.Int64("userId", message.AuthorID), zap.Error(err))
	}

	for _, a := range message.Attachments {
		payload.Attachments = append(payload.Attachments, event.AttachmentInfo{
			ID:          a.ID,
			FileName:    a.FileName,
			FileURL:     a.FileURL,
			FileSize:    a.FileSize,
			ContentType: a.ContentType,
		})
	}

	if err := s.broadcaster.ToChannel(ctx, message.ChannelID, payload); err != nil {
		// The message is durable; live delivery was incomplete. No retry:
		// clients pick it up on their next history fetch.
		s.logger.Warn("message broadcast failed after commit",
			zap.Int64("messageId", message.ID),
			zap.Int64("channelId", message.ChannelID),
			zap.Error(err))
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

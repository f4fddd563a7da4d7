package repository

import (
	"gorm.io/gorm"

	"chat-core/internal/domain"
)

type ChannelRepository interface {
	GetChannel(channelID int64) (*domain.Channel, error)
	CreateChannelWithMembers(channel *domain.Channel, memberIDs []int64) error
	DeleteChannel(channelID int64) error

	AddMember(channelID, userID int64) error
	RemoveMember(channelID, userID int64) error
	IsMember(channelID, userID int64) (bool, error)
	MemberIDs(channelID int64) ([]int64, error)
	MemberCount(channelID int64) (int64, error)

	FindDirectChannel(userA, userB int64) (*domain.Channel, error)
	FindGlobalGroupChannelsFor(userID int64) ([]domain.Channel, error)
	ListDirectChannelsFor(userID int64) ([]domain.Channel, error)
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) GetChannel(channelID int64) (*domain.Channel, error) {
	var channel domain.Channel
	if err := r.db.First(&channel, "id = ?", channelID).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) CreateChannelWithMembers(channel *domain.Channel, memberIDs []int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(channel).Error; err != nil {
			return err
		}
		for _, userID := range memberIDs {
			member := &domain.ChannelMember{
				ChannelID: channel.ID,
				UserID:    userID,
			}
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteChannel removes the channel with its messages, attachments and
// membership rows.
func (r *channelRepository) DeleteChannel(channelID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN (SELECT id FROM messages WHERE channel_id = ?)", channelID).
			Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", channelID).
			Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", channelID).
			Delete(&domain.ChannelMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Channel{}, "id = ?", channelID).Error
	})
}

func (r *channelRepository) AddMember(channelID, userID int64) error {
	member := &domain.ChannelMember{
		ChannelID: channelID,
		UserID:    userID,
	}
	return r.db.Create(member).Error
}

func (r *channelRepository) RemoveMember(channelID, userID int64) error {
	res := r.db.Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&domain.ChannelMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *channelRepository) IsMember(channelID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&domain.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *channelRepository) MemberIDs(channelID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&domain.ChannelMember{}).
		Where("channel_id = ?", channelID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *channelRepository) MemberCount(channelID int64) (int64, error) {
	var count int64
	err := r.db.Model(&domain.ChannelMember{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}

// FindDirectChannel returns the canonical direct channel between two users.
// Global (workspace-null) channels win over workspace-scoped legacy ones,
// then the most recently created, so old and new threads converge onto one.
func (r *channelRepository) FindDirectChannel(userA, userB int64) (*domain.Channel, error) {
	var channel domain.Channel
	err := r.db.
		Joins("JOIN channel_members m1 ON m1.channel_id = channels.id AND m1.user_id = ?", userA).
		Joins("JOIN channel_members m2 ON m2.channel_id = channels.id AND m2.user_id = ?", userB).
		Where("channels.type = ?", domain.ChannelDirect).
		Order("(channels.workspace_id IS NULL) DESC, channels.created_at DESC, channels.id DESC").
		First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// FindGlobalGroupChannelsFor lists the workspace-null group channels the user
// belongs to; callers compare full member sets for deduplication.
func (r *channelRepository) FindGlobalGroupChannelsFor(userID int64) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := r.db.
		Joins("JOIN channel_members cm ON cm.channel_id = channels.id AND cm.user_id = ?", userID).
		Where("channels.type = ? AND channels.workspace_id IS NULL", domain.ChannelGroup).
		Find(&channels).Error
	return channels, err
}

func (r *channelRepository) ListDirectChannelsFor(userID int64) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := r.db.
		Joins("JOIN channel_members cm ON cm.channel_id = channels.id AND cm.user_id = ?", userID).
		Where("channels.type IN ?", []domain.ChannelType{domain.ChannelDirect, domain.ChannelGroup}).
		Order("channels.updated_at DESC").
		Find(&channels).Error
	return channels, err
}

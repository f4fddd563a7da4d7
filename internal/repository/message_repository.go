package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"chat-core/internal/domain"
)

type MessageRepository interface {
	// CreateMessage persists the message and re-points the given placeholder
	// attachments at it in the same transaction. The message timestamp is
	// always server-assigned.
	CreateMessage(message *domain.Message, attachmentIDs []int64) error
	GetMessage(messageID int64) (*domain.Message, error)
	GetMessages(channelID int64, limit, offset int) ([]domain.Message, error)
	GetMessagesAfter(channelID int64, after time.Time, limit int) ([]domain.Message, error)
	LatestMessage(channelID int64) (*domain.Message, error)

	CreateAttachment(attachment *domain.Attachment) error
	DeleteOrphanAttachments(olderThan time.Time) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateMessage(message *domain.Message, attachmentIDs []int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		if len(attachmentIDs) == 0 {
			return nil
		}

		res := tx.Model(&domain.Attachment{}).
			Where("id IN ? AND message_id IS NULL", attachmentIDs).
			Update("message_id", message.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(attachmentIDs)) {
			return fmt.Errorf("reassign attachments: %w", gorm.ErrRecordNotFound)
		}

		return tx.Where("message_id = ?", message.ID).
			Find(&message.Attachments).Error
	})
}

func (r *messageRepository) GetMessage(messageID int64) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Preload("Attachments").First(&message, "id = ?", messageID).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) GetMessages(channelID int64, limit, offset int) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.Preload("Attachments").
		Where("channel_id = ?", channelID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) GetMessagesAfter(channelID int64, after time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.Preload("Attachments").
		Where("channel_id = ? AND created_at > ?", channelID, after).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) LatestMessage(channelID int64) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("channel_id = ?", channelID).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) CreateAttachment(attachment *domain.Attachment) error {
	return r.db.Create(attachment).Error
}

// DeleteOrphanAttachments removes placeholder attachments that were never
// claimed by a message.
func (r *messageRepository) DeleteOrphanAttachments(olderThan time.Time) (int64, error) {
	res := r.db.Where("message_id IS NULL AND created_at < ?", olderThan).
		Delete(&domain.Attachment{})
	return res.RowsAffected, res.Error
}

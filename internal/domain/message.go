package domain

import "time"

// Message is an append-only chat message. Content may be empty when the
// message only carries attachments. CreatedAt is always server-assigned.
type Message struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"messageId"`
	ChannelID   int64        `gorm:"not null;index:idx_messages_channel_created" json:"channelId"`
	AuthorID    int64        `gorm:"not null;index" json:"authorId"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time    `gorm:"autoCreateTime;index:idx_messages_channel_created" json:"createdAt"`
	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Attachment metadata. Uploads happen before the carrying message exists, so
// MessageID stays nil until the send re-points the row inside the message
// transaction. Orphaned placeholders are reaped by a background job.
type Attachment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"attachmentId"`
	MessageID   *int64    `gorm:"index" json:"messageId,omitempty"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileURL     string    `gorm:"type:text;not null" json:"fileUrl"`
	FileSize    int64     `gorm:"not null" json:"fileSize"`
	ContentType string    `gorm:"type:varchar(100)" json:"contentType"`
	UploadedBy  int64     `gorm:"not null" json:"uploadedBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Attachment) TableName() string {
	return "attachments"
}

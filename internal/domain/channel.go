package domain

import "time"

// ChannelType defines the kind of conversation a channel carries.
type ChannelType string

const (
	ChannelPublic  ChannelType = "PUBLIC"
	ChannelPrivate ChannelType = "PRIVATE"
	ChannelDirect  ChannelType = "DIRECT"
	ChannelGroup   ChannelType = "GROUP"
)

const (
	// DirectMemberCount is the fixed size of a direct conversation.
	DirectMemberCount = 2
	// GroupMinMembers and GroupMaxMembers bound group conversation size.
	GroupMinMembers = 3
	GroupMaxMembers = 9
)

// Channel is a named conversation scope. WorkspaceID is nil for direct and
// group conversations, which live outside any single workspace.
type Channel struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"channelId"`
	WorkspaceID *int64      `gorm:"index" json:"workspaceId,omitempty"`
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Type        ChannelType `gorm:"type:varchar(20);not null;index" json:"type"`
	IsPrivate   bool        `gorm:"not null;default:false" json:"isPrivate"`
	CreatedBy   int64       `gorm:"not null" json:"createdBy"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Channel) TableName() string {
	return "channels"
}

// IsGlobal reports whether the channel is scoped to no workspace.
func (c *Channel) IsGlobal() bool {
	return c.WorkspaceID == nil
}

// ChannelMember links a user to a channel. For direct and group channels
// this row is the authorization boundary.
type ChannelMember struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"memberId"`
	ChannelID int64     `gorm:"not null;uniqueIndex:idx_channel_user" json:"channelId"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_channel_user;index" json:"userId"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (ChannelMember) TableName() string {
	return "channel_members"
}

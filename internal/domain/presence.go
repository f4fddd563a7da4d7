package domain

import "time"

// PresenceStatus is a user's visible presence state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusAway    PresenceStatus = "AWAY"
	StatusOffline PresenceStatus = "OFFLINE"
)

// UserStatus stores the user's preferred status. The preferred status is the
// user's intent only; visible status must always be derived by intersecting
// it with the presence registry (a user with no live connection is OFFLINE
// regardless of preference).
type UserStatus struct {
	UserID    int64          `gorm:"primaryKey" json:"userId"`
	Preferred PresenceStatus `gorm:"type:varchar(20);not null;default:'ONLINE'" json:"preferred"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (UserStatus) TableName() string {
	return "user_statuses"
}

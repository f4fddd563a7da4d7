package domain

import "time"

// WorkspaceRole defines a member's role inside a workspace.
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "OWNER"
	RoleMember WorkspaceRole = "MEMBER"
)

// Workspace is a tenant-like grouping of users and channels.
type Workspace struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"workspaceId"`
	OwnerID   int64     `gorm:"not null;index" json:"ownerId"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceMember links a user to a workspace. Exactly one member per
// workspace holds RoleOwner at any point in time.
type WorkspaceMember struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"memberId"`
	WorkspaceID int64         `gorm:"not null;uniqueIndex:idx_workspace_user" json:"workspaceId"`
	UserID      int64         `gorm:"not null;uniqueIndex:idx_workspace_user;index" json:"userId"`
	Role        WorkspaceRole `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	Position    int           `gorm:"not null;default:0" json:"position"`
	JoinedAt    time.Time     `gorm:"autoCreateTime" json:"joinedAt"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

// WorkspaceInvitation is a pending invite. The unique index on
// (workspace_id, invitee_id) makes duplicate pending invites a store-level
// constraint violation rather than a check-then-act race.
type WorkspaceInvitation struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"invitationId"`
	WorkspaceID int64     `gorm:"not null;uniqueIndex:idx_workspace_invitee" json:"workspaceId"`
	InviteeID   int64     `gorm:"not null;uniqueIndex:idx_workspace_invitee" json:"inviteeId"`
	InvitedBy   int64     `gorm:"not null" json:"invitedBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (WorkspaceInvitation) TableName() string {
	return "workspace_invitations"
}

// MemberSummary is the cached shape of a workspace membership listing.
type MemberSummary struct {
	UserID   int64         `json:"userId"`
	Role     WorkspaceRole `json:"role"`
	Position int           `json:"position"`
	JoinedAt time.Time     `json:"joinedAt"`
}

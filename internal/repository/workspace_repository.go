package repository

import (
	"fmt"

	"gorm.io/gorm"

	"chat-core/internal/domain"
)

type WorkspaceRepository interface {
	CreateWorkspace(workspace *domain.Workspace) error
	GetWorkspace(workspaceID int64) (*domain.Workspace, error)
	DeleteWorkspace(workspaceID int64) ([]int64, error)

	AddMember(member *domain.WorkspaceMember) error
	RemoveMember(workspaceID, userID int64) error
	GetMember(workspaceID, userID int64) (*domain.WorkspaceMember, error)
	IsMember(workspaceID, userID int64) (bool, error)
	ListMembers(workspaceID int64) ([]domain.WorkspaceMember, error)
	ListWorkspaceIDsForUser(userID int64) ([]int64, error)
	HasSharedWorkspace(userA, userB int64) (bool, error)
	TransferOwnership(workspaceID, fromUserID, toUserID int64) error

	CreateInvitation(invitation *domain.WorkspaceInvitation) error
	GetInvitation(workspaceID, inviteeID int64) (*domain.WorkspaceInvitation, error)
	AcceptInvitation(workspaceID, inviteeID int64) error
}

type workspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) CreateWorkspace(workspace *domain.Workspace) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return err
		}
		owner := &domain.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      workspace.OwnerID,
			Role:        domain.RoleOwner,
		}
		return tx.Create(owner).Error
	})
}

func (r *workspaceRepository) GetWorkspace(workspaceID int64) (*domain.Workspace, error) {
	var workspace domain.Workspace
	if err := r.db.First(&workspace, "id = ?", workspaceID).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// DeleteWorkspace cascades in dependency order: invitations, memberships,
// then per-channel attachments, messages and membership rows, the channels,
// and finally the workspace row. Returns the former members' user IDs so the
// caller can invalidate their cache entries and push removal notices.
func (r *workspaceRepository) DeleteWorkspace(workspaceID int64) ([]int64, error) {
	var memberIDs []int64

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var workspace domain.Workspace
		if err := tx.First(&workspace, "id = ?", workspaceID).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.WorkspaceMember{}).
			Where("workspace_id = ?", workspaceID).
			Pluck("user_id", &memberIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("workspace_id = ?", workspaceID).
			Delete(&domain.WorkspaceInvitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", workspaceID).
			Delete(&domain.WorkspaceMember{}).Error; err != nil {
			return err
		}

		var channelIDs []int64
		if err := tx.Model(&domain.Channel{}).
			Where("workspace_id = ?", workspaceID).
			Pluck("id", &channelIDs).Error; err != nil {
			return err
		}

		if len(channelIDs) > 0 {
			if err := tx.Where("message_id IN (SELECT id FROM messages WHERE channel_id IN ?)", channelIDs).
				Delete(&domain.Attachment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("channel_id IN ?", channelIDs).
				Delete(&domain.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("channel_id IN ?", channelIDs).
				Delete(&domain.ChannelMember{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", channelIDs).
				Delete(&domain.Channel{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&domain.Workspace{}, "id = ?", workspaceID).Error
	})
	if err != nil {
		return nil, err
	}
	return memberIDs, nil
}

func (r *workspaceRepository) AddMember(member *domain.WorkspaceMember) error {
	return r.db.Create(member).Error
}

func (r *workspaceRepository) RemoveMember(workspaceID, userID int64) error {
	res := r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&domain.WorkspaceMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workspaceRepository) GetMember(workspaceID, userID int64) (*domain.WorkspaceMember, error) {
	var member domain.WorkspaceMember
	err := r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *workspaceRepository) IsMember(workspaceID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&domain.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *workspaceRepository) ListMembers(workspaceID int64) ([]domain.WorkspaceMember, error) {
	var members []domain.WorkspaceMember
	err := r.db.Where("workspace_id = ?", workspaceID).
		Order("position ASC, joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *workspaceRepository) ListWorkspaceIDsForUser(userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&domain.WorkspaceMember{}).
		Where("user_id = ?", userID).
		Order("position ASC").
		Pluck("workspace_id", &ids).Error
	return ids, err
}

func (r *workspaceRepository) HasSharedWorkspace(userA, userB int64) (bool, error) {
	var count int64
	err := r.db.Table("workspace_members AS m1").
		Joins("JOIN workspace_members m2 ON m1.workspace_id = m2.workspace_id").
		Where("m1.user_id = ? AND m2.user_id = ?", userA, userB).
		Count(&count).Error
	return count > 0, err
}

// TransferOwnership flips both roles in one transaction so the workspace
// never has zero or two owners.
func (r *workspaceRepository) TransferOwnership(workspaceID, fromUserID, toUserID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.WorkspaceMember{}).
			Where("workspace_id = ? AND user_id = ? AND role = ?", workspaceID, fromUserID, domain.RoleOwner).
			Update("role", domain.RoleMember)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("transfer ownership: %w", gorm.ErrRecordNotFound)
		}

		res = tx.Model(&domain.WorkspaceMember{}).
			Where("workspace_id = ? AND user_id = ?", workspaceID, toUserID).
			Update("role", domain.RoleOwner)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("transfer ownership: %w", gorm.ErrRecordNotFound)
		}

		return tx.Model(&domain.Workspace{}).
			Where("id = ?", workspaceID).
			Update("owner_id", toUserID).Error
	})
}

func (r *workspaceRepository) CreateInvitation(invitation *domain.WorkspaceInvitation) error {
	return r.db.Create(invitation).Error
}

func (r *workspaceRepository) GetInvitation(workspaceID, inviteeID int64) (*domain.WorkspaceInvitation, error) {
	var invitation domain.WorkspaceInvitation
	err := r.db.Where("workspace_id = ? AND invitee_id = ?", workspaceID, inviteeID).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// AcceptInvitation converts the pending invite into a membership row
// atomically.
func (r *workspaceRepository) AcceptInvitation(workspaceID, inviteeID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var invitation domain.WorkspaceInvitation
		if err := tx.Where("workspace_id = ? AND invitee_id = ?", workspaceID, inviteeID).
			First(&invitation).Error; err != nil {
			return err
		}
		member := &domain.WorkspaceMember{
			WorkspaceID: workspaceID,
			UserID:      inviteeID,
			Role:        domain.RoleMember,
		}
		if err := tx.Create(member).Error; err != nil {
			return err
		}
		return tx.Delete(&invitation).Error
	})
}

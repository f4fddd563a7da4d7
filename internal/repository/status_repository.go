package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-core/internal/domain"
)

type StatusRepository interface {
	SetPreferred(userID int64, status domain.PresenceStatus) error
	GetPreferred(userID int64) (domain.PresenceStatus, error)
}

type statusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepository{db: db}
}

func (r *statusRepository) SetPreferred(userID int64, status domain.PresenceStatus) error {
	row := &domain.UserStatus{
		UserID:    userID,
		Preferred: status,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferred", "updated_at"}),
	}).Create(row).Error
}

// GetPreferred defaults to Online for users who never set a preference.
func (r *statusRepository) GetPreferred(userID int64) (domain.PresenceStatus, error) {
	var row domain.UserStatus
	err := r.db.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StatusOnline, nil
	}
	if err != nil {
		return domain.StatusOnline, err
	}
	return row.Preferred, nil
}

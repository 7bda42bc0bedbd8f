package repository

import (
	"context"
	"errors"

	"parentslist/internal/models"

	"gorm.io/gorm"
)

// UserInformationRepository stores the encrypted identity record of a user.
type UserInformationRepository interface {
	Create(ctx context.Context, info *models.UserInformation) error
	GetByUserID(ctx context.Context, userID uint) (*models.UserInformation, error)
	// SetEmail replaces the encrypted email and marks it unconfirmed.
	SetEmail(ctx context.Context, userID uint, encryptedEmail string) error
	ConfirmEmail(ctx context.Context, userID uint) error
}

type userInformationRepository struct {
	db *gorm.DB
}

func NewUserInformationRepository(db *gorm.DB) UserInformationRepository {
	return &userInformationRepository{db: db}
}

func (r *userInformationRepository) Create(ctx context.Context, info *models.UserInformation) error {
	if err := r.db.WithContext(ctx).Create(info).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("user information already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userInformationRepository) GetByUserID(ctx context.Context, userID uint) (*models.UserInformation, error) {
	var info models.UserInformation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&info).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("user information not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &info, nil
}

func (r *userInformationRepository) SetEmail(ctx context.Context, userID uint, encryptedEmail string) error {
	return r.update(ctx, userID, map[string]any{
		"encrypted_email": encryptedEmail,
		"email_confirmed": false,
	})
}

func (r *userInformationRepository) ConfirmEmail(ctx context.Context, userID uint) error {
	return r.update(ctx, userID, map[string]any{"email_confirmed": true})
}

func (r *userInformationRepository) update(ctx context.Context, userID uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.UserInformation{}).Where("user_id = ?", userID).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("user information not found")
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"parentslist/internal/models"

	"gorm.io/gorm"
)

// UserTokenRepository stores the digests of single-use tokens mailed to users.
type UserTokenRepository interface {
	Create(ctx context.Context, token *models.UserToken) error
	GetByHash(ctx context.Context, purpose models.TokenPurpose, hash string) (*models.UserToken, error)
	// MarkUsed redeems a token. It fails with CONFLICT when the token was
	// already used, so two concurrent redemptions cannot both succeed.
	MarkUsed(ctx context.Context, id uint, at time.Time) error
	// RevokeOutstanding marks every unused token of userID for purpose as used.
	RevokeOutstanding(ctx context.Context, userID uint, purpose models.TokenPurpose, at time.Time) error
}

type userTokenRepository struct {
	db *gorm.DB
}

func NewUserTokenRepository(db *gorm.DB) UserTokenRepository {
	return &userTokenRepository{db: db}
}

func (r *userTokenRepository) Create(ctx context.Context, token *models.UserToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userTokenRepository) GetByHash(ctx context.Context, purpose models.TokenPurpose, hash string) (*models.UserToken, error) {
	var token models.UserToken
	err := r.db.WithContext(ctx).
		Where("purpose = ? AND token_hash = ?", purpose, hash).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("token not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &token, nil
}

func (r *userTokenRepository) MarkUsed(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.UserToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("token already used")
	}
	return nil
}

func (r *userTokenRepository) RevokeOutstanding(ctx context.Context, userID uint, purpose models.TokenPurpose, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.UserToken{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Update("used_at", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

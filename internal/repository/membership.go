package repository

import (
	"context"
	"errors"

	"parentslist/internal/models"

	"gorm.io/gorm"
)

// MembershipRepository is plain persistence over membership rows. It applies
// no lifecycle rules of its own.
type MembershipRepository interface {
	Create(ctx context.Context, membership *models.Membership) error
	// Save writes every column, so cleared affiliation fields become NULL.
	Save(ctx context.Context, membership *models.Membership) error
	// FindByUserID returns nil without error when the user has no row yet.
	FindByUserID(ctx context.Context, userID uint) (*models.Membership, error)
	GetByListAndPosition(ctx context.Context, listID uint, position int) (*models.Membership, error)
	GetLeader(ctx context.Context, listID uint) (*models.Membership, error)
	ListByList(ctx context.Context, listID uint) ([]models.Membership, error)
	CountByStatus(ctx context.Context, listID uint, statuses ...models.MembershipStatus) (int64, error)
	UpdatePosition(ctx context.Context, id uint, position int) error
	// ShiftPositionsDown closes the gap left at position `above` by moving every
	// ordered member ranked after it one step up the ranking.
	ShiftPositionsDown(ctx context.Context, listID uint, above int) error
}

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("membership already exists for user")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) Save(ctx context.Context, membership *models.Membership) error {
	if err := r.db.WithContext(ctx).Omit("User", "List").Save(membership).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) FindByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) GetByListAndPosition(ctx context.Context, listID uint, position int) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("list_id = ? AND position = ? AND status IN ?", listID, position, models.OrderedStatuses).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("neighbor missing")
		}
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) GetLeader(ctx context.Context, listID uint) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("list_id = ? AND status = ?", listID, models.MembershipStatusLeader).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("list has no leader")
		}
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) ListByList(ctx context.Context, listID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("list_id = ?", listID).
		Order("position ASC, id ASC").
		Find(&memberships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return memberships, nil
}

func (r *membershipRepository) CountByStatus(ctx context.Context, listID uint, statuses ...models.MembershipStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("list_id = ? AND status IN ?", listID, statuses).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *membershipRepository) UpdatePosition(ctx context.Context, id uint, position int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", id).
		Update("position", position)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", id)
	}
	return nil
}

func (r *membershipRepository) ShiftPositionsDown(ctx context.Context, listID uint, above int) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("list_id = ? AND status IN ? AND position > ?", listID, models.OrderedStatuses, above).
		Update("position", gorm.Expr("position - 1")).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

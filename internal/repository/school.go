package repository

import (
	"context"
	"errors"

	"parentslist/internal/models"

	"gorm.io/gorm"
)

// SchoolRepository stores schools and the users attached to them.
type SchoolRepository interface {
	Create(ctx context.Context, school *models.School) error
	GetByID(ctx context.Context, id uint) (*models.School, error)
	List(ctx context.Context) ([]models.School, error)
	AddMember(ctx context.Context, member *models.SchoolMember) error
	IsMember(ctx context.Context, schoolID, userID uint) (bool, error)
	ListByUser(ctx context.Context, userID uint) ([]models.School, error)
}

type schoolRepository struct {
	db *gorm.DB
}

func NewSchoolRepository(db *gorm.DB) SchoolRepository {
	return &schoolRepository{db: db}
}

func (r *schoolRepository) Create(ctx context.Context, school *models.School) error {
	if err := r.db.WithContext(ctx).Create(school).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("school already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *schoolRepository) GetByID(ctx context.Context, id uint) (*models.School, error) {
	var school models.School
	if err := r.db.WithContext(ctx).First(&school, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("School", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &school, nil
}

func (r *schoolRepository) List(ctx context.Context) ([]models.School, error) {
	var schools []models.School
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&schools).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return schools, nil
}

func (r *schoolRepository) AddMember(ctx context.Context, member *models.SchoolMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("already a member of this school")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *schoolRepository) IsMember(ctx context.Context, schoolID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SchoolMember{}).
		Where("school_id = ? AND user_id = ?", schoolID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *schoolRepository) ListByUser(ctx context.Context, userID uint) ([]models.School, error) {
	var schools []models.School
	err := r.db.WithContext(ctx).
		Joins("JOIN school_members ON school_members.school_id = schools.id").
		Where("school_members.user_id = ?", userID).
		Order("schools.name ASC, schools.id ASC").
		Find(&schools).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return schools, nil
}

package repository

import (
	"context"
	"errors"

	"parentslist/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParentsListRepository defines persistence operations for parents lists.
type ParentsListRepository interface {
	Create(ctx context.Context, list *models.ParentsList) error
	GetByID(ctx context.Context, id uint) (*models.ParentsList, error)
	// GetByIDForUpdate reads the list and, on Postgres, holds a row lock until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.ParentsList, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	// List returns every list, or only those of schoolID when it is non-zero.
	List(ctx context.Context, schoolID uint) ([]models.ParentsList, error)
}

type parentsListRepository struct {
	db *gorm.DB
}

func NewParentsListRepository(db *gorm.DB) ParentsListRepository {
	return &parentsListRepository{db: db}
}

func (r *parentsListRepository) Create(ctx context.Context, list *models.ParentsList) error {
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("list name already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *parentsListRepository) GetByID(ctx context.Context, id uint) (*models.ParentsList, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *parentsListRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.ParentsList, error) {
	q := r.db.WithContext(ctx)
	// SQLite has no row locks; the database-level write lock serializes instead.
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.get(q, id)
}

func (r *parentsListRepository) get(q *gorm.DB, id uint) (*models.ParentsList, error) {
	var list models.ParentsList
	if err := q.First(&list, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("List", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &list, nil
}

func (r *parentsListRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ParentsList{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *parentsListRepository) List(ctx context.Context, schoolID uint) ([]models.ParentsList, error) {
	q := r.db.WithContext(ctx).Order("id ASC")
	if schoolID != 0 {
		q = q.Where("school_id = ?", schoolID)
	}
	var lists []models.ParentsList
	if err := q.Find(&lists).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return lists, nil
}

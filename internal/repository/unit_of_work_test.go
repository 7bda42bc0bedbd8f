package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"parentslist/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := NewUnitOfWork(db).Do(context.Background(), "noop", func(context.Context, Store) error {
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_DomainErrorRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewUnitOfWork(db).Do(context.Background(), "accept", func(context.Context, Store) error {
		return models.NewConflictError("list full")
	})

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.Equal(t, "list full", appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_DriverFailureBecomesInternal(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "parents_lists"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := NewUnitOfWork(db).Do(context.Background(), "create_list", func(ctx context.Context, s Store) error {
		_, err := s.Lists.ExistsByName(ctx, "ClassA")
		return err
	})

	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_WrapsPlainErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	plain := errors.New("unexpected")
	err := NewUnitOfWork(db).Do(context.Background(), "leave", func(context.Context, Store) error {
		return plain
	})

	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.ErrorIs(t, err, plain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_DiscardsWritesOnFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uow := NewUnitOfWork(db)

	err := uow.Do(ctx, "signup", func(ctx context.Context, s Store) error {
		if err := s.Users.Create(ctx, &models.User{Username: "ghost", Password: "x"}); err != nil {
			return err
		}
		return models.NewValidationError("rejected after write")
	})
	require.True(t, models.IsCode(err, models.CodeValidation))

	_, err = NewUserRepository(db).GetByUsername(ctx, "ghost")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

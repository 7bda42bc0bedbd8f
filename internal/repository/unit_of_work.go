package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Store groups the repositories bound to one database handle, usually a transaction.
type Store struct {
	Users           UserRepository
	UserInformation UserInformationRepository
	UserTokens      UserTokenRepository
	Schools         SchoolRepository
	Lists           ParentsListRepository
	Memberships     MembershipRepository
}

// NewStore binds every repository to db.
func NewStore(db *gorm.DB) Store {
	return Store{
		Users:           NewUserRepository(db),
		UserInformation: NewUserInformationRepository(db),
		UserTokens:      NewUserTokenRepository(db),
		Schools:         NewSchoolRepository(db),
		Lists:           NewParentsListRepository(db),
		Memberships:     NewMembershipRepository(db),
	}
}

// UnitOfWork runs fn atomically. Any error returned by fn discards every write
// made through the store it received. Errors that are not *models.AppError come
// back wrapped as INTERNAL_ERROR.
type UnitOfWork interface {
	Do(ctx context.Context, operation string, fn func(ctx context.Context, store Store) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork returns a UnitOfWork backed by GORM transactions on db.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, operation string, fn func(ctx context.Context, store Store) error) error {
	span, ctx := observability.NewSpan(ctx, "uow."+operation, attribute.String("uow.operation", operation))
	defer span.End()

	start := time.Now()
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewStore(tx))
	})
	observability.UnitOfWorkDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
		err = appErr
	}

	if appErr.Code == models.CodeInternal {
		span.SetError(err)
		middleware.Logger.ErrorContext(ctx, "unit of work failed, rolled back",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	} else {
		span.AddAttributes(attribute.String("uow.rejection", appErr.Code))
		middleware.Logger.WarnContext(ctx, "unit of work rejected, rolled back",
			slog.String("operation", operation),
			slog.String("code", appErr.Code),
			slog.String("reason", appErr.Message),
		)
	}
	return err
}

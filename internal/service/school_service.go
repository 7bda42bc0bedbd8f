package service

import (
	"context"
	"log/slog"

	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/repository"
	"parentslist/internal/validation"
)

// SchoolInput is the user-supplied description of a school.
type SchoolInput struct {
	Name     string                `json:"name"`
	City     string                `json:"city"`
	ZipCode  string                `json:"zip_code"`
	Country  string                `json:"country"`
	Address  string                `json:"address"`
	Relation models.SchoolRelation `json:"relation"`
}

// SchoolService manages schools and who belongs to them.
type SchoolService struct {
	store repository.Store
	uow   repository.UnitOfWork
}

func NewSchoolService(store repository.Store, uow repository.UnitOfWork) *SchoolService {
	return &SchoolService{store: store, uow: uow}
}

// CreateSchool registers a school and attaches its creator with the given relation.
func (s *SchoolService) CreateSchool(ctx context.Context, actorID uint, in SchoolInput) (school *models.School, err error) {
	defer func() { recordOutcome("create_school", err) }()

	school = &models.School{CreatorID: actorID}
	fields := []struct {
		dst   *string
		name  string
		value string
		max   int
	}{
		{&school.Name, "name", in.Name, validation.MaxSchoolNameRunes},
		{&school.City, "city", in.City, validation.MaxSchoolCityRunes},
		{&school.ZipCode, "zip_code", in.ZipCode, validation.MaxSchoolZipCodeRunes},
		{&school.Country, "country", in.Country, validation.MaxSchoolCountryRunes},
		{&school.Address, "address", in.Address, validation.MaxSchoolAddressRunes},
	}
	for _, f := range fields {
		if *f.dst, err = validation.NormalizeSchoolField(f.name, f.value, f.max); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	relation, err := parseRelation(in.Relation)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, "create_school", func(ctx context.Context, st repository.Store) error {
		if _, err := st.Users.GetByID(ctx, actorID); err != nil {
			return err
		}
		if err := st.Schools.Create(ctx, school); err != nil {
			return err
		}
		return st.Schools.AddMember(ctx, &models.SchoolMember{
			SchoolID: school.ID,
			UserID:   actorID,
			Relation: relation,
		})
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "school created",
		slog.Uint64("school_id", uint64(school.ID)),
		slog.String("name", school.Name),
	)
	return school, nil
}

// JoinSchool attaches the actor to an existing school.
func (s *SchoolService) JoinSchool(ctx context.Context, actorID, schoolID uint, relation models.SchoolRelation) (member *models.SchoolMember, err error) {
	defer func() { recordOutcome("join_school", err) }()

	if relation, err = parseRelation(relation); err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, "join_school", func(ctx context.Context, st repository.Store) error {
		if _, err := st.Users.GetByID(ctx, actorID); err != nil {
			return err
		}
		if _, err := st.Schools.GetByID(ctx, schoolID); err != nil {
			return err
		}
		member = &models.SchoolMember{SchoolID: schoolID, UserID: actorID, Relation: relation}
		return st.Schools.AddMember(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetSchool returns one school.
func (s *SchoolService) GetSchool(ctx context.Context, id uint) (*models.School, error) {
	return s.store.Schools.GetByID(ctx, id)
}

// ListSchools returns every school by name.
func (s *SchoolService) ListSchools(ctx context.Context) ([]models.School, error) {
	return s.store.Schools.List(ctx)
}

// MySchools returns the schools the actor belongs to.
func (s *SchoolService) MySchools(ctx context.Context, actorID uint) ([]models.School, error) {
	return s.store.Schools.ListByUser(ctx, actorID)
}

// parseRelation defaults an empty relation to parent.
func parseRelation(r models.SchoolRelation) (models.SchoolRelation, error) {
	if r == "" {
		return models.SchoolRelationParent, nil
	}
	if !r.Valid() {
		return "", models.NewValidationError("relation must be parent or direction")
	}
	return r, nil
}

// Package seed populates a database with demo schools, users, lists and memberships.
// Everything goes through the services, so seeded data obeys the same rules
// as data created over the API.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password given to every seeded account.
const DefaultPassword = "Password123"

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Options configuration for the seeder
type Options struct {
	// NumSchools defaults to 1. Lists are spread over the schools in turn.
	NumSchools     int
	NumLists       int
	MembersPerList int
	ShouldClean    bool
}

// Result lists what a seeding run created.
type Result struct {
	Schools []models.School
	Users   []models.User
	Lists   []models.ParentsList
}

// Mailbox is a service.Mailer that keeps confirmation tokens in memory so
// seeded accounts can confirm their email without a mail server.
type Mailbox struct {
	mu     sync.Mutex
	tokens map[uint]string
}

func NewMailbox() *Mailbox {
	return &Mailbox{tokens: make(map[uint]string)}
}

func (m *Mailbox) SendEmailConfirmation(_ context.Context, userID uint, _, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
	return nil
}

// SendPasswordReset drops the message. Seeding never resets passwords.
func (m *Mailbox) SendPasswordReset(context.Context, uint, string, string, time.Time) error {
	return nil
}

func (m *Mailbox) take(userID uint) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[userID]
	delete(m.tokens, userID)
	return token, ok
}

// Seeder creates demo data through the user, school and membership services.
type Seeder struct {
	db          *gorm.DB
	users       *service.UserService
	schools     *service.SchoolService
	memberships *service.MembershipService
	mailbox     *Mailbox
	faker       *gofakeit.Faker
	serial      int
}

// NewSeeder returns a seeder. users must deliver its mail to mailbox. The
// same seed value produces the same names.
func NewSeeder(db *gorm.DB, users *service.UserService, schools *service.SchoolService, memberships *service.MembershipService, mailbox *Mailbox, seed int64) *Seeder {
	return &Seeder{
		db:          db,
		users:       users,
		schools:     schools,
		memberships: memberships,
		mailbox:     mailbox,
		faker:       gofakeit.New(seed),
	}
}

// ClearAll removes every membership, list, school, token, information record and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Membership{},
		&models.ParentsList{},
		&models.SchoolMember{},
		&models.School{},
		&models.UserToken{},
		&models.UserInformation{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "database cleared")
	return nil
}

// Run seeds opts.NumLists lists. Each list gets a leader plus
// opts.MembersPerList applicants: most are accepted while seats remain, every
// fifth is rejected and every fourth is left waiting. The first leader of a
// school founds it; everyone else joins it as a parent.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}
	if opts.NumSchools <= 0 {
		opts.NumSchools = 1
	}

	result := &Result{}
	for i := 0; i < opts.NumLists; i++ {
		leader, err := s.createUser(ctx)
		if err != nil {
			return nil, err
		}
		result.Users = append(result.Users, *leader)

		var schoolID uint
		if slot := i % opts.NumSchools; slot < len(result.Schools) {
			schoolID = result.Schools[slot].ID
			if err := s.joinSchool(ctx, leader.ID, schoolID); err != nil {
				return nil, err
			}
		} else {
			school, err := s.createSchool(ctx, leader.ID)
			if err != nil {
				return nil, err
			}
			result.Schools = append(result.Schools, *school)
			schoolID = school.ID
		}

		capacity := s.faker.Number(models.MinListCapacity, models.MaxListCapacity)
		list, _, err := s.memberships.CreateList(ctx, leader.ID, schoolID, s.listName(), capacity)
		if err != nil {
			return nil, fmt.Errorf("create list: %w", err)
		}
		result.Lists = append(result.Lists, *list)

		for j := 1; j <= opts.MembersPerList; j++ {
			member, err := s.createUser(ctx)
			if err != nil {
				return nil, err
			}
			result.Users = append(result.Users, *member)

			if err := s.joinSchool(ctx, member.ID, schoolID); err != nil {
				return nil, err
			}
			if err := s.apply(ctx, leader.ID, list.ID, member.ID, j); err != nil {
				return nil, err
			}
		}

		middleware.Logger.InfoContext(ctx, "seeded list",
			slog.String("name", list.Name),
			slog.Int("capacity", list.Capacity),
			slog.Int("applicants", opts.MembersPerList),
		)
	}
	return result, nil
}

func (s *Seeder) apply(ctx context.Context, leaderID, listID, memberID uint, n int) error {
	if _, err := s.memberships.RequestJoin(ctx, memberID, listID, s.faker.Sentence(8)); err != nil {
		return fmt.Errorf("request join: %w", err)
	}

	var err error
	switch {
	case n%5 == 0:
		_, err = s.memberships.Reject(ctx, leaderID, listID, memberID)
	case n%4 == 0:
		return nil
	default:
		_, err = s.memberships.Accept(ctx, leaderID, listID, memberID)
		if models.IsCode(err, models.CodeConflict) {
			// List full: the applicant keeps waiting.
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("decide on applicant: %w", err)
	}
	return nil
}

func (s *Seeder) createUser(ctx context.Context) (*models.User, error) {
	s.serial++
	first, last := s.faker.FirstName(), s.faker.LastName()

	base := usernameUnsafe.ReplaceAllString(strings.ToLower(first+"_"+last), "")
	switch {
	case len(base) < 3:
		base = "parent"
	case len(base) > 24:
		base = base[:24]
	}
	username := fmt.Sprintf("%s%d", base, s.serial)
	user, err := s.users.Signup(ctx, username, DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	email := username + "@example.org"
	err = s.users.SaveInformation(ctx, user.ID, service.PersonalInformation{
		Name:      last,
		FirstName: first,
		Email:     &email,
	})
	switch {
	case models.IsCode(err, models.CodePreconditionFailed):
		// No PII key: the account stays without information.
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("save information: %w", err)
	}

	token, ok := s.mailbox.take(user.ID)
	if !ok {
		return nil, fmt.Errorf("no confirmation token for %s", username)
	}
	if err := s.users.ConfirmEmail(ctx, token); err != nil {
		return nil, fmt.Errorf("confirm email: %w", err)
	}
	return user, nil
}

func (s *Seeder) createSchool(ctx context.Context, founderID uint) (*models.School, error) {
	school, err := s.schools.CreateSchool(ctx, founderID, service.SchoolInput{
		Name:     fmt.Sprintf("%s %s school", s.faker.LastName(), s.faker.Noun()),
		City:     s.faker.City(),
		ZipCode:  s.faker.Zip(),
		Country:  s.faker.CountryAbr(),
		Address:  s.faker.Street(),
		Relation: models.SchoolRelationDirection,
	})
	if err != nil {
		return nil, fmt.Errorf("create school: %w", err)
	}
	return school, nil
}

func (s *Seeder) joinSchool(ctx context.Context, userID, schoolID uint) error {
	if _, err := s.schools.JoinSchool(ctx, userID, schoolID, models.SchoolRelationParent); err != nil {
		return fmt.Errorf("join school: %w", err)
	}
	return nil
}

func (s *Seeder) listName() string {
	s.serial++
	return fmt.Sprintf("%s %s class %d", s.faker.Color(), s.faker.Animal(), s.serial)
}

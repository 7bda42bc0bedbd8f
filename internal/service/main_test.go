package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"parentslist/internal/database"
	"parentslist/internal/lock"
	"parentslist/internal/models"
	"parentslist/internal/notifications"
	"parentslist/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []uint
	events     []notifications.JoinRequest
	err        error
}

func (n *recordingNotifier) NotifyJoinRequest(_ context.Context, recipientID uint, event notifications.JoinRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipientID)
	n.events = append(n.events, event)
	return n.err
}

type testEnv struct {
	db       *gorm.DB
	store    repository.Store
	svc      *MembershipService
	notifier *recordingNotifier
	// school is the school every user made by newUser belongs to.
	school *models.School
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	store := repository.NewStore(db)
	notifier := &recordingNotifier{}
	env := &testEnv{
		db:       db,
		store:    store,
		svc:      NewMembershipService(store, repository.NewUnitOfWork(db), lock.NewLocalLocker(), notifier),
		notifier: notifier,
	}
	env.school = env.newSchool(t, "Jules Ferry")
	return env
}

// newUser creates a parent of the env school with a confirmed email.
func (e *testEnv) newUser(t *testing.T, username string) uint {
	t.Helper()
	id := e.newBareUser(t, username)
	e.joinSchool(t, e.school.ID, id)
	e.confirmEmail(t, id)
	return id
}

// newBareUser creates an account with no school and no personal information.
func (e *testEnv) newBareUser(t *testing.T, username string) uint {
	t.Helper()
	u := &models.User{Username: username, Password: "hash"}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) newSchool(t *testing.T, name string) *models.School {
	t.Helper()
	founder := e.newBareUser(t, strings.ReplaceAll(strings.ToLower(name), " ", "_")+"_founder")
	school := &models.School{Name: name, City: "Lyon", ZipCode: "69001", Country: "FR", Address: "1 place Bellecour", CreatorID: founder}
	require.NoError(t, e.store.Schools.Create(context.Background(), school))
	return school
}

func (e *testEnv) joinSchool(t *testing.T, schoolID, userID uint) {
	t.Helper()
	require.NoError(t, e.store.Schools.AddMember(context.Background(), &models.SchoolMember{
		SchoolID: schoolID,
		UserID:   userID,
		Relation: models.SchoolRelationParent,
	}))
}

func (e *testEnv) confirmEmail(t *testing.T, userID uint) {
	t.Helper()
	sealed := "sealed-email"
	require.NoError(t, e.store.UserInformation.Create(context.Background(), &models.UserInformation{
		UserID:             userID,
		EncryptedName:      "sealed-name",
		EncryptedFirstName: "sealed-first-name",
		EncryptedEmail:     &sealed,
		EmailConfirmed:     true,
	}))
}

// newList creates a list led by a fresh user and returns the list and leader id.
func (e *testEnv) newList(t *testing.T, name string, capacity int) (*models.ParentsList, uint) {
	t.Helper()
	leaderID := e.newUser(t, name+"_leader")
	list, _, err := e.svc.CreateList(context.Background(), leaderID, e.school.ID, name, capacity)
	require.NoError(t, err)
	return list, leaderID
}

// admit creates a user, has them request to join and accepts them.
func (e *testEnv) admit(t *testing.T, list *models.ParentsList, adminID uint, username string) (uint, *models.Membership) {
	t.Helper()
	ctx := context.Background()
	userID := e.newUser(t, username)
	_, err := e.svc.RequestJoin(ctx, userID, list.ID, "")
	require.NoError(t, err)
	m, err := e.svc.Accept(ctx, adminID, list.ID, userID)
	require.NoError(t, err)
	return userID, m
}

func (e *testEnv) membership(t *testing.T, userID uint) *models.Membership {
	t.Helper()
	m, err := e.store.Memberships.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

// rankedPositions returns the positions of the list's ranked members, in rank order.
func (e *testEnv) rankedPositions(t *testing.T, listID uint) []int {
	t.Helper()
	members, err := e.store.Memberships.ListByList(context.Background(), listID)
	require.NoError(t, err)

	var out []int
	for _, m := range members {
		if a, ok := m.Affiliation(); ok && a.Status.IsOrdered() {
			out = append(out, a.Position)
		}
	}
	return out
}

func dense(k int) []int {
	out := make([]int, k)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func username(prefix string, i int) string {
	return fmt.Sprintf("%s_%d", prefix, i)
}

package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parentslist/internal/config"
	"parentslist/internal/database"
	"parentslist/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	// schoolID is the school newParent attaches users to.
	schoolID uint
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		Port:               "0",
		DBDriver:           "sqlite",
		JWTSecret:          "test-secret-that-is-long-enough-for-hs256",
		JWTTTLHours:        1,
		PIIKey:             base64.StdEncoding.EncodeToString([]byte(strings.Repeat("p", 32))),
		ListLockTTLSeconds: 5,
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithRedis(t, nil)
}

// newRedisTestServer backs the server with an in-memory Redis.
func newRedisTestServer(t *testing.T) (*testServer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newTestServerWithRedis(t, rdb), mr
}

func newTestServerWithRedis(t *testing.T, rdb *redis.Client) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)

	founder := &models.User{Username: "school_founder", Password: "hash"}
	require.NoError(t, db.Create(founder).Error)
	school := &models.School{Name: "Jules Ferry", City: "Lyon", ZipCode: "69001", Country: "FR", Address: "1 place Bellecour", CreatorID: founder.ID}
	require.NoError(t, db.Create(school).Error)

	return &testServer{srv: srv, app: srv.App(), db: db, schoolID: school.ID}
}

// do sends a request and decodes a JSON response body into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// signup registers a user and returns its id and bearer token.
func (ts *testServer) signup(t *testing.T, username string) (uint, string) {
	t.Helper()

	var out authResponse
	status := ts.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"password": "Password123",
	}, &out)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotEmpty(t, out.Token)
	return out.User.ID, out.Token
}

// newParent signs up a user, joins them to the test school and records a
// confirmed email for them.
func (ts *testServer) newParent(t *testing.T, username string) (uint, string) {
	t.Helper()

	userID, token := ts.signup(t, username)
	status := ts.do(t, http.MethodPost, fmt.Sprintf("/api/schools/%d/join", ts.schoolID), token,
		map[string]string{"relation": "parent"}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	sealed := "sealed"
	require.NoError(t, ts.db.Create(&models.UserInformation{
		UserID:             userID,
		EncryptedName:      sealed,
		EncryptedFirstName: sealed,
		EncryptedEmail:     &sealed,
		EmailConfirmed:     true,
	}).Error)
	return userID, token
}

package server

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	var live map[string]any
	assert.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	userID, valid := ts.signup(t, "alice")
	secret := ts.srv.config.JWTSecret
	sub := strconv.FormatUint(uint64(userID), 10)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", fiber.StatusUnauthorized},
		{"garbage", "not-a-jwt", fiber.StatusUnauthorized},
		{"wrong secret", signedToken(t, "another-secret-another-secret-xx", jwt.MapClaims{
			"sub": sub, "iss": tokenIssuer, "aud": tokenAudience, "exp": exp,
		}), fiber.StatusUnauthorized},
		{"wrong audience", signedToken(t, secret, jwt.MapClaims{
			"sub": sub, "iss": tokenIssuer, "aud": "someone-else", "exp": exp,
		}), fiber.StatusUnauthorized},
		{"wrong issuer", signedToken(t, secret, jwt.MapClaims{
			"sub": sub, "iss": "someone-else", "aud": tokenAudience, "exp": exp,
		}), fiber.StatusUnauthorized},
		{"expired", signedToken(t, secret, jwt.MapClaims{
			"sub": sub, "iss": tokenIssuer, "aud": tokenAudience, "exp": time.Now().Add(-time.Hour).Unix(),
		}), fiber.StatusUnauthorized},
		{"non numeric subject", signedToken(t, secret, jwt.MapClaims{
			"sub": "alice", "iss": tokenIssuer, "aud": tokenAudience, "exp": exp,
		}), fiber.StatusUnauthorized},
		{"valid", valid, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, ts.do(t, http.MethodGet, "/api/memberships/me", tt.token, nil, nil))
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "bob")

	creds := func(username, password string) map[string]string {
		return map[string]string{"username": username, "password": password}
	}

	assert.Equal(t, fiber.StatusConflict,
		ts.do(t, http.MethodPost, "/api/auth/signup", "", creds("bob", "Password123"), nil))
	assert.Equal(t, fiber.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/auth/signup", "", creds("carol", "weak"), nil))
	assert.Equal(t, fiber.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/auth/signup", "", creds("no spaces allowed", "Password123"), nil))

	assert.Equal(t, fiber.StatusUnauthorized,
		ts.do(t, http.MethodPost, "/api/auth/login", "", creds("bob", "Password124"), nil))
	assert.Equal(t, fiber.StatusUnauthorized,
		ts.do(t, http.MethodPost, "/api/auth/login", "", creds("nobody", "Password123"), nil))

	var out authResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPost, "/api/auth/login", "", creds("bob", "Password123"), &out))
	assert.Equal(t, "bob", out.User.Username)

	var me map[string]any
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/memberships/me", out.Token, nil, &me))
	assert.Nil(t, me["list_id"])
	assert.Nil(t, me["status"])
}

func TestUserInformation(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signup(t, "dana")

	assert.Equal(t, fiber.StatusNotFound,
		ts.do(t, http.MethodGet, "/api/users/me/information", token, nil, nil))

	assert.Equal(t, fiber.StatusBadRequest, ts.do(t, http.MethodPost, "/api/users/me/information", token,
		map[string]string{"name": "Doe", "first_name": "Dana", "email": "not-an-email"}, nil))

	body := map[string]string{"name": "Doe", "first_name": "Dana", "email": "dana@example.com"}
	assert.Equal(t, fiber.StatusCreated, ts.do(t, http.MethodPost, "/api/users/me/information", token, body, nil))
	assert.Equal(t, fiber.StatusConflict, ts.do(t, http.MethodPost, "/api/users/me/information", token, body, nil))

	var info map[string]any
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/users/me/information", token, nil, &info))
	assert.Equal(t, "Doe", info["name"])
	assert.Equal(t, "Dana", info["first_name"])
	assert.Equal(t, true, info["has_email"])
	assert.NotContains(t, info, "email")
}

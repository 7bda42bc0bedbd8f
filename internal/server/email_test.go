package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"parentslist/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// popMail takes the oldest queued message from the mail outbox.
func popMail(t *testing.T, mr *miniredis.Miniredis) notifications.MailMessage {
	t.Helper()
	raw, err := mr.Lpop(notifications.MailOutbox)
	require.NoError(t, err)
	var msg notifications.MailMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

func TestEmailConfirmationUnlocksListCreation(t *testing.T) {
	ts, mr := newRedisTestServer(t)
	userID, token := ts.signup(t, "founder")
	require.Equal(t, fiber.StatusCreated, ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/schools/%d/join", ts.schoolID), token, nil, nil))

	assert.Equal(t, fiber.StatusPreconditionFailed, ts.do(t, http.MethodPost, "/api/users/me/email", token,
		map[string]string{"email": "founder@school.org"}, nil))

	require.Equal(t, fiber.StatusCreated, ts.do(t, http.MethodPost, "/api/users/me/information", token,
		map[string]string{"name": "Doe", "first_name": "Jo", "email": "founder@school.org"}, nil))
	mail := popMail(t, mr)
	assert.Equal(t, notifications.EventEmailConfirmation, mail.Type)
	assert.Equal(t, userID, mail.UserID)
	assert.Equal(t, "founder@school.org", mail.To)

	listBody := map[string]any{"school_id": ts.schoolID, "name": "ClassA", "capacity": 2}
	assert.Equal(t, fiber.StatusPreconditionFailed, ts.do(t, http.MethodPost, "/api/lists", token, listBody, nil))

	assert.Equal(t, fiber.StatusForbidden, ts.do(t, http.MethodPost, "/api/auth/confirm-email", "",
		map[string]string{"token": "forged"}, nil))
	assert.Equal(t, fiber.StatusBadRequest, ts.do(t, http.MethodPost, "/api/auth/confirm-email", "",
		map[string]string{}, nil))
	require.Equal(t, fiber.StatusNoContent, ts.do(t, http.MethodPost, "/api/auth/confirm-email", "",
		map[string]string{"token": mail.Token}, nil))
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, http.MethodPost, "/api/auth/confirm-email", "",
		map[string]string{"token": mail.Token}, nil))

	var info map[string]any
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/users/me/information", token, nil, &info))
	assert.Equal(t, true, info["is_email_confirmed"])

	assert.Equal(t, fiber.StatusCreated, ts.do(t, http.MethodPost, "/api/lists", token, listBody, nil))

	// A new address has to be confirmed again.
	require.Equal(t, fiber.StatusAccepted, ts.do(t, http.MethodPost, "/api/users/me/email", token,
		map[string]string{"email": "jo@home.org"}, nil))
	assert.Equal(t, "jo@home.org", popMail(t, mr).To)
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/users/me/information", token, nil, &info))
	assert.Equal(t, false, info["is_email_confirmed"])
}

func TestPasswordReset(t *testing.T) {
	ts, mr := newRedisTestServer(t)
	_, token := ts.signup(t, "forgetful")
	require.Equal(t, fiber.StatusCreated, ts.do(t, http.MethodPost, "/api/users/me/information", token,
		map[string]string{"name": "Doe", "first_name": "Max", "email": "max@school.org"}, nil))
	require.Equal(t, fiber.StatusNoContent, ts.do(t, http.MethodPost, "/api/auth/confirm-email", "",
		map[string]string{"token": popMail(t, mr).Token}, nil))

	// Unknown usernames look the same from outside and queue nothing.
	assert.Equal(t, fiber.StatusAccepted, ts.do(t, http.MethodPost, "/api/auth/password-reset", "",
		map[string]string{"username": "nobody"}, nil))
	assert.False(t, mr.Exists(notifications.MailOutbox))

	require.Equal(t, fiber.StatusAccepted, ts.do(t, http.MethodPost, "/api/auth/password-reset", "",
		map[string]string{"username": "forgetful"}, nil))
	reset := popMail(t, mr)
	assert.Equal(t, notifications.EventPasswordReset, reset.Type)
	assert.Equal(t, "max@school.org", reset.To)

	assert.Equal(t, fiber.StatusBadRequest, ts.do(t, http.MethodPost, "/api/auth/password-reset/confirm", "",
		map[string]string{"token": reset.Token, "password": "weak"}, nil))
	require.Equal(t, fiber.StatusNoContent, ts.do(t, http.MethodPost, "/api/auth/password-reset/confirm", "",
		map[string]string{"token": reset.Token, "password": "Changed123"}, nil))
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, http.MethodPost, "/api/auth/password-reset/confirm", "",
		map[string]string{"token": reset.Token, "password": "Changed456"}, nil))

	creds := func(password string) map[string]string {
		return map[string]string{"username": "forgetful", "password": password}
	}
	assert.Equal(t, fiber.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", "", creds("Password123"), nil))
	assert.Equal(t, fiber.StatusOK, ts.do(t, http.MethodPost, "/api/auth/login", "", creds("Changed123"), nil))
}

func TestLogoutRevokesToken(t *testing.T) {
	ts, mr := newRedisTestServer(t)
	_, token := ts.signup(t, "leaving")
	_, other := ts.signup(t, "staying")

	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/memberships/me", token, nil, nil))
	require.Equal(t, fiber.StatusNoContent, ts.do(t, http.MethodPost, "/api/auth/logout", token, nil, nil))

	var revoked []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "blacklist:") {
			revoked = append(revoked, key)
		}
	}
	require.Len(t, revoked, 1)
	ttl := mr.TTL(revoked[0])
	assert.Positive(t, ttl)
	assert.LessOrEqual(t, ttl, time.Duration(ts.srv.config.JWTTTLHours)*time.Hour)

	assert.Equal(t, fiber.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/memberships/me", token, nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/logout", token, nil, nil))
	assert.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/memberships/me", other, nil, nil))

	// The key lapses with the token.
	mr.FastForward(ttl + time.Second)
	assert.False(t, mr.Exists(revoked[0]))
}

func TestLogoutWithoutRedis(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signup(t, "leaving")

	assert.Equal(t, fiber.StatusServiceUnavailable, ts.do(t, http.MethodPost, "/api/auth/logout", token, nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/logout", "", nil, nil))
}

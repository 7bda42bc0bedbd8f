package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipResponse struct {
	UserID   uint    `json:"user_id"`
	ListID   *uint   `json:"list_id"`
	Status   *string `json:"status"`
	IsAdmin  *bool   `json:"is_admin"`
	Position int     `json:"position"`
}

type summaryResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Capacity      int    `json:"capacity"`
	NbHolders     int64  `json:"nb_holders"`
	NbSubstitutes int64  `json:"nb_substitutes"`
	NbWaiting     int64  `json:"nb_waiting"`
	LeaderUserID  *uint  `json:"leader_user_id"`
}

func memberPath(listID, userID uint, action string) string {
	return fmt.Sprintf("/api/lists/%d/members/%d/%s", listID, userID, action)
}

func (ts *testServer) createList(t *testing.T, token, name string, capacity int) uint {
	t.Helper()

	var out struct {
		List struct {
			ID uint `json:"id"`
		} `json:"list"`
		Membership membershipResponse `json:"membership"`
	}
	status := ts.do(t, http.MethodPost, "/api/lists", token,
		map[string]any{"school_id": ts.schoolID, "name": name, "capacity": capacity}, &out)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotNil(t, out.Membership.Status)
	require.Equal(t, "leader", *out.Membership.Status)
	require.Equal(t, 1, out.Membership.Position)
	return out.List.ID
}

func (ts *testServer) join(t *testing.T, token string, listID uint) {
	t.Helper()

	var out membershipResponse
	status := ts.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/join", listID), token,
		map[string]string{"message": "hello"}, &out)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "waiting", *out.Status)
	require.Zero(t, out.Position)
}

func TestLifecycle_CreateJoinAcceptLeave(t *testing.T) {
	ts := newTestServer(t)
	leaderID, leader := ts.newParent(t, "leader")
	u2, tok2 := ts.newParent(t, "parent2")
	u3, tok3 := ts.newParent(t, "parent3")

	listID := ts.createList(t, leader, "ClassA", 2)
	ts.join(t, tok2, listID)
	ts.join(t, tok3, listID)

	// A pending member cannot act on the list.
	assert.Equal(t, fiber.StatusForbidden,
		ts.do(t, http.MethodPost, memberPath(listID, u2, "accept"), tok3, nil, nil))

	var accepted membershipResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPost, memberPath(listID, u2, "accept"), leader, nil, &accepted))
	assert.Equal(t, "holder", *accepted.Status)
	assert.Equal(t, 2, accepted.Position)

	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPost, memberPath(listID, u3, "accept"), leader, nil, &accepted))
	assert.Equal(t, "substitute", *accepted.Status)

	var summary summaryResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodGet, fmt.Sprintf("/api/lists/%d", listID), leader, nil, &summary))
	assert.Equal(t, "ClassA", summary.Name)
	assert.Equal(t, int64(2), summary.NbHolders)
	assert.Equal(t, int64(1), summary.NbSubstitutes)
	require.NotNil(t, summary.LeaderUserID)
	assert.Equal(t, leaderID, *summary.LeaderUserID)

	var members []memberView
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodGet, fmt.Sprintf("/api/lists/%d/members", listID), tok3, nil, &members))
	require.Len(t, members, 3)
	assert.Equal(t, "leader", members[0].Username)
	assert.Equal(t, "parent2", members[1].Username)
	assert.Equal(t, "parent3", members[2].Username)

	assert.Equal(t, fiber.StatusPreconditionFailed,
		ts.do(t, http.MethodDelete, "/api/memberships/me", leader, nil, nil))

	assert.Equal(t, fiber.StatusNoContent,
		ts.do(t, http.MethodDelete, "/api/memberships/me", tok2, nil, nil))
	assert.Equal(t, fiber.StatusNotFound,
		ts.do(t, http.MethodDelete, "/api/memberships/me", tok2, nil, nil))

	var me membershipResponse
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/memberships/me", tok2, nil, &me))
	assert.Nil(t, me.ListID)
	assert.Nil(t, me.Status)
}

func TestLifecycle_MoveMembers(t *testing.T) {
	ts := newTestServer(t)
	_, leader := ts.newParent(t, "leader")
	u2, tok2 := ts.newParent(t, "parent2")
	u3, tok3 := ts.newParent(t, "parent3")

	listID := ts.createList(t, leader, "ClassB", 5)
	for _, member := range []struct {
		id    uint
		token string
	}{{u2, tok2}, {u3, tok3}} {
		ts.join(t, member.token, listID)
		require.Equal(t, fiber.StatusOK,
			ts.do(t, http.MethodPost, memberPath(listID, member.id, "accept"), leader, nil, nil))
	}

	var moved membershipResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPatch, memberPath(listID, u3, "up"), leader, nil, &moved))
	assert.Equal(t, 2, moved.Position)

	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPatch, memberPath(listID, u3, "down"), leader, nil, &moved))
	assert.Equal(t, 3, moved.Position)

	assert.Equal(t, fiber.StatusNotFound,
		ts.do(t, http.MethodPatch, memberPath(listID, u3, "down"), leader, nil, nil))

	// Only admins may reorder.
	assert.Equal(t, fiber.StatusForbidden,
		ts.do(t, http.MethodPatch, memberPath(listID, u3, "up"), tok2, nil, nil))

	var promoted membershipResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPost, memberPath(listID, u2, "admin"), leader, nil, &promoted))
	require.NotNil(t, promoted.IsAdmin)
	assert.True(t, *promoted.IsAdmin)

	assert.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPatch, memberPath(listID, u3, "up"), tok2, nil, nil))
}

func TestLifecycle_RejectAndErrors(t *testing.T) {
	ts := newTestServer(t)
	_, leader := ts.newParent(t, "leader")
	u2, tok2 := ts.newParent(t, "parent2")

	listID := ts.createList(t, leader, "ClassC", 1)

	assert.Equal(t, fiber.StatusConflict, ts.do(t, http.MethodPost, "/api/lists", tok2,
		map[string]any{"school_id": ts.schoolID, "name": "ClassC", "capacity": 1}, nil))
	assert.Equal(t, fiber.StatusBadRequest, ts.do(t, http.MethodPost, "/api/lists", tok2,
		map[string]any{"school_id": ts.schoolID, "name": "ClassD", "capacity": 0}, nil))
	assert.Equal(t, fiber.StatusNotFound,
		ts.do(t, http.MethodPost, "/api/lists/999/join", tok2, map[string]string{}, nil))
	assert.Equal(t, fiber.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/lists/abc/join", tok2, map[string]string{}, nil))

	ts.join(t, tok2, listID)
	assert.Equal(t, fiber.StatusConflict, ts.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/join", listID), tok2,
		map[string]string{}, nil))

	var rejected membershipResponse
	require.Equal(t, fiber.StatusOK,
		ts.do(t, http.MethodPost, memberPath(listID, u2, "reject"), leader, nil, &rejected))
	assert.Nil(t, rejected.ListID)

	assert.Equal(t, fiber.StatusNotFound,
		ts.do(t, http.MethodPost, memberPath(listID, u2, "accept"), leader, nil, nil))

	var errBody struct {
		Error string `json:"error"`
	}
	require.Equal(t, fiber.StatusBadRequest,
		ts.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/members/x/accept", listID), leader, nil, &errBody))
	assert.Equal(t, "Invalid user ID", errBody.Error)

	var lists []summaryResponse
	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, "/api/lists", tok2, nil, &lists))
	require.Len(t, lists, 1)
	assert.Equal(t, int64(1), lists[0].NbHolders)
	assert.Zero(t, lists[0].NbWaiting)

	require.Equal(t, fiber.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/api/lists?school_id=%d", ts.schoolID+1), tok2, nil, &lists))
	assert.Empty(t, lists)
}

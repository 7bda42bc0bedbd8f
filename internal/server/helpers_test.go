package server

import (
	"errors"
	"testing"

	"parentslist/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", models.NewNotFoundMessage("invalid position"), fiber.StatusNotFound},
		{"unauthorized", models.NewUnauthorizedError("admin rights required"), fiber.StatusForbidden},
		{"conflict", models.NewConflictError("list full"), fiber.StatusConflict},
		{"validation", models.NewValidationError("bad name"), fiber.StatusBadRequest},
		{"precondition", models.NewPreconditionFailedError("leader cannot leave"), fiber.StatusPreconditionFailed},
		{"internal", models.NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "target user ID", humanizeParam("targetUserId"))
	assert.Equal(t, "something", humanizeParam("something"))
}

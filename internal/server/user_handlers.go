package server

import (
	"parentslist/internal/models"
	"parentslist/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SaveMyInformation handles POST /api/users/me/information
func (s *Server) SaveMyInformation(c *fiber.Ctx) error {
	var req service.PersonalInformation
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.userService.SaveInformation(c.UserContext(), currentUserID(c), req); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// GetMyInformation handles GET /api/users/me/information. The email itself is
// never echoed back, only whether one is on file.
func (s *Server) GetMyInformation(c *fiber.Ctx) error {
	info, err := s.userService.GetInformation(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"name":               info.Name,
		"first_name":         info.FirstName,
		"has_email":          info.Email != nil,
		"is_email_confirmed": info.EmailConfirmed,
	})
}

// SetMyEmail handles POST /api/users/me/email. A confirmation token is mailed
// to the new address.
func (s *Server) SetMyEmail(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.userService.SetEmail(c.UserContext(), currentUserID(c), req.Email); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

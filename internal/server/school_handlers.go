package server

import (
	"parentslist/internal/models"
	"parentslist/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateSchool handles POST /api/schools. The caller is attached to the new school.
func (s *Server) CreateSchool(c *fiber.Ctx) error {
	var req service.SchoolInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	school, err := s.schoolService.CreateSchool(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(school)
}

// GetSchools handles GET /api/schools
func (s *Server) GetSchools(c *fiber.Ctx) error {
	schools, err := s.schoolService.ListSchools(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(schools)
}

// GetMySchools handles GET /api/schools/mine
func (s *Server) GetMySchools(c *fiber.Ctx) error {
	schools, err := s.schoolService.MySchools(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(schools)
}

// GetSchool handles GET /api/schools/:id
func (s *Server) GetSchool(c *fiber.Ctx) error {
	schoolID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	school, err := s.schoolService.GetSchool(c.UserContext(), schoolID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(school)
}

// JoinSchool handles POST /api/schools/:id/join
func (s *Server) JoinSchool(c *fiber.Ctx) error {
	schoolID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Relation models.SchoolRelation `json:"relation"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	member, err := s.schoolService.JoinSchool(c.UserContext(), currentUserID(c), schoolID, req.Relation)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(member)
}

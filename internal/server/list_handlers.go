package server

import (
	"parentslist/internal/models"

	"github.com/gofiber/fiber/v2"
)

type memberView struct {
	UserID   uint                     `json:"user_id"`
	Username string                   `json:"username"`
	Status   *models.MembershipStatus `json:"status"`
	IsAdmin  bool                     `json:"is_admin"`
	Position int                      `json:"position"`
}

func newMemberView(m models.Membership) memberView {
	v := memberView{
		UserID:   m.UserID,
		Status:   m.Status,
		Position: m.Position,
	}
	if m.IsAdmin != nil {
		v.IsAdmin = *m.IsAdmin
	}
	if m.User != nil {
		v.Username = m.User.Username
	}
	return v
}

// CreateList handles POST /api/lists. The caller becomes the list's leader.
func (s *Server) CreateList(c *fiber.Ctx) error {
	var req struct {
		SchoolID uint   `json:"school_id"`
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	list, leader, err := s.membershipService.CreateList(c.UserContext(), currentUserID(c), req.SchoolID, req.Name, req.Capacity)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"list":       list,
		"membership": leader,
	})
}

// GetLists handles GET /api/lists. An optional school_id query narrows the
// result to one school.
func (s *Server) GetLists(c *fiber.Ctx) error {
	schoolID := c.QueryInt("school_id", 0)
	if schoolID < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid school ID"))
	}

	summaries, err := s.membershipService.ListSummaries(c.UserContext(), uint(schoolID))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summaries)
}

// GetList handles GET /api/lists/:id
func (s *Server) GetList(c *fiber.Ctx) error {
	listID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	summary, err := s.membershipService.GetListSummary(c.UserContext(), listID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summary)
}

// GetListMembers handles GET /api/lists/:id/members
func (s *Server) GetListMembers(c *fiber.Ctx) error {
	listID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.membershipService.ListMembers(c.UserContext(), currentUserID(c), listID)
	if err != nil {
		return respondServiceError(c, err)
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, newMemberView(m))
	}
	return c.JSON(views)
}

package server

import (
	"context"

	"parentslist/internal/models"

	"github.com/gofiber/fiber/v2"
)

type memberAction func(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error)

// RequestJoin handles POST /api/lists/:id/join
func (s *Server) RequestJoin(c *fiber.Ctx) error {
	listID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Message string `json:"message"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	membership, err := s.membershipService.RequestJoin(c.UserContext(), currentUserID(c), listID, req.Message)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(membership)
}

// AcceptMember handles POST /api/lists/:id/members/:userId/accept
func (s *Server) AcceptMember(c *fiber.Ctx) error {
	return s.runMemberAction(c, s.membershipService.Accept)
}

// RejectMember handles POST /api/lists/:id/members/:userId/reject
func (s *Server) RejectMember(c *fiber.Ctx) error {
	return s.runMemberAction(c, s.membershipService.Reject)
}

// MakeAdmin handles POST /api/lists/:id/members/:userId/admin
func (s *Server) MakeAdmin(c *fiber.Ctx) error {
	return s.runMemberAction(c, s.membershipService.MakeAdmin)
}

// MoveMemberUp handles PATCH /api/lists/:id/members/:userId/up
func (s *Server) MoveMemberUp(c *fiber.Ctx) error {
	return s.runMemberAction(c, s.membershipService.MoveUp)
}

// MoveMemberDown handles PATCH /api/lists/:id/members/:userId/down
func (s *Server) MoveMemberDown(c *fiber.Ctx) error {
	return s.runMemberAction(c, s.membershipService.MoveDown)
}

func (s *Server) runMemberAction(c *fiber.Ctx, action memberAction) error {
	listID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	membership, err := action(c.UserContext(), currentUserID(c), listID, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(membership)
}

// GetMyMembership handles GET /api/memberships/me
func (s *Server) GetMyMembership(c *fiber.Ctx) error {
	membership, err := s.membershipService.GetMyMembership(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(membership)
}

// LeaveList handles DELETE /api/memberships/me
func (s *Server) LeaveList(c *fiber.Ctx) error {
	if _, err := s.membershipService.Leave(c.UserContext(), currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

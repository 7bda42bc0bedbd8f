package service

import (
	"context"

	"parentslist/internal/models"
	"parentslist/internal/repository"
)

// PositionOrdering keeps the ranked members of a list (leader and holders) on
// the dense run 1..K. Every method must run inside the caller's unit of work.
type PositionOrdering struct{}

// MoveUp swaps target with the member ranked just before it.
func (PositionOrdering) MoveUp(ctx context.Context, memberships repository.MembershipRepository, listID uint, target *models.Membership) error {
	return swapWithNeighbor(ctx, memberships, listID, target, -1)
}

// MoveDown swaps target with the member ranked just after it.
func (PositionOrdering) MoveDown(ctx context.Context, memberships repository.MembershipRepository, listID uint, target *models.Membership) error {
	return swapWithNeighbor(ctx, memberships, listID, target, +1)
}

// CloseGap renumbers the members ranked after a vacated position.
func (PositionOrdering) CloseGap(ctx context.Context, memberships repository.MembershipRepository, listID uint, vacated int) error {
	return memberships.ShiftPositionsDown(ctx, listID, vacated)
}

func swapWithNeighbor(ctx context.Context, memberships repository.MembershipRepository, listID uint, target *models.Membership, delta int) error {
	maxPosition, err := memberships.CountByStatus(ctx, listID, models.OrderedStatuses...)
	if err != nil {
		return err
	}

	pos := target.Position
	next := pos + delta
	if pos < 1 || int64(pos) > maxPosition || next < 1 || int64(next) > maxPosition {
		return models.NewNotFoundMessage("invalid position")
	}

	neighbor, err := memberships.GetByListAndPosition(ctx, listID, next)
	if err != nil {
		return err
	}

	if err := memberships.UpdatePosition(ctx, target.ID, next); err != nil {
		return err
	}
	if err := memberships.UpdatePosition(ctx, neighbor.ID, pos); err != nil {
		return err
	}
	target.Position = next
	return nil
}

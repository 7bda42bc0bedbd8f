// Package service holds the business logic of the parents list: the membership
// lifecycle, its capacity policy and the position ordering of ranked members.
package service

import "parentslist/internal/models"

// CapacityDecision is the role granted to an accepted member.
type CapacityDecision struct {
	Status   models.MembershipStatus
	Position int
}

// DecideCapacity picks HOLDER while ranked seats remain, then SUBSTITUTE, and
// refuses once holders and substitutes together reach twice the capacity.
// nbHolders counts the leader.
func DecideCapacity(capacity int, nbHolders, nbSubstitutes int64) (CapacityDecision, error) {
	c := int64(capacity)
	switch {
	case nbHolders+nbSubstitutes >= 2*c:
		return CapacityDecision{}, models.NewConflictError("list full")
	case nbHolders < c:
		return CapacityDecision{Status: models.MembershipStatusHolder, Position: int(nbHolders) + 1}, nil
	default:
		return CapacityDecision{Status: models.MembershipStatusSubstitute}, nil
	}
}

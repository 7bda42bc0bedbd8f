package models

import "time"

// MembershipStatus defines a user's standing on a parents list.
type MembershipStatus string

const (
	// MembershipStatusWaiting indicates a join request awaiting an admin decision.
	MembershipStatusWaiting MembershipStatus = "waiting"
	// MembershipStatusLeader marks the founder of the list. Exactly one per list.
	MembershipStatusLeader MembershipStatus = "leader"
	// MembershipStatusHolder is an accepted member occupying a ranked seat.
	MembershipStatusHolder MembershipStatus = "holder"
	// MembershipStatusSubstitute is an accepted backup member without a rank.
	MembershipStatusSubstitute MembershipStatus = "substitute"
	// MembershipStatusRejected only appears on legacy rows; rejection now
	// clears the affiliation instead.
	MembershipStatusRejected MembershipStatus = "rejected"
)

// OrderedStatuses are the statuses that occupy a position in the dense 1..K ranking.
var OrderedStatuses = []MembershipStatus{MembershipStatusLeader, MembershipStatusHolder}

// IsOrdered reports whether members with this status hold a ranked position.
func (s MembershipStatus) IsOrdered() bool {
	return s == MembershipStatusLeader || s == MembershipStatusHolder
}

// Membership is the single row describing a user's relationship to a list.
// ListID, Status and IsAdmin are either all set or all NULL; use Affiliate
// and Unaffiliate rather than assigning them one by one.
type Membership struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;uniqueIndex" json:"user_id"`
	User      *User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ListID    *uint             `gorm:"index" json:"list_id"`
	List      *ParentsList      `gorm:"foreignKey:ListID;constraint:OnDelete:SET NULL" json:"-"`
	Status    *MembershipStatus `gorm:"type:varchar(20);index" json:"status"`
	IsAdmin   *bool             `json:"is_admin"`
	Position  int               `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Affiliation is the list-related part of a membership, present only when the
// user currently belongs to (or is waiting on) a list.
type Affiliation struct {
	ListID   uint
	Status   MembershipStatus
	IsAdmin  bool
	Position int
}

// Affiliation returns the membership's current affiliation. The boolean is
// false for unaffiliated rows and for legacy rejected rows.
func (m *Membership) Affiliation() (Affiliation, bool) {
	if m == nil || m.ListID == nil || m.Status == nil || *m.Status == MembershipStatusRejected {
		return Affiliation{}, false
	}
	a := Affiliation{
		ListID:   *m.ListID,
		Status:   *m.Status,
		Position: m.Position,
	}
	if m.IsAdmin != nil {
		a.IsAdmin = *m.IsAdmin
	}
	return a, true
}

// AffiliatedWith reports whether the membership is affiliated with listID.
func (m *Membership) AffiliatedWith(listID uint) bool {
	a, ok := m.Affiliation()
	return ok && a.ListID == listID
}

// Affiliate replaces every list-related field at once.
func (m *Membership) Affiliate(a Affiliation) {
	listID, status, isAdmin := a.ListID, a.Status, a.IsAdmin
	m.ListID = &listID
	m.Status = &status
	m.IsAdmin = &isAdmin
	m.Position = a.Position
}

// Unaffiliate resets the membership to the "no list" state.
func (m *Membership) Unaffiliate() {
	m.ListID = nil
	m.Status = nil
	m.IsAdmin = nil
	m.Position = 0
}

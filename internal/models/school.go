package models

import "time"

// SchoolRelation describes how a user is attached to a school.
type SchoolRelation string

const (
	// SchoolRelationParent is a parent of a pupil.
	SchoolRelationParent SchoolRelation = "parent"
	// SchoolRelationDirection is a member of the school's staff.
	SchoolRelationDirection SchoolRelation = "direction"
)

// Valid reports whether r is a known relation.
func (r SchoolRelation) Valid() bool {
	return r == SchoolRelationParent || r == SchoolRelationDirection
}

// School is the community a parents list belongs to. Only members of the
// school can found or join its lists.
type School struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null;uniqueIndex:idx_school_identity" json:"name"`
	City      string    `gorm:"size:64;not null;uniqueIndex:idx_school_identity" json:"city"`
	ZipCode   string    `gorm:"size:16;not null;uniqueIndex:idx_school_identity" json:"zip_code"`
	Country   string    `gorm:"size:64;not null" json:"country"`
	Address   string    `gorm:"size:256;not null" json:"address"`
	CreatorID uint      `gorm:"not null;index" json:"creator_id"`
	Creator   *User     `gorm:"foreignKey:CreatorID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchoolMember links a user to a school. A user may belong to several schools
// but to each one only once.
type SchoolMember struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SchoolID  uint           `gorm:"not null;uniqueIndex:idx_school_member" json:"school_id"`
	School    *School        `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_school_member;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Relation  SchoolRelation `gorm:"type:varchar(20);not null" json:"relation"`
	CreatedAt time.Time      `json:"created_at"`
}

package models

import "time"

// Capacity bounds for a parents list.
const (
	MinListCapacity = 1
	MaxListCapacity = 15
)

// ParentsList is a roster with a bounded number of holder seats and an equal
// number of substitute seats. Capacity does not change after creation. Every
// list belongs to one school.
type ParentsList struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	SchoolID  uint      `gorm:"not null;index" json:"school_id"`
	School    *School   `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	CreatorID uint      `gorm:"not null;index" json:"creator_id"`
	Creator   *User     `gorm:"foreignKey:CreatorID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (ParentsList) TableName() string {
	return "parents_lists"
}

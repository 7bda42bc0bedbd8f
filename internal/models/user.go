// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account that can found or join a parents list.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserInformation holds a user's identifying fields. Every field is stored
// encrypted; callers read and write plaintext through the PII codec.
// EmailConfirmed resets to false whenever the email changes.
type UserInformation struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User               *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	EncryptedName      string    `gorm:"type:text;not null" json:"-"`
	EncryptedFirstName string    `gorm:"type:text;not null" json:"-"`
	EncryptedEmail     *string   `gorm:"type:text" json:"-"`
	EmailConfirmed     bool      `gorm:"not null;default:false" json:"is_email_confirmed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (UserInformation) TableName() string {
	return "user_informations"
}

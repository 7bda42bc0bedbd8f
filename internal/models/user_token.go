package models

import "time"

// TokenPurpose says what a single-use token unlocks.
type TokenPurpose string

const (
	TokenPurposeEmailConfirmation TokenPurpose = "email_confirmation"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// UserToken is a single-use secret mailed to a user. Only the SHA-256 digest of
// the secret is stored.
type UserToken struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;index" json:"user_id"`
	User      *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Purpose   TokenPurpose `gorm:"type:varchar(32);not null;index" json:"purpose"`
	TokenHash string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// Usable reports whether the token can still be redeemed at now.
func (t *UserToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

package models

import (
	"time"
)

// ResetToken is joined to User by email, not by id.
type ResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"size:255;not null;index:idx_reset_email_used"`
	Token     string    `gorm:"size:255;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null;index"`
	IsUsed    bool      `gorm:"not null;default:false;index:idx_reset_email_used"`
	CreatedAt time.Time
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResetToken is a single-use password reset credential. Rows are never
// deleted; used and expired tokens stay behind for audit.
type ResetToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Email     string    `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
}

func (r *ResetToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the token's validity window has passed.
func (r *ResetToken) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

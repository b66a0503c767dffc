package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRole is assigned to every self-registered user.
const DefaultRole = "user"

// User represents an account that can authenticate against the service.
type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Email        string         `json:"email" gorm:"index;size:255;not null"`
	PasswordHash string         `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Verified     bool           `json:"verified" gorm:"not null;default:false"`
	OTP          *string        `json:"-" gorm:"column:otp;size:6"` // Pending verification code only
	Role         string         `json:"role" gorm:"size:50;not null;default:'user'"`
	FirstName    *string        `json:"first_name,omitempty" gorm:"size:255"`
	LastName     *string        `json:"last_name,omitempty" gorm:"size:255"`
	Photo        *string        `json:"photo,omitempty" gorm:"size:1024"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    *time.Time     `json:"updated_at" gorm:"autoUpdateTime:false"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// ActiveEmail mirrors Email until the row is soft-deleted, then becomes NULL,
	// so its unique index only covers live accounts.
	ActiveEmail *string `json:"-" gorm:"->;type:varchar(255) GENERATED ALWAYS AS (IF(deleted_at IS NULL, email, NULL)) STORED;uniqueIndex:idx_users_active_email"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPendingOTP reports whether a verification cycle is outstanding.
func (u *User) HasPendingOTP() bool {
	return u.OTP != nil && *u.OTP != ""
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sanitized returns a copy safe to hand to callers: no password digest and no pending code.
func (u *User) Sanitized() *User {
	out := *u
	out.PasswordHash = ""
	out.OTP = nil
	return &out
}

package models

import "time"

// UserRole identifies which side of the marketplace a user belongs to.
type UserRole int

// UserRole constants define marketplace roles.
const (
	// RoleClient posts jobs and spends view credits.
	RoleClient UserRole = 1
	// RoleWorker applies to jobs and publishes gated profiles and posts.
	RoleWorker UserRole = 2
)

// User represents a registered account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Phone    string `gorm:"type:varchar(20);not null;uniqueIndex"` // Unique phone number in E.164 form.
	Name     string `gorm:"type:text"`                             // Display name.
	Email    string `gorm:"type:text"`                             // Optional email address.
	Password string `gorm:"type:text;not null"`                    // Hashed password.

	Role UserRole `gorm:"not null"` // Marketplace role.

	OTPSecret  string     `gorm:"type:text"`              // Per-user secret for registration OTP codes.
	VerifiedAt *time.Time `gorm:"type:timestamp"`         // When OTP verification succeeded, nil until then.
	Active     bool       `gorm:"not null;default:true"`  // Whether the user can sign in.
	Disabled   bool       `gorm:"not null;default:false"` // Explicit disable flag.

	City      string `gorm:"type:varchar(255)"` // Home city for directory search.
	AvatarURL string `gorm:"type:text"`         // Public avatar URL from the upload service.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Verified reports whether the user completed OTP verification.
func (u *User) Verified() bool {
	return u != nil && u.VerifiedAt != nil
}

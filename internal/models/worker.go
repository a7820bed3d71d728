package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkerProfile holds a worker's public listing and gated contact details.
//
// Contact fields are returned to a client only through a valid unlock grant.
type WorkerProfile struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning worker user ID.
	User   User   `gorm:"foreignKey:UserID"`    // Owning user record.

	Headline   string         `gorm:"type:varchar(255)"`                // Short pitch line.
	Bio        string         `gorm:"type:text"`                        // Free-form description.
	Skills     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Skill tag list.
	City       string         `gorm:"type:varchar(255);index"`          // Work location for search.
	DailyRate  float64        `gorm:"type:decimal(10,2);default:0"`     // Advertised day rate.
	Experience int            `gorm:"not null;default:0"`               // Years of experience.

	ContactPhone string `gorm:"type:varchar(20)"` // Gated contact number.
	ContactEmail string `gorm:"type:text"`        // Gated contact email.

	IsListed bool `gorm:"not null;default:true"` // Whether the profile appears in search.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// WorkerPost is a worker's project showcase, gated like the profile.
type WorkerPost struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	WorkerID uint64 `gorm:"not null;index"`      // Authoring worker user ID.
	Worker   User   `gorm:"foreignKey:WorkerID"` // Authoring user record.

	Title       string         `gorm:"type:varchar(255);not null"`       // Post title.
	Description string         `gorm:"type:text"`                        // Gated project description.
	ImageURLs   datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Uploaded image URL list.
	Budget      float64        `gorm:"type:decimal(10,2);default:0"`     // Gated project budget.

	IsListed bool `gorm:"not null;default:true"` // Whether the post appears in feeds.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents the lifecycle state of a client job post.
type JobStatus int

// JobStatus constants define job lifecycle states.
const (
	// JobStatusOpen accepts worker applications.
	JobStatusOpen JobStatus = 1
	// JobStatusClosed no longer accepts applications.
	JobStatusClosed JobStatus = 2
)

// Job is a client's work request that workers apply to.
type Job struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClientID uint64 `gorm:"not null;index"`      // Posting client user ID.
	Client   User   `gorm:"foreignKey:ClientID"` // Posting user record.

	Title       string         `gorm:"type:varchar(255);not null"`       // Job title.
	Description string         `gorm:"type:text"`                        // Work description.
	Skills      datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Required skill tags.
	City        string         `gorm:"type:varchar(255);index"`          // Job location.
	Budget      float64        `gorm:"type:decimal(10,2);default:0"`     // Offered budget.

	Status JobStatus `gorm:"not null;default:1"` // Current job status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// JobApplication links a worker to a job they applied for.
type JobApplication struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	JobID uint64 `gorm:"not null;index:idx_job_applications_unique,unique"` // Applied job ID.
	Job   Job    `gorm:"foreignKey:JobID"`                                  // Applied job record.

	WorkerID uint64 `gorm:"not null;index:idx_job_applications_unique,unique"` // Applying worker user ID.
	Worker   User   `gorm:"foreignKey:WorkerID"`                               // Applying user record.

	Message string `gorm:"type:text"` // Optional application note.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BusinessListing is a directory entry independent of the job marketplace.
type BusinessListing struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerID uint64 `gorm:"not null;index"`     // Owning user ID.
	Owner   User   `gorm:"foreignKey:OwnerID"` // Owning user record.

	Name        string `gorm:"type:varchar(255);not null"` // Business name.
	Category    string `gorm:"type:varchar(255);index"`    // Directory category.
	Description string `gorm:"type:text"`                  // Business description.
	City        string `gorm:"type:varchar(255);index"`    // Business location.
	Phone       string `gorm:"type:varchar(20)"`           // Public contact number.
	LogoURL     string `gorm:"type:text"`                  // Uploaded logo URL.

	IsListed bool `gorm:"not null;default:true"` // Whether the listing appears in the directory.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Plan represents a purchasable credit pack configuration.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:varchar(255);not null"`            // Plan name.
	Price       float64 `gorm:"type:decimal(10,2);not null;default:0"` // Price in the configured currency.
	Currency    string  `gorm:"type:varchar(8);not null;default:INR"`  // ISO currency code.
	Description string  `gorm:"type:text"`                             // Plan description.

	ViewsAllowed int            `gorm:"not null;default:0"`               // Profile view credits granted by the pack.
	Features     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Feature description list.

	SortOrder int  `gorm:"not null;default:0"`     // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"`  // Whether the plan can be purchased.
	IsTrial   bool `gorm:"not null;default:false"` // Marks the free-trial pseudo plan.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import "time"

// PaymentStatus represents the lifecycle state of a gateway payment.
type PaymentStatus int

// PaymentStatus constants define payment lifecycle states.
const (
	// PaymentStatusPending marks an order created but not yet settled.
	PaymentStatusPending PaymentStatus = 1
	// PaymentStatusSuccess marks a verified, credited payment.
	PaymentStatusSuccess PaymentStatus = 2
	// PaymentStatusFailed marks a payment rejected by the gateway.
	PaymentStatusFailed PaymentStatus = 3
)

// Payment records a payment-gateway order and its settlement outcome.
//
// A gateway order transitions PENDING to SUCCESS or FAILED exactly once;
// callback redelivery for a settled order is a no-op.
type Payment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PayerID uint64 `gorm:"not null;index"`     // Paying client user ID.
	Payer   User   `gorm:"foreignKey:PayerID"` // Paying user record.

	PlanID uint64 `gorm:"not null;index"`    // Purchased plan ID.
	Plan   Plan   `gorm:"foreignKey:PlanID"` // Purchased plan record.

	GatewayOrderID   string `gorm:"type:varchar(255);not null;uniqueIndex"` // Gateway order identifier.
	GatewayPaymentID string `gorm:"type:varchar(255)"`                      // Gateway payment identifier, set at settlement.
	GatewaySignature string `gorm:"type:text"`                              // Verified callback signature, kept for audit.
	Receipt          string `gorm:"type:varchar(64)"`                       // Local receipt reference sent to the gateway.

	Amount   float64 `gorm:"type:decimal(10,2);not null;default:0"` // Order amount.
	Currency string  `gorm:"type:varchar(8);not null;default:INR"`  // ISO currency code.

	Status PaymentStatus `gorm:"not null;default:1"` // Current payment status.

	SettledAt *time.Time `gorm:"type:timestamp"` // When settlement completed, nil while pending.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

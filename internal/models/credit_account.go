package models

import "time"

// CreditAccountStatus represents the lifecycle state of a credit account.
type CreditAccountStatus int

// CreditAccountStatus constants define account lifecycle states.
const (
	// CreditAccountActive marks an account whose credits may be spent.
	CreditAccountActive CreditAccountStatus = 1
	// CreditAccountExpired marks an account past its expiry date.
	CreditAccountExpired CreditAccountStatus = 2
	// CreditAccountCancelled marks an account closed by support action.
	CreditAccountCancelled CreditAccountStatus = 3
)

// CreditAccount tracks a client's profile view credit balance.
//
// Accounts are never hard-deleted; they only transition status. ViewsUsed is
// mutated exclusively through a conditional increment so the invariant
// 0 <= views_used <= views_allowed holds under concurrent requests.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerID uint64 `gorm:"not null;uniqueIndex"` // Owning client user ID, one account per client.
	Owner   User   `gorm:"foreignKey:OwnerID"`   // Owning user record.

	PlanID   uint64 `gorm:"not null;index"`    // Plan that granted the most recent credits.
	Plan     Plan   `gorm:"foreignKey:PlanID"` // Related plan record.
	PlanName string `gorm:"type:varchar(255)"` // Denormalized plan name at purchase time.

	ViewsAllowed int `gorm:"not null;default:0"` // Total credits ever granted.
	ViewsUsed    int `gorm:"not null;default:0"` // Total credits consumed.

	Status CreditAccountStatus `gorm:"not null;default:1"` // Current lifecycle status.

	StartDate  time.Time  `gorm:"not null"`       // When the account was opened.
	ExpiryDate *time.Time `gorm:"type:timestamp"` // Nil for credit packs, which expire only by exhaustion.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Remaining returns the spendable credit balance, floored at zero.
func (a *CreditAccount) Remaining() int {
	if a == nil {
		return 0
	}
	left := a.ViewsAllowed - a.ViewsUsed
	if left < 0 {
		return 0
	}
	return left
}

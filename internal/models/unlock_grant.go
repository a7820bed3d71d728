package models

import "time"

// TargetType identifies what kind of gated resource a grant unlocks.
type TargetType string

// TargetType constants define unlockable resources.
const (
	// TargetWorkerProfile gates a worker's contact details.
	TargetWorkerProfile TargetType = "worker_profile"
	// TargetWorkerPost gates a worker's project post.
	TargetWorkerPost TargetType = "worker_post"
)

// Valid reports whether the target type is one of the known kinds.
func (t TargetType) Valid() bool {
	return t == TargetWorkerProfile || t == TargetWorkerPost
}

// UnlockGrant records that a client spent a credit to view a target.
//
// Grants are write-once. Expiry is computed from ExpiresAt at read time;
// rows are never deleted for correctness, only pruned opportunistically.
type UnlockGrant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GranteeID uint64     `gorm:"not null;index:idx_unlock_grants_lookup"`               // Client user ID that paid for the unlock.
	Target    TargetType `gorm:"type:varchar(32);not null;index:idx_unlock_grants_lookup"` // Kind of unlocked resource.
	TargetID  uint64     `gorm:"not null;index:idx_unlock_grants_lookup"`               // Unlocked resource ID.

	UnlockedAt time.Time `gorm:"not null"`       // When the credit was charged.
	ExpiresAt  time.Time `gorm:"not null;index"` // UnlockedAt plus the unlock window.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// ValidAt reports whether the grant is still usable at the given instant.
func (g *UnlockGrant) ValidAt(now time.Time) bool {
	return g != nil && now.Before(g.ExpiresAt)
}

// TimeRemaining returns how long the grant stays valid from now, floored at zero.
func (g *UnlockGrant) TimeRemaining(now time.Time) time.Duration {
	if g == nil {
		return 0
	}
	left := g.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

package unlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

// ErrGrantExists indicates another request already holds a valid grant for
// the same (grantee, target) pair, so no new charge should be applied.
var ErrGrantExists = errors.New("valid grant already exists")

// FindValidGrant returns the unexpired grant for the pair, or nil when the
// pair has no grant or only expired ones. Expired rows are treated exactly
// like absent rows; validity is always derived from expires_at.
func FindValidGrant(ctx context.Context, conn *gorm.DB, granteeID uint64, target models.TargetType, targetID uint64, now time.Time) (*models.UnlockGrant, error) {
	if conn == nil {
		return nil, fmt.Errorf("unlock: nil connection")
	}

	var grant models.UnlockGrant
	errFind := conn.WithContext(ctx).
		Where("grantee_id = ? AND target = ? AND target_id = ? AND expires_at > ?", granteeID, target, targetID, now).
		Order("expires_at DESC").
		First(&grant).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("unlock: find grant: %w", errFind)
	}
	return &grant, nil
}

// ClaimGrant inserts a grant only if no valid one exists for the pair.
//
// The INSERT ... SELECT ... WHERE NOT EXISTS form is a single statement, so
// two concurrent unlocks of the same pair cannot both insert; the loser gets
// ErrGrantExists and its surrounding transaction must roll back the charge.
func ClaimGrant(ctx context.Context, tx *gorm.DB, granteeID uint64, target models.TargetType, targetID uint64, now time.Time, window time.Duration) (*models.UnlockGrant, error) {
	if tx == nil {
		return nil, fmt.Errorf("unlock: nil tx")
	}
	if !target.Valid() {
		return nil, fmt.Errorf("unlock: invalid target type %q", target)
	}

	expiresAt := now.Add(window)
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO unlock_grants (grantee_id, target, target_id, unlocked_at, expires_at, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM unlock_grants
			WHERE grantee_id = ? AND target = ? AND target_id = ? AND expires_at > ?
		)`,
		granteeID, target, targetID, now, expiresAt, now,
		granteeID, target, targetID, now,
	)
	if res.Error != nil {
		return nil, fmt.Errorf("unlock: claim grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrGrantExists
	}
	return FindValidGrant(ctx, tx, granteeID, target, targetID, now)
}

// PruneExpired opportunistically deletes grants expired before the cutoff.
//
// Correctness never depends on pruning; FindValidGrant filters on expires_at.
func PruneExpired(ctx context.Context, conn *gorm.DB, cutoff time.Time) (int64, error) {
	if conn == nil {
		return 0, fmt.Errorf("unlock: nil connection")
	}
	res := conn.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&models.UnlockGrant{})
	if res.Error != nil {
		return 0, fmt.Errorf("unlock: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListValidGrants returns all of a client's currently valid grants.
func ListValidGrants(ctx context.Context, conn *gorm.DB, granteeID uint64, now time.Time) ([]models.UnlockGrant, error) {
	if conn == nil {
		return nil, fmt.Errorf("unlock: nil connection")
	}
	var grants []models.UnlockGrant
	if errFind := conn.WithContext(ctx).
		Where("grantee_id = ? AND expires_at > ?", granteeID, now).
		Order("expires_at ASC").
		Find(&grants).Error; errFind != nil {
		return nil, fmt.Errorf("unlock: list grants: %w", errFind)
	}
	return grants, nil
}

package unlock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.UnlockGrant{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestClaimAndFindGrant(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()

	grant, errClaim := ClaimGrant(context.Background(), conn, 1, models.TargetWorkerProfile, 10, now, 24*time.Hour)
	if errClaim != nil {
		t.Fatalf("claim grant: %v", errClaim)
	}
	if !grant.ExpiresAt.Equal(grant.UnlockedAt.Add(24 * time.Hour)) {
		t.Fatalf("expected expiry 24h after unlock, got %s", grant.ExpiresAt.Sub(grant.UnlockedAt))
	}

	found, errFind := FindValidGrant(context.Background(), conn, 1, models.TargetWorkerProfile, 10, now.Add(time.Hour))
	if errFind != nil {
		t.Fatalf("find grant: %v", errFind)
	}
	if found == nil {
		t.Fatal("expected valid grant")
	}
}

func TestClaimGrant_DuplicateRejected(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()

	if _, err := ClaimGrant(context.Background(), conn, 1, models.TargetWorkerPost, 22, now, 24*time.Hour); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := ClaimGrant(context.Background(), conn, 1, models.TargetWorkerPost, 22, now.Add(time.Minute), 24*time.Hour); !errors.Is(err, ErrGrantExists) {
		t.Fatalf("expected ErrGrantExists, got %v", err)
	}

	var count int64
	if err := conn.Model(&models.UnlockGrant{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 grant row, got %d", count)
	}
}

func TestFindValidGrant_ExpiredTreatedAsAbsent(t *testing.T) {
	conn := openTestDB(t)
	start := time.Now().UTC()

	if _, err := ClaimGrant(context.Background(), conn, 2, models.TargetWorkerProfile, 5, start, 24*time.Hour); err != nil {
		t.Fatalf("claim grant: %v", err)
	}

	// One second past expiry: the row exists but must read as absent.
	after := start.Add(24*time.Hour + time.Second)
	found, errFind := FindValidGrant(context.Background(), conn, 2, models.TargetWorkerProfile, 5, after)
	if errFind != nil {
		t.Fatalf("find grant: %v", errFind)
	}
	if found != nil {
		t.Fatal("expected expired grant to be treated as absent")
	}

	// A fresh claim after expiry succeeds again.
	if _, err := ClaimGrant(context.Background(), conn, 2, models.TargetWorkerProfile, 5, after, 24*time.Hour); err != nil {
		t.Fatalf("re-claim after expiry: %v", err)
	}
}

func TestClaimGrant_DifferentPairsIndependent(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()

	if _, err := ClaimGrant(context.Background(), conn, 1, models.TargetWorkerProfile, 10, now, 24*time.Hour); err != nil {
		t.Fatalf("claim profile: %v", err)
	}
	if _, err := ClaimGrant(context.Background(), conn, 1, models.TargetWorkerPost, 10, now, 24*time.Hour); err != nil {
		t.Fatalf("claim post with same id: %v", err)
	}
	if _, err := ClaimGrant(context.Background(), conn, 9, models.TargetWorkerProfile, 10, now, 24*time.Hour); err != nil {
		t.Fatalf("claim same target for other grantee: %v", err)
	}
}

func TestPruneExpired(t *testing.T) {
	conn := openTestDB(t)
	start := time.Now().UTC().Add(-48 * time.Hour)

	if _, err := ClaimGrant(context.Background(), conn, 3, models.TargetWorkerProfile, 1, start, 24*time.Hour); err != nil {
		t.Fatalf("claim old grant: %v", err)
	}
	now := time.Now().UTC()
	if _, err := ClaimGrant(context.Background(), conn, 3, models.TargetWorkerProfile, 2, now, 24*time.Hour); err != nil {
		t.Fatalf("claim fresh grant: %v", err)
	}

	pruned, errPrune := PruneExpired(context.Background(), conn, now)
	if errPrune != nil {
		t.Fatalf("prune: %v", errPrune)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}

	remaining, errList := ListValidGrants(context.Background(), conn, 3, now)
	if errList != nil {
		t.Fatalf("list grants: %v", errList)
	}
	if len(remaining) != 1 || remaining[0].TargetID != 2 {
		t.Fatalf("expected only the fresh grant to remain, got %+v", remaining)
	}
}

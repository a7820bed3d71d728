package access

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	tables := []any{
		&models.User{},
		&models.Plan{},
		&models.CreditAccount{},
		&models.UnlockGrant{},
		&models.WorkerProfile{},
		&models.WorkerPost{},
	}
	if errMigrate := conn.AutoMigrate(tables...); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// seedScenario creates a trial plan, a funded client account, and one listed
// worker profile, returning the client and profile IDs.
func seedScenario(t *testing.T, conn *gorm.DB) (uint64, uint64) {
	t.Helper()
	plan := models.Plan{
		Name:         settings.FreeTrialPlanName,
		ViewsAllowed: settings.FreeTrialViews,
		Features:     []byte("[]"),
		IsTrial:      true,
	}
	if err := conn.Create(&plan).Error; err != nil {
		t.Fatalf("seed trial plan: %v", err)
	}

	const clientID = 1
	if _, err := ledger.NewStore(conn).GrantFreeTrial(context.Background(), clientID); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}

	profile := models.WorkerProfile{
		UserID:       2,
		Headline:     "Electrician",
		Skills:       []byte("[]"),
		City:         "Pune",
		ContactPhone: "+919800000001",
		IsListed:     true,
	}
	if err := conn.Create(&profile).Error; err != nil {
		t.Fatalf("seed worker profile: %v", err)
	}
	return clientID, profile.ID
}

func TestRequestAccess_ChargesOnceThenFree(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)
	engine := NewEngine(conn)

	first, errFirst := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errFirst != nil {
		t.Fatalf("first request: %v", errFirst)
	}
	if !first.Charged {
		t.Fatal("expected first request to charge")
	}
	if first.CreditsRemaining != settings.FreeTrialViews-1 {
		t.Fatalf("expected %d remaining, got %d", settings.FreeTrialViews-1, first.CreditsRemaining)
	}

	second, errSecond := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errSecond != nil {
		t.Fatalf("second request: %v", errSecond)
	}
	if second.Charged {
		t.Fatal("expected second request within the window to be free")
	}
	if second.CreditsRemaining != settings.FreeTrialViews-1 {
		t.Fatalf("expected balance unchanged at %d, got %d", settings.FreeTrialViews-1, second.CreditsRemaining)
	}
	if second.Grant.ID != first.Grant.ID {
		t.Fatalf("expected the same grant, got %d and %d", first.Grant.ID, second.Grant.ID)
	}
}

func TestRequestAccess_RechargesAfterExpiry(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)

	current := time.Now().UTC()
	engine := NewEngine(conn).WithClock(func() time.Time { return current })

	first, errFirst := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errFirst != nil {
		t.Fatalf("first request: %v", errFirst)
	}
	if !first.Charged {
		t.Fatal("expected first request to charge")
	}

	// One second past the window the grant no longer counts.
	current = current.Add(settings.UnlockWindow + time.Second)

	second, errSecond := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errSecond != nil {
		t.Fatalf("request after expiry: %v", errSecond)
	}
	if !second.Charged {
		t.Fatal("expected a fresh charge after the window expired")
	}
	if second.CreditsRemaining != settings.FreeTrialViews-2 {
		t.Fatalf("expected %d remaining, got %d", settings.FreeTrialViews-2, second.CreditsRemaining)
	}
}

func TestRequestAccess_InsufficientCredits(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)
	engine := NewEngine(conn)

	if err := conn.Model(&models.CreditAccount{}).
		Where("owner_id = ?", clientID).
		Update("views_used", settings.FreeTrialViews).Error; err != nil {
		t.Fatalf("exhaust account: %v", err)
	}

	_, errRequest := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if !errors.Is(errRequest, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", errRequest)
	}

	// The failed attempt must leave no grant behind.
	var grants int64
	if err := conn.Model(&models.UnlockGrant{}).Count(&grants).Error; err != nil {
		t.Fatalf("count grants: %v", err)
	}
	if grants != 0 {
		t.Fatalf("expected no grants, got %d", grants)
	}
}

func TestRequestAccess_TargetNotFound(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)
	engine := NewEngine(conn)

	if _, err := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID+100); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound for missing target, got %v", err)
	}

	if err := conn.Model(&models.WorkerProfile{}).
		Where("id = ?", profileID).
		Update("is_listed", false).Error; err != nil {
		t.Fatalf("delist profile: %v", err)
	}
	if _, err := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound for delisted target, got %v", err)
	}

	account, errLoad := ledger.NewStore(conn).Account(context.Background(), clientID)
	if errLoad != nil {
		t.Fatalf("load account: %v", errLoad)
	}
	if account.ViewsUsed != 0 {
		t.Fatalf("expected no charge on failed lookups, got %d used", account.ViewsUsed)
	}
}

func TestPeekAccessStatus(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)
	engine := NewEngine(conn)

	locked, errLocked := engine.PeekAccessStatus(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errLocked != nil {
		t.Fatalf("peek locked: %v", errLocked)
	}
	if locked.IsUnlocked {
		t.Fatal("expected locked status before any unlock")
	}

	account, errLoad := ledger.NewStore(conn).Account(context.Background(), clientID)
	if errLoad != nil {
		t.Fatalf("load account: %v", errLoad)
	}
	if account.ViewsUsed != 0 {
		t.Fatalf("peek must not charge, got %d used", account.ViewsUsed)
	}

	if _, err := engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	unlocked, errUnlocked := engine.PeekAccessStatus(context.Background(), clientID, models.TargetWorkerProfile, profileID)
	if errUnlocked != nil {
		t.Fatalf("peek unlocked: %v", errUnlocked)
	}
	if !unlocked.IsUnlocked {
		t.Fatal("expected unlocked status")
	}
	if unlocked.TimeRemaining <= 0 || unlocked.TimeRemaining > settings.UnlockWindow {
		t.Fatalf("expected time remaining within (0, %s], got %s", settings.UnlockWindow, unlocked.TimeRemaining)
	}
}

func TestRequestAccess_AtMostOneCharge(t *testing.T) {
	conn := openTestDB(t)
	clientID, profileID := seedScenario(t, conn)
	engine := NewEngine(conn)

	// Leave exactly one credit so a double charge would overdraw.
	if err := conn.Model(&models.CreditAccount{}).
		Where("owner_id = ?", clientID).
		Update("views_used", settings.FreeTrialViews-1).Error; err != nil {
		t.Fatalf("set balance: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Decision, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.RequestAccess(context.Background(), clientID, models.TargetWorkerProfile, profileID)
		}(i)
	}
	wg.Wait()

	charged := 0
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil:
			if results[i].Charged {
				charged++
			}
		case errors.Is(errs[i], ErrInsufficientCredits), errors.Is(errs[i], ErrConcurrencyConflict):
			// Acceptable outcomes for losers of the race.
		default:
			t.Fatalf("request %d: unexpected error %v", i, errs[i])
		}
	}
	if charged != 1 {
		t.Fatalf("expected exactly one charged decision, got %d", charged)
	}

	account, errLoad := ledger.NewStore(conn).Account(context.Background(), clientID)
	if errLoad != nil {
		t.Fatalf("load account: %v", errLoad)
	}
	if account.ViewsUsed != settings.FreeTrialViews {
		t.Fatalf("expected exactly one credit consumed, got %d used", account.ViewsUsed)
	}

	var grants int64
	if err := conn.Model(&models.UnlockGrant{}).Count(&grants).Error; err != nil {
		t.Fatalf("count grants: %v", err)
	}
	if grants != 1 {
		t.Fatalf("expected a single grant row, got %d", grants)
	}
}

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
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
	if errMigrate := conn.AutoMigrate(&models.User{}, &models.Plan{}, &models.CreditAccount{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedTrialPlan(t *testing.T, conn *gorm.DB) models.Plan {
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
	return plan
}

func TestGrantFreeTrial(t *testing.T) {
	conn := openTestDB(t)
	seedTrialPlan(t, conn)
	store := NewStore(conn)

	account, err := store.GrantFreeTrial(context.Background(), 7)
	if err != nil {
		t.Fatalf("grant free trial: %v", err)
	}
	if account.ViewsAllowed != settings.FreeTrialViews {
		t.Fatalf("expected %d views allowed, got %d", settings.FreeTrialViews, account.ViewsAllowed)
	}
	if account.ViewsUsed != 0 {
		t.Fatalf("expected 0 views used, got %d", account.ViewsUsed)
	}
	if account.Status != models.CreditAccountActive {
		t.Fatalf("expected active status, got %d", account.Status)
	}

	if _, errDup := store.GrantFreeTrial(context.Background(), 7); !errors.Is(errDup, ErrAlreadyHasAccount) {
		t.Fatalf("expected ErrAlreadyHasAccount, got %v", errDup)
	}
}

func TestApplyPlanPurchase_Additive(t *testing.T) {
	conn := openTestDB(t)
	seedTrialPlan(t, conn)
	store := NewStore(conn)

	if _, err := store.GrantFreeTrial(context.Background(), 3); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}
	if err := conn.Model(&models.CreditAccount{}).
		Where("owner_id = ?", 3).
		Update("views_used", 7).Error; err != nil {
		t.Fatalf("set views used: %v", err)
	}

	pack := models.Plan{Name: "Pro Pack", ViewsAllowed: 40, Features: []byte("[]"), IsEnabled: true}
	if err := conn.Create(&pack).Error; err != nil {
		t.Fatalf("create pack: %v", err)
	}

	account, errApply := ApplyPlanPurchase(context.Background(), conn, 3, pack)
	if errApply != nil {
		t.Fatalf("apply purchase: %v", errApply)
	}
	if account.ViewsAllowed != 50 {
		t.Fatalf("expected 50 views allowed, got %d", account.ViewsAllowed)
	}
	if account.ViewsUsed != 7 {
		t.Fatalf("expected views used unchanged at 7, got %d", account.ViewsUsed)
	}
	if account.Remaining() != 43 {
		t.Fatalf("expected 43 remaining, got %d", account.Remaining())
	}
	if account.PlanName != "Pro Pack" {
		t.Fatalf("expected plan name updated, got %q", account.PlanName)
	}
}

func TestApplyPlanPurchase_NoAccount(t *testing.T) {
	conn := openTestDB(t)
	pack := models.Plan{Name: "Pro Pack", ViewsAllowed: 40, Features: []byte("[]")}
	if err := conn.Create(&pack).Error; err != nil {
		t.Fatalf("create pack: %v", err)
	}

	if _, err := ApplyPlanPurchase(context.Background(), conn, 99, pack); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestConsumeOne(t *testing.T) {
	conn := openTestDB(t)
	seedTrialPlan(t, conn)
	store := NewStore(conn)

	if _, err := store.GrantFreeTrial(context.Background(), 5); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}

	for i := 0; i < settings.FreeTrialViews; i++ {
		account, errConsume := ConsumeOne(context.Background(), conn, 5)
		if errConsume != nil {
			t.Fatalf("consume %d: %v", i, errConsume)
		}
		if account.ViewsUsed != i+1 {
			t.Fatalf("expected %d views used, got %d", i+1, account.ViewsUsed)
		}
		if account.ViewsUsed > account.ViewsAllowed {
			t.Fatalf("invariant broken: used %d > allowed %d", account.ViewsUsed, account.ViewsAllowed)
		}
	}

	if _, errExhausted := ConsumeOne(context.Background(), conn, 5); !errors.Is(errExhausted, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", errExhausted)
	}

	account, errLoad := store.Account(context.Background(), 5)
	if errLoad != nil {
		t.Fatalf("load account: %v", errLoad)
	}
	if account.ViewsUsed != settings.FreeTrialViews {
		t.Fatalf("expected views used capped at %d, got %d", settings.FreeTrialViews, account.ViewsUsed)
	}
}

func TestConsumeOne_UnknownOwner(t *testing.T) {
	conn := openTestDB(t)

	if _, err := ConsumeOne(context.Background(), conn, 404); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRemaining_FlooredAtZero(t *testing.T) {
	account := &models.CreditAccount{ViewsAllowed: 5, ViewsUsed: 9, StartDate: time.Now()}
	if account.Remaining() != 0 {
		t.Fatalf("expected remaining floored at 0, got %d", account.Remaining())
	}
}

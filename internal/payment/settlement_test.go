package payment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"gorm.io/gorm"
)

const testSecret = "test-key-secret"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	tables := []any{&models.User{}, &models.Plan{}, &models.CreditAccount{}, &models.Payment{}}
	if errMigrate := conn.AutoMigrate(tables...); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedPlans(t *testing.T, conn *gorm.DB) (models.Plan, models.Plan) {
	t.Helper()
	trial := models.Plan{
		Name:         settings.FreeTrialPlanName,
		ViewsAllowed: settings.FreeTrialViews,
		Features:     []byte("[]"),
		IsTrial:      true,
	}
	if err := conn.Create(&trial).Error; err != nil {
		t.Fatalf("seed trial plan: %v", err)
	}
	pack := models.Plan{
		Name:         "Starter Pack",
		Price:        499,
		Currency:     "INR",
		ViewsAllowed: 40,
		Features:     []byte("[]"),
		IsEnabled:    true,
	}
	if err := conn.Create(&pack).Error; err != nil {
		t.Fatalf("seed pack: %v", err)
	}
	return trial, pack
}

// seedPendingOrder inserts a PENDING payment record directly, standing in for
// BeginCheckout so tests need no gateway.
func seedPendingOrder(t *testing.T, conn *gorm.DB, payerID uint64, plan models.Plan, orderID string) models.Payment {
	t.Helper()
	record := models.Payment{
		PayerID:        payerID,
		PlanID:         plan.ID,
		GatewayOrderID: orderID,
		Receipt:        "ks_test",
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Status:         models.PaymentStatusPending,
	}
	if err := conn.Create(&record).Error; err != nil {
		t.Fatalf("seed pending order: %v", err)
	}
	return record
}

func TestVerifyAndSettle_CreditsOnce(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	const payerID = 7
	if _, err := ledger.NewStore(conn).GrantFreeTrial(context.Background(), payerID); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}
	seedPendingOrder(t, conn, payerID, pack, "order_1")

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	account, errSettle := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, payerID)
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if account.ViewsAllowed != settings.FreeTrialViews+40 {
		t.Fatalf("expected %d views allowed, got %d", settings.FreeTrialViews+40, account.ViewsAllowed)
	}
	if account.PlanName != "Starter Pack" {
		t.Fatalf("expected plan name updated, got %q", account.PlanName)
	}

	var record models.Payment
	if err := conn.Where("gateway_order_id = ?", "order_1").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Status != models.PaymentStatusSuccess {
		t.Fatalf("expected SUCCESS status, got %d", record.Status)
	}
	if record.SettledAt == nil {
		t.Fatal("expected settled_at to be set")
	}
	if record.GatewayPaymentID != "pay_1" {
		t.Fatalf("expected payment id recorded, got %q", record.GatewayPaymentID)
	}
}

func TestVerifyAndSettle_IdempotentRedelivery(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	const payerID = 7
	if _, err := ledger.NewStore(conn).GrantFreeTrial(context.Background(), payerID); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}
	seedPendingOrder(t, conn, payerID, pack, "order_1")

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	if _, err := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, payerID); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	replay, errReplay := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, payerID)
	if errReplay != nil {
		t.Fatalf("replay: %v", errReplay)
	}
	if replay.ViewsAllowed != settings.FreeTrialViews+40 {
		t.Fatalf("expected replay to leave balance unchanged at %d, got %d", settings.FreeTrialViews+40, replay.ViewsAllowed)
	}
}

func TestVerifyAndSettle_InvalidSignatureNoMutation(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	const payerID = 7
	if _, err := ledger.NewStore(conn).GrantFreeTrial(context.Background(), payerID); err != nil {
		t.Fatalf("grant free trial: %v", err)
	}
	seedPendingOrder(t, conn, payerID, pack, "order_1")

	if _, err := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", "bogus", pack.ID, payerID); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	var record models.Payment
	if err := conn.Where("gateway_order_id = ?", "order_1").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Status != models.PaymentStatusPending {
		t.Fatalf("expected record to stay PENDING, got %d", record.Status)
	}

	account, errLoad := ledger.NewStore(conn).Account(context.Background(), payerID)
	if errLoad != nil {
		t.Fatalf("load account: %v", errLoad)
	}
	if account.ViewsAllowed != settings.FreeTrialViews {
		t.Fatalf("expected no credits applied, got %d allowed", account.ViewsAllowed)
	}
}

func TestVerifyAndSettle_UnknownPlanStaysPending(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	const payerID = 7
	record := seedPendingOrder(t, conn, payerID, pack, "order_1")

	// Plan vanished between checkout and callback.
	if err := conn.Delete(&models.Plan{}, pack.ID).Error; err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	if _, err := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, payerID); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}

	var reloaded models.Payment
	if err := conn.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if reloaded.Status != models.PaymentStatusPending {
		t.Fatalf("expected PENDING for manual reconciliation, got %d", reloaded.Status)
	}
}

func TestVerifyAndSettle_ZeroBaselineForNewPayer(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	// Payer bought a pack before ever claiming the free trial.
	const payerID = 42
	seedPendingOrder(t, conn, payerID, pack, "order_1")

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	account, errSettle := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, payerID)
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if account.ViewsAllowed != 40 {
		t.Fatalf("expected pack credits only, got %d allowed", account.ViewsAllowed)
	}
	if account.ViewsUsed != 0 {
		t.Fatalf("expected 0 used, got %d", account.ViewsUsed)
	}
}

func TestVerifyAndSettle_WrongPayerRejected(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	seedPendingOrder(t, conn, 7, pack, "order_1")

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	if _, err := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, 8); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected rejection for mismatched payer, got %v", err)
	}
}

func TestVerifyAndSettle_UnknownOrder(t *testing.T) {
	conn := openTestDB(t)
	seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	sig := ExpectedSignature("order_missing", "pay_1", testSecret)
	if _, err := settler.VerifyAndSettle(context.Background(), "order_missing", "pay_1", sig, 1, 7); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestVerifyAndSettle_FailedOrderRejected(t *testing.T) {
	conn := openTestDB(t)
	_, pack := seedPlans(t, conn)
	settler := NewSettler(conn, testSecret)

	record := seedPendingOrder(t, conn, 7, pack, "order_1")
	now := time.Now().UTC()
	if err := conn.Model(&models.Payment{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{"status": models.PaymentStatusFailed, "updated_at": now}).Error; err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	sig := ExpectedSignature("order_1", "pay_1", testSecret)
	if _, err := settler.VerifyAndSettle(context.Background(), "order_1", "pay_1", sig, pack.ID, 7); !errors.Is(err, ErrOrderFailed) {
		t.Fatalf("expected ErrOrderFailed, got %v", err)
	}
}

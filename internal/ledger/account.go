package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors for credit account operations.
var (
	// ErrAccountNotFound indicates the client has no credit account yet.
	ErrAccountNotFound = errors.New("credit account not found")
	// ErrAlreadyHasAccount indicates a duplicate free-trial grant attempt.
	ErrAlreadyHasAccount = errors.New("credit account already exists")
	// ErrInsufficientCredits indicates the balance cannot cover one view.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Store performs credit account reads and mutations.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store backed by GORM.
func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Account loads a client's credit account by owner ID.
func (s *Store) Account(ctx context.Context, ownerID uint64) (*models.CreditAccount, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger: not initialized")
	}
	return loadAccount(ctx, s.db, ownerID)
}

// Remaining returns the client's spendable credit balance.
func (s *Store) Remaining(ctx context.Context, ownerID uint64) (int, error) {
	account, errLoad := s.Account(ctx, ownerID)
	if errLoad != nil {
		return 0, errLoad
	}
	return account.Remaining(), nil
}

// GrantFreeTrial opens a credit account seeded with the trial allotment.
//
// Called once per client when OTP verification succeeds. The unique index on
// owner_id turns a concurrent duplicate into ErrAlreadyHasAccount.
func (s *Store) GrantFreeTrial(ctx context.Context, ownerID uint64) (*models.CreditAccount, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger: not initialized")
	}

	var trial models.Plan
	if errFind := s.db.WithContext(ctx).Where("is_trial = ?", true).First(&trial).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: load trial plan: %w", errFind)
	}

	var existing models.CreditAccount
	errExisting := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&existing).Error
	if errExisting == nil {
		return nil, ErrAlreadyHasAccount
	}
	if !errors.Is(errExisting, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ledger: check existing account: %w", errExisting)
	}

	now := time.Now().UTC()
	account := models.CreditAccount{
		OwnerID:      ownerID,
		PlanID:       trial.ID,
		PlanName:     trial.Name,
		ViewsAllowed: trial.ViewsAllowed,
		ViewsUsed:    0,
		Status:       models.CreditAccountActive,
		StartDate:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&account).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return nil, ErrAlreadyHasAccount
		}
		return nil, fmt.Errorf("ledger: create account: %w", errCreate)
	}
	return &account, nil
}

// ApplyPlanPurchase adds a purchased pack's credits to the owner's account.
//
// Credits are additive; unused balance carries over and views_used is never
// reset. Plan metadata is updated to the most recent purchase. Runs against
// the supplied tx so settlement can wrap it with the payment status change.
func ApplyPlanPurchase(ctx context.Context, tx *gorm.DB, ownerID uint64, plan models.Plan) (*models.CreditAccount, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: nil tx")
	}

	now := time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{
			"views_allowed": gorm.Expr("views_allowed + ?", plan.ViewsAllowed),
			"plan_id":       plan.ID,
			"plan_name":     plan.Name,
			"status":        models.CreditAccountActive,
			"updated_at":    now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("ledger: apply purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	return loadAccount(ctx, tx, ownerID)
}

// OpenZeroBaseline creates an empty account for an owner with no trial.
//
// Used by settlement when a purchase arrives before any free trial was
// granted, so ApplyPlanPurchase has a row to add credits to.
func OpenZeroBaseline(ctx context.Context, tx *gorm.DB, ownerID uint64, plan models.Plan) (*models.CreditAccount, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: nil tx")
	}
	now := time.Now().UTC()
	account := models.CreditAccount{
		OwnerID:      ownerID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		ViewsAllowed: 0,
		ViewsUsed:    0,
		Status:       models.CreditAccountActive,
		StartDate:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := tx.WithContext(ctx).Create(&account).Error; errCreate != nil {
		return nil, fmt.Errorf("ledger: create zero baseline: %w", errCreate)
	}
	return &account, nil
}

// ConsumeOne atomically charges a single view credit.
//
// The guard views_used < views_allowed makes the increment a conditional
// update: two concurrent charges against one remaining credit cannot both
// succeed, whichever loses sees zero rows affected and gets
// ErrInsufficientCredits.
func ConsumeOne(ctx context.Context, tx *gorm.DB, ownerID uint64) (*models.CreditAccount, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: nil tx")
	}

	now := time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("owner_id = ? AND status = ? AND views_used < views_allowed", ownerID, models.CreditAccountActive).
		Updates(map[string]any{
			"views_used": gorm.Expr("views_used + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("ledger: consume credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, errLoad := loadAccount(ctx, tx, ownerID); errLoad != nil {
			return nil, errLoad
		}
		return nil, ErrInsufficientCredits
	}
	return loadAccount(ctx, tx, ownerID)
}

// loadAccount fetches an account row, mapping absence to ErrAccountNotFound.
func loadAccount(ctx context.Context, conn *gorm.DB, ownerID uint64) (*models.CreditAccount, error) {
	var account models.CreditAccount
	errFind := conn.WithContext(ctx).Where("owner_id = ?", ownerID).First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger: load account: %w", errFind)
	}
	return &account, nil
}

// isUniqueViolation reports whether the error is a unique constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sentinel errors for settlement.
var (
	// ErrInvalidSignature indicates the callback signature did not match.
	ErrInvalidSignature = errors.New("invalid gateway signature")
	// ErrInvalidPlan indicates the purchased plan is unknown or disabled.
	// The settlement stays PENDING for manual reconciliation because money
	// may already have moved at the gateway.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrOrderNotFound indicates no settlement record exists for the order.
	ErrOrderNotFound = errors.New("gateway order not found")
	// ErrOrderFailed indicates the order was already marked FAILED and cannot
	// settle; a callback for it needs manual review.
	ErrOrderFailed = errors.New("gateway order already failed")
)

// Settler verifies gateway callbacks and applies credit pack purchases.
type Settler struct {
	db     *gorm.DB
	secret string
}

// NewSettler constructs a Settler with the gateway shared secret.
func NewSettler(db *gorm.DB, secret string) *Settler {
	return &Settler{db: db, secret: secret}
}

// BeginCheckout creates the gateway order and the local PENDING record.
func (s *Settler) BeginCheckout(ctx context.Context, gateway OrderCreator, payerID, planID uint64) (*models.Payment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("payment: not initialized")
	}

	var plan models.Plan
	if errFind := s.db.WithContext(ctx).
		Where("id = ? AND is_enabled = ?", planID, true).
		First(&plan).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidPlan
		}
		return nil, fmt.Errorf("payment: load plan: %w", errFind)
	}

	receipt := "ks_" + uuid.NewString()
	orderID, errOrder := gateway.CreateOrder(ctx, plan.Price, plan.Currency, receipt)
	if errOrder != nil {
		return nil, errOrder
	}

	now := time.Now().UTC()
	record := models.Payment{
		PayerID:        payerID,
		PlanID:         plan.ID,
		GatewayOrderID: orderID,
		Receipt:        receipt,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Status:         models.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return nil, fmt.Errorf("payment: create pending record: %w", errCreate)
	}
	return &record, nil
}

// VerifyAndSettle authenticates a gateway callback and credits the payer.
//
// Redelivery of an already settled order returns the current account
// unchanged. An unknown plan leaves the record PENDING and never marks it
// FAILED silently.
func (s *Settler) VerifyAndSettle(ctx context.Context, orderID, paymentID, signature string, planID, payerID uint64) (*models.CreditAccount, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("payment: not initialized")
	}

	if !VerifySignature(orderID, paymentID, signature, s.secret) {
		return nil, ErrInvalidSignature
	}

	var account *models.CreditAccount
	errTx := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.Payment
		if errFind := tx.WithContext(ctx).
			Where("gateway_order_id = ?", orderID).
			First(&record).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("payment: load record: %w", errFind)
		}

		if record.PayerID != payerID || record.PlanID != planID {
			return ErrInvalidSignature
		}

		// Idempotent replay: the order already settled, credits were
		// already applied exactly once.
		if record.Status == models.PaymentStatusSuccess {
			loaded, errLoad := ledger.NewStore(tx).Account(ctx, record.PayerID)
			if errLoad != nil {
				return errLoad
			}
			account = loaded
			return nil
		}
		if record.Status == models.PaymentStatusFailed {
			return ErrOrderFailed
		}

		var plan models.Plan
		if errPlan := tx.WithContext(ctx).First(&plan, record.PlanID).Error; errPlan != nil {
			if errors.Is(errPlan, gorm.ErrRecordNotFound) {
				return ErrInvalidPlan
			}
			return fmt.Errorf("payment: load plan: %w", errPlan)
		}

		now := time.Now().UTC()
		res := tx.WithContext(ctx).
			Model(&models.Payment{}).
			Where("id = ? AND status = ?", record.ID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":             models.PaymentStatusSuccess,
				"gateway_payment_id": paymentID,
				"gateway_signature":  signature,
				"settled_at":         now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return fmt.Errorf("payment: mark success: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent callback delivery settled first; reload and
			// return its outcome.
			loaded, errLoad := ledger.NewStore(tx).Account(ctx, record.PayerID)
			if errLoad != nil {
				return errLoad
			}
			account = loaded
			return nil
		}

		applied, errApply := ledger.ApplyPlanPurchase(ctx, tx, record.PayerID, plan)
		if errors.Is(errApply, ledger.ErrAccountNotFound) {
			if _, errOpen := ledger.OpenZeroBaseline(ctx, tx, record.PayerID, plan); errOpen != nil {
				return errOpen
			}
			applied, errApply = ledger.ApplyPlanPurchase(ctx, tx, record.PayerID, plan)
		}
		if errApply != nil {
			return errApply
		}
		account = applied
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrInvalidPlan) || errors.Is(errTx, ErrOrderNotFound) || errors.Is(errTx, ErrOrderFailed) || errors.Is(errTx, ErrInvalidSignature) {
			return nil, errTx
		}
		log.WithError(errTx).Error("payment: settlement transaction failed")
		return nil, errTx
	}
	return account, nil
}

package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds baseline rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.CreditAccount{},
		&models.UnlockGrant{},
		&models.Payment{},
		&models.WorkerProfile{},
		&models.WorkerPost{},
		&models.Job{},
		&models.JobApplication{},
		&models.BusinessListing{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureTrialPlan(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureTrialPlan seeds the free-trial pseudo plan referenced by new accounts.
func ensureTrialPlan(conn *gorm.DB) error {
	var plan models.Plan
	errFind := conn.Where("is_trial = ?", true).First(&plan).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: find trial plan: %w", errFind)
	}

	now := time.Now().UTC()
	trial := models.Plan{
		Name:         settings.FreeTrialPlanName,
		Price:        0,
		Currency:     "INR",
		Description:  "Starter credits granted at registration",
		ViewsAllowed: settings.FreeTrialViews,
		Features:     []byte(`["view worker contact details","unlock worker posts"]`),
		IsEnabled:    false,
		IsTrial:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := conn.Create(&trial).Error; errCreate != nil {
		return fmt.Errorf("db: seed trial plan: %w", errCreate)
	}
	return nil
}

// TrialPlan loads the seeded free-trial plan.
func TrialPlan(conn *gorm.DB) (models.Plan, error) {
	var plan models.Plan
	if errFind := conn.Where("is_trial = ?", true).First(&plan).Error; errFind != nil {
		return models.Plan{}, fmt.Errorf("db: trial plan missing: %w", errFind)
	}
	return plan, nil
}

package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"github.com/kaamsetu-in/kaamsetu/internal/unlock"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sentinel errors for access decisions.
var (
	// ErrTargetNotFound indicates the worker profile or post no longer exists.
	ErrTargetNotFound = errors.New("target not found")
	// ErrConcurrencyConflict indicates a transient conflict; the caller may
	// retry the request once.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrInsufficientCredits mirrors the ledger sentinel for callers that
	// only import this package.
	ErrInsufficientCredits = ledger.ErrInsufficientCredits
	// ErrAccountNotFound mirrors the ledger sentinel for callers that only
	// import this package.
	ErrAccountNotFound = ledger.ErrAccountNotFound
)

// Decision is the outcome of a successful access request.
type Decision struct {
	Charged          bool               // Whether this request consumed a credit.
	CreditsRemaining int                // Balance after the decision.
	Grant            models.UnlockGrant // The valid grant backing the access.
}

// Status describes unlock state without side effects.
type Status struct {
	IsUnlocked    bool          // Whether a valid grant exists.
	TimeRemaining time.Duration // How long the grant stays valid, zero when locked.
}

// Engine is the single authority deciding whether a client may view a
// gated target and whether that costs a credit.
//
// The charge and the grant insert always commit or roll back together;
// a client is never charged without receiving the unlock.
type Engine struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

// NewEngine constructs an Engine with the default 24h unlock window.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, window: settings.UnlockWindow, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the engine clock, used by tests to control expiry.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RequestAccess decides whether the client may view the target, charging
// one credit when no valid grant exists.
//
// Order is load-bearing: an existing valid grant always short-circuits to a
// free decision, and the consume plus grant insert run inside one
// transaction so a failure after the charge rolls the credit back.
func (e *Engine) RequestAccess(ctx context.Context, clientID uint64, target models.TargetType, targetID uint64) (Decision, error) {
	if e == nil || e.db == nil {
		return Decision{}, fmt.Errorf("access: not initialized")
	}
	if !target.Valid() {
		return Decision{}, fmt.Errorf("access: invalid target type %q", target)
	}

	if errExists := e.targetExists(ctx, target, targetID); errExists != nil {
		return Decision{}, errExists
	}

	now := e.now()

	// Already unlocked: free, no state change.
	existing, errFind := unlock.FindValidGrant(ctx, e.db, clientID, target, targetID, now)
	if errFind != nil {
		return Decision{}, errFind
	}
	if existing != nil {
		remaining, errRemaining := ledger.NewStore(e.db).Remaining(ctx, clientID)
		if errRemaining != nil {
			return Decision{}, errRemaining
		}
		return Decision{Charged: false, CreditsRemaining: remaining, Grant: *existing}, nil
	}

	decision, errCharge := e.charge(ctx, clientID, target, targetID)
	if errors.Is(errCharge, ErrConcurrencyConflict) {
		// One bounded retry of the whole charge transaction. The grant
		// insert is never retried on its own, so a duplicate grant cannot
		// be created.
		for attempt := 0; attempt < settings.ChargeRetryLimit; attempt++ {
			decision, errCharge = e.charge(ctx, clientID, target, targetID)
			if !errors.Is(errCharge, ErrConcurrencyConflict) {
				break
			}
		}
	}
	return decision, errCharge
}

// charge runs the consume-then-claim transaction for one unlock attempt.
func (e *Engine) charge(ctx context.Context, clientID uint64, target models.TargetType, targetID uint64) (Decision, error) {
	now := e.now()

	var decision Decision
	errTx := e.db.Transaction(func(tx *gorm.DB) error {
		account, errConsume := ledger.ConsumeOne(ctx, tx, clientID)
		if errConsume != nil {
			return errConsume
		}

		grant, errClaim := unlock.ClaimGrant(ctx, tx, clientID, target, targetID, now, e.window)
		if errClaim != nil {
			// ErrGrantExists rolls back the consume: a concurrent request
			// won the claim, so this client keeps the credit and reads the
			// winner's grant after the rollback.
			return errClaim
		}

		decision = Decision{Charged: true, CreditsRemaining: account.Remaining(), Grant: *grant}
		return nil
	})
	if errTx == nil {
		return decision, nil
	}

	if errors.Is(errTx, unlock.ErrGrantExists) {
		grant, errFind := unlock.FindValidGrant(ctx, e.db, clientID, target, targetID, e.now())
		if errFind != nil {
			return Decision{}, errFind
		}
		if grant == nil {
			// The winning grant expired between claim and re-read; treat as
			// transient and let the caller's retry charge afresh.
			return Decision{}, ErrConcurrencyConflict
		}
		remaining, errRemaining := ledger.NewStore(e.db).Remaining(ctx, clientID)
		if errRemaining != nil {
			return Decision{}, errRemaining
		}
		return Decision{Charged: false, CreditsRemaining: remaining, Grant: *grant}, nil
	}

	if errors.Is(errTx, ledger.ErrInsufficientCredits) || errors.Is(errTx, ledger.ErrAccountNotFound) {
		return Decision{}, errTx
	}

	log.WithError(errTx).Warn("access: charge transaction failed")
	return Decision{}, ErrConcurrencyConflict
}

// PeekAccessStatus reports unlock state without ever charging.
func (e *Engine) PeekAccessStatus(ctx context.Context, clientID uint64, target models.TargetType, targetID uint64) (Status, error) {
	if e == nil || e.db == nil {
		return Status{}, fmt.Errorf("access: not initialized")
	}

	now := e.now()
	grant, errFind := unlock.FindValidGrant(ctx, e.db, clientID, target, targetID, now)
	if errFind != nil {
		return Status{}, errFind
	}
	if grant == nil {
		return Status{IsUnlocked: false}, nil
	}
	return Status{IsUnlocked: true, TimeRemaining: grant.TimeRemaining(now)}, nil
}

// targetExists verifies the gated resource is still present and listed.
func (e *Engine) targetExists(ctx context.Context, target models.TargetType, targetID uint64) error {
	var count int64
	var errCount error
	switch target {
	case models.TargetWorkerProfile:
		errCount = e.db.WithContext(ctx).Model(&models.WorkerProfile{}).
			Where("id = ? AND is_listed = ?", targetID, true).
			Count(&count).Error
	case models.TargetWorkerPost:
		errCount = e.db.WithContext(ctx).Model(&models.WorkerPost{}).
			Where("id = ? AND is_listed = ?", targetID, true).
			Count(&count).Error
	default:
		return fmt.Errorf("access: invalid target type %q", target)
	}
	if errCount != nil {
		return fmt.Errorf("access: check target: %w", errCount)
	}
	if count == 0 {
		return ErrTargetNotFound
	}
	return nil
}

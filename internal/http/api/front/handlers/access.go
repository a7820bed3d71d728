package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/access"
	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/ratelimit"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"github.com/kaamsetu-in/kaamsetu/internal/unlock"
	"gorm.io/gorm"
)

// AccessHandler exposes the unlock engine to clients.
type AccessHandler struct {
	db      *gorm.DB
	engine  *access.Engine
	limiter ratelimit.Limiter
}

// NewAccessHandler constructs an AccessHandler.
func NewAccessHandler(db *gorm.DB, engine *access.Engine, limiter ratelimit.Limiter) *AccessHandler {
	return &AccessHandler{db: db, engine: engine, limiter: limiter}
}

// parseTarget reads the target type and ID from path parameters.
func parseTarget(c *gin.Context) (models.TargetType, uint64, bool) {
	var target models.TargetType
	switch c.Param("type") {
	case "workers":
		target = models.TargetWorkerProfile
	case "posts":
		target = models.TargetWorkerPost
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown target type"})
		return "", 0, false
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return "", 0, false
	}
	return target, id, true
}

// Unlock charges a credit if needed and returns the target's full detail.
func (h *AccessHandler) Unlock(c *gin.Context) {
	userID := getUserID(c)
	target, targetID, ok := parseTarget(c)
	if !ok {
		return
	}

	result, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForUnlock(userID), settings.UnlockAttemptLimitPerSecond, time.Second, time.Now().UTC())
	if errAllow == nil && !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many unlock attempts"})
		return
	}

	decision, errDecide := h.engine.RequestAccess(c.Request.Context(), userID, target, targetID)
	if errDecide != nil {
		switch {
		case errors.Is(errDecide, access.ErrInsufficientCredits):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		case errors.Is(errDecide, access.ErrTargetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		case errors.Is(errDecide, access.ErrAccountNotFound):
			c.JSON(http.StatusForbidden, gin.H{"error": "no credit account"})
		case errors.Is(errDecide, access.ErrConcurrencyConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "conflict, retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unlock failed"})
		}
		return
	}

	detail, errDetail := h.loadDetail(c, target, targetID)
	if errDetail != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load target failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"charged":           decision.Charged,
		"credits_remaining": decision.CreditsRemaining,
		"expires_at":        decision.Grant.ExpiresAt,
		"detail":            detail,
	})
}

// Status reports locked/unlocked state without charging.
func (h *AccessHandler) Status(c *gin.Context) {
	userID := getUserID(c)
	target, targetID, ok := parseTarget(c)
	if !ok {
		return
	}

	status, errPeek := h.engine.PeekAccessStatus(c.Request.Context(), userID, target, targetID)
	if errPeek != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status check failed"})
		return
	}

	resp := gin.H{"is_unlocked": status.IsUnlocked}
	if status.IsUnlocked {
		resp["time_remaining_seconds"] = int64(status.TimeRemaining / time.Second)
	}
	c.JSON(http.StatusOK, resp)
}

// Balance returns the client's current credit balance.
func (h *AccessHandler) Balance(c *gin.Context) {
	userID := getUserID(c)

	account, errLoad := ledger.NewStore(h.db).Account(c.Request.Context(), userID)
	if errLoad != nil {
		if errors.Is(errLoad, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no credit account"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load account failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan_name":         account.PlanName,
		"views_allowed":     account.ViewsAllowed,
		"views_used":        account.ViewsUsed,
		"credits_remaining": account.Remaining(),
		"status":            account.Status,
	})
}

// Grants lists the client's currently valid unlocks.
func (h *AccessHandler) Grants(c *gin.Context) {
	userID := getUserID(c)
	now := time.Now().UTC()

	grants, errList := unlock.ListValidGrants(c.Request.Context(), h.db, userID, now)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list grants failed"})
		return
	}

	items := make([]gin.H, 0, len(grants))
	for _, grant := range grants {
		items = append(items, gin.H{
			"target":                 grant.Target,
			"target_id":              grant.TargetID,
			"unlocked_at":            grant.UnlockedAt,
			"expires_at":             grant.ExpiresAt,
			"time_remaining_seconds": int64(grant.TimeRemaining(now) / time.Second),
		})
	}
	c.JSON(http.StatusOK, gin.H{"grants": items})
}

// loadDetail returns the gated full-detail payload for an unlocked target.
func (h *AccessHandler) loadDetail(c *gin.Context, target models.TargetType, targetID uint64) (gin.H, error) {
	switch target {
	case models.TargetWorkerProfile:
		var profile models.WorkerProfile
		if errFind := h.db.WithContext(c.Request.Context()).First(&profile, targetID).Error; errFind != nil {
			return nil, errFind
		}
		return gin.H{
			"id":            profile.ID,
			"headline":      profile.Headline,
			"bio":           profile.Bio,
			"skills":        profile.Skills,
			"city":          profile.City,
			"daily_rate":    profile.DailyRate,
			"experience":    profile.Experience,
			"contact_phone": profile.ContactPhone,
			"contact_email": profile.ContactEmail,
		}, nil
	default:
		var post models.WorkerPost
		if errFind := h.db.WithContext(c.Request.Context()).First(&post, targetID).Error; errFind != nil {
			return nil, errFind
		}
		return gin.H{
			"id":          post.ID,
			"worker_id":   post.WorkerID,
			"title":       post.Title,
			"description": post.Description,
			"image_urls":  post.ImageURLs,
			"budget":      post.Budget,
		}, nil
	}
}

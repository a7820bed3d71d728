package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

// PlanHandler lists purchasable credit packs.
type PlanHandler struct {
	db *gorm.DB
}

// NewPlanHandler constructs a PlanHandler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// List returns enabled plans ordered for display.
func (h *PlanHandler) List(c *gin.Context) {
	var plans []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ? AND is_trial = ?", true, false).
		Order("sort_order ASC, id ASC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query plans failed"})
		return
	}

	items := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		items = append(items, gin.H{
			"id":            plan.ID,
			"name":          plan.Name,
			"price":         plan.Price,
			"currency":      plan.Currency,
			"description":   plan.Description,
			"views_allowed": plan.ViewsAllowed,
			"features":      plan.Features,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": items})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/db"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

// BusinessHandler handles the business directory.
type BusinessHandler struct {
	db *gorm.DB
}

// NewBusinessHandler constructs a BusinessHandler.
func NewBusinessHandler(conn *gorm.DB) *BusinessHandler {
	return &BusinessHandler{db: conn}
}

// listingRequest defines the listing creation body.
type listingRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
}

// Create adds a directory listing for the caller.
func (h *BusinessHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body listingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	now := time.Now().UTC()
	listing := models.BusinessListing{
		OwnerID:     userID,
		Name:        body.Name,
		Category:    body.Category,
		Description: body.Description,
		City:        body.City,
		Phone:       body.Phone,
		IsListed:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&listing).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create listing failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": listing.ID})
}

// List returns listed businesses, filtered by category or city.
func (h *BusinessHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Model(&models.BusinessListing{}).
		Where("is_listed = ?", true)

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if city := c.Query("city"); city != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "city"), db.NormalizeLikePattern(h.db, "%"+city+"%"))
	}

	var listings []models.BusinessListing
	if errFind := query.Order("created_at DESC").Limit(50).Find(&listings).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list businesses failed"})
		return
	}

	items := make([]gin.H, 0, len(listings))
	for _, listing := range listings {
		items = append(items, gin.H{
			"id":          listing.ID,
			"name":        listing.Name,
			"category":    listing.Category,
			"description": listing.Description,
			"city":        listing.City,
			"phone":       listing.Phone,
			"logo_url":    listing.LogoURL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"businesses": items})
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/access"
	"github.com/kaamsetu-in/kaamsetu/internal/db"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/uploads"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkerHandler handles worker profiles and posts.
type WorkerHandler struct {
	db       *gorm.DB
	engine   *access.Engine
	uploader uploads.Uploader
}

// NewWorkerHandler constructs a WorkerHandler.
func NewWorkerHandler(conn *gorm.DB, engine *access.Engine, uploader uploads.Uploader) *WorkerHandler {
	return &WorkerHandler{db: conn, engine: engine, uploader: uploader}
}

// profileRequest defines the profile upsert body.
type profileRequest struct {
	Headline     string   `json:"headline"`
	Bio          string   `json:"bio"`
	Skills       []string `json:"skills"`
	City         string   `json:"city"`
	DailyRate    float64  `json:"daily_rate"`
	Experience   int      `json:"experience"`
	ContactPhone string   `json:"contact_phone"`
	ContactEmail string   `json:"contact_email"`
}

// UpsertProfile creates or updates the caller's worker profile.
func (h *WorkerHandler) UpsertProfile(c *gin.Context) {
	userID := getUserID(c)

	var body profileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	skills, errSkills := jsonArray(body.Skills)
	if errSkills != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skills"})
		return
	}

	now := time.Now().UTC()
	profile := models.WorkerProfile{
		UserID:       userID,
		Headline:     body.Headline,
		Bio:          body.Bio,
		Skills:       skills,
		City:         body.City,
		DailyRate:    body.DailyRate,
		Experience:   body.Experience,
		ContactPhone: body.ContactPhone,
		ContactEmail: body.ContactEmail,
		IsListed:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errUpsert := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"headline", "bio", "skills", "city", "daily_rate", "experience",
			"contact_phone", "contact_email", "updated_at",
		}),
	}).Create(&profile).Error; errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save profile failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": profile.ID})
}

// Search lists listed worker profiles, filtered by city or skill text.
// Contact fields are never included here; they require an unlock.
func (h *WorkerHandler) Search(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Model(&models.WorkerProfile{}).
		Where("is_listed = ?", true)

	if city := c.Query("city"); city != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "city"), db.NormalizeLikePattern(h.db, "%"+city+"%"))
	}
	if q := c.Query("q"); q != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "headline"), db.NormalizeLikePattern(h.db, "%"+q+"%"))
	}

	var profiles []models.WorkerProfile
	if errFind := query.Order("updated_at DESC").Limit(50).Find(&profiles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	items := make([]gin.H, 0, len(profiles))
	for _, profile := range profiles {
		items = append(items, publicProfileView(profile))
	}
	c.JSON(http.StatusOK, gin.H{"workers": items})
}

// Get returns one profile; contact fields appear only when unlocked.
func (h *WorkerHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var profile models.WorkerProfile
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_listed = ?", id, true).
		First(&profile).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load worker failed"})
		return
	}

	view := publicProfileView(profile)

	status, errPeek := h.engine.PeekAccessStatus(c.Request.Context(), getUserID(c), models.TargetWorkerProfile, profile.ID)
	if errPeek == nil && status.IsUnlocked {
		view["contact_phone"] = profile.ContactPhone
		view["contact_email"] = profile.ContactEmail
		view["time_remaining_seconds"] = int64(status.TimeRemaining / time.Second)
	}
	view["is_unlocked"] = errPeek == nil && status.IsUnlocked
	c.JSON(http.StatusOK, view)
}

// postRequest defines the worker post creation body.
type postRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget"`
}

// CreatePost publishes a new gated project post.
func (h *WorkerHandler) CreatePost(c *gin.Context) {
	userID := getUserID(c)

	var body postRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	now := time.Now().UTC()
	post := models.WorkerPost{
		WorkerID:    userID,
		Title:       body.Title,
		Description: body.Description,
		ImageURLs:   datatypes.JSON([]byte("[]")),
		Budget:      body.Budget,
		IsListed:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&post).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create post failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": post.ID})
}

// UploadPostImage attaches an uploaded image URL to a post.
func (h *WorkerHandler) UploadPostImage(c *gin.Context) {
	userID := getUserID(c)
	postID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || postID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var post models.WorkerPost
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND worker_id = ?", postID, userID).
		First(&post).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load post failed"})
		return
	}

	file, header, errFile := c.Request.FormFile("image")
	if errFile != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer func() { _ = file.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(file, 8<<20))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	publicURL, errUpload := h.uploader.Upload(c.Request.Context(), header.Filename, data)
	if errUpload != nil {
		log.WithError(errUpload).Error("workers: image upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	urls, errAppend := appendJSONArray(post.ImageURLs, publicURL)
	if errAppend != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update post failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.WorkerPost{}).
		Where("id = ?", post.ID).
		Updates(map[string]any{"image_urls": urls, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update post failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": publicURL})
}

// ListPosts returns listed posts with gated fields withheld.
func (h *WorkerHandler) ListPosts(c *gin.Context) {
	var posts []models.WorkerPost
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_listed = ?", true).
		Order("created_at DESC").
		Limit(50).
		Find(&posts).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list posts failed"})
		return
	}

	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		items = append(items, gin.H{
			"id":        post.ID,
			"worker_id": post.WorkerID,
			"title":     post.Title,
		})
	}
	c.JSON(http.StatusOK, gin.H{"posts": items})
}

// publicProfileView returns the ungated subset of a profile.
func publicProfileView(profile models.WorkerProfile) gin.H {
	return gin.H{
		"id":         profile.ID,
		"headline":   profile.Headline,
		"skills":     profile.Skills,
		"city":       profile.City,
		"daily_rate": profile.DailyRate,
		"experience": profile.Experience,
	}
}

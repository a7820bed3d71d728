package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/db"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobHandler handles client job posts and worker applications.
type JobHandler struct {
	db *gorm.DB
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(conn *gorm.DB) *JobHandler {
	return &JobHandler{db: conn}
}

// jobRequest defines the job creation body.
type jobRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	City        string   `json:"city"`
	Budget      float64  `json:"budget"`
}

// Create posts a new job for the calling client.
func (h *JobHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body jobRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	skills, errSkills := jsonArray(body.Skills)
	if errSkills != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skills"})
		return
	}

	now := time.Now().UTC()
	job := models.Job{
		ClientID:    userID,
		Title:       body.Title,
		Description: body.Description,
		Skills:      skills,
		City:        body.City,
		Budget:      body.Budget,
		Status:      models.JobStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&job).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create job failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": job.ID})
}

// List returns open jobs, filtered by city when given.
func (h *JobHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusOpen)

	if city := c.Query("city"); city != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "city"), db.NormalizeLikePattern(h.db, "%"+city+"%"))
	}

	var jobs []models.Job
	if errFind := query.Order("created_at DESC").Limit(50).Find(&jobs).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list jobs failed"})
		return
	}

	items := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, gin.H{
			"id":     job.ID,
			"title":  job.Title,
			"skills": job.Skills,
			"city":   job.City,
			"budget": job.Budget,
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": items})
}

// applyRequest defines the application body.
type applyRequest struct {
	Message string `json:"message"`
}

// Apply records a worker's application to an open job.
func (h *JobHandler) Apply(c *gin.Context) {
	userID := getUserID(c)
	jobID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || jobID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body applyRequest
	_ = c.ShouldBindJSON(&body)

	var job models.Job
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND status = ?", jobID, models.JobStatusOpen).
		First(&job).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found or closed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load job failed"})
		return
	}

	application := models.JobApplication{
		JobID:     jobID,
		WorkerID:  userID,
		Message:   body.Message,
		CreatedAt: time.Now().UTC(),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&application).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already applied"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": application.ID})
}

// Close marks the caller's job as closed to new applications.
func (h *JobHandler) Close(c *gin.Context) {
	userID := getUserID(c)
	jobID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || jobID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Model(&models.Job{}).
		Where("id = ? AND client_id = ?", jobID, userID).
		Updates(map[string]any{"status": models.JobStatusClosed, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "close job failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// jsonArray marshals a string slice into a JSON column value.
func jsonArray(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	raw, errMarshal := json.Marshal(values)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(raw), nil
}

// appendJSONArray appends a string to a JSON array column value.
func appendJSONArray(raw datatypes.JSON, value string) (datatypes.JSON, error) {
	var values []string
	if len(raw) > 0 {
		if errUnmarshal := json.Unmarshal(raw, &values); errUnmarshal != nil {
			return nil, errUnmarshal
		}
	}
	values = append(values, value)
	updated, errMarshal := json.Marshal(values)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(updated), nil
}

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/auth"
	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/ledger"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/otp"
	"github.com/kaamsetu-in/kaamsetu/internal/ratelimit"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"github.com/kaamsetu-in/kaamsetu/internal/sms"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles registration, OTP verification, and login.
type AuthHandler struct {
	db      *gorm.DB
	jwtCfg  config.JWTConfig
	sender  sms.Sender
	limiter ratelimit.Limiter
	ledger  *ledger.Store
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, sender sms.Sender, limiter ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, sender: sender, limiter: limiter, ledger: ledger.NewStore(db)}
}

// registerRequest defines the registration request body.
type registerRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
	City     string `json:"city"`
}

// Register creates an unverified user and sends the first OTP code.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	phone := strings.TrimSpace(body.Phone)
	if phone == "" || len(body.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and a password of at least 6 characters are required"})
		return
	}

	role := models.RoleClient
	if strings.EqualFold(body.Role, "worker") {
		role = models.RoleWorker
	}

	hashed, errHash := auth.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	secret, errSecret := otp.NewSecret(phone)
	if errSecret != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate otp failed"})
		return
	}

	user := models.User{
		Phone:     phone,
		Name:      strings.TrimSpace(body.Name),
		Password:  hashed,
		Role:      role,
		OTPSecret: secret,
		City:      strings.TrimSpace(body.City),
		Active:    true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "phone already registered"})
		return
	}

	if errSend := h.sendCode(c, &user); errSend != nil {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "phone": user.Phone})
}

// resendRequest defines the OTP resend request body.
type resendRequest struct {
	Phone string `json:"phone"`
}

// ResendOTP sends a fresh code to an unverified phone.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var body resendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, ok := h.lookupByPhone(c, body.Phone)
	if !ok {
		return
	}
	if user.Verified() {
		c.JSON(http.StatusConflict, gin.H{"error": "already verified"})
		return
	}
	if errSend := h.sendCode(c, user); errSend != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// verifyRequest defines the OTP verification request body.
type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// VerifyOTP checks the submitted code, marks the user verified, seeds the
// free-trial credit account for clients, and issues a session token.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, ok := h.lookupByPhone(c, body.Phone)
	if !ok {
		return
	}
	if user.Verified() {
		c.JSON(http.StatusConflict, gin.H{"error": "already verified"})
		return
	}

	if errVerify := otp.Verify(user.OTPSecret, strings.TrimSpace(body.Code), time.Now().UTC()); errVerify != nil {
		if errors.Is(errVerify, otp.ErrInvalidCode) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verify failed"})
		return
	}

	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("verified_at", now).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	user.VerifiedAt = &now

	if user.Role == models.RoleClient {
		if _, errTrial := h.ledger.GrantFreeTrial(c.Request.Context(), user.ID); errTrial != nil && !errors.Is(errTrial, ledger.ErrAlreadyHasAccount) {
			log.WithError(errTrial).Error("auth: free trial grant failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "open credit account failed"})
			return
		}
	}

	token, errToken := auth.IssueToken(user, h.jwtCfg)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "id": user.ID, "role": user.Role})
}

// loginRequest defines the login request body.
type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates a verified user by phone and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, ok := h.lookupByPhone(c, body.Phone)
	if !ok {
		return
	}
	if !user.Verified() || !user.Active || user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled or unverified"})
		return
	}
	if !auth.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := auth.IssueToken(user, h.jwtCfg)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "id": user.ID, "role": user.Role})
}

// sendCode rate-limits and delivers the current OTP code for the user.
func (h *AuthHandler) sendCode(c *gin.Context, user *models.User) error {
	now := time.Now().UTC()
	result, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForPhone(user.Phone), settings.OTPSendLimitPerMinute, time.Minute, now)
	if errAllow != nil {
		log.WithError(errAllow).Warn("auth: rate limit check failed")
	} else if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many otp requests"})
		return errors.New("rate limited")
	}

	code, errCode := otp.Code(user.OTPSecret, now)
	if errCode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate code failed"})
		return errCode
	}
	if errSend := h.sender.SendOTP(c.Request.Context(), user.Phone, code); errSend != nil {
		log.WithError(errSend).Error("auth: otp delivery failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "otp delivery failed"})
		return errSend
	}
	return nil
}

// lookupByPhone loads a user by phone and writes the error response itself.
func (h *AuthHandler) lookupByPhone(c *gin.Context, phone string) (*models.User, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return nil, false
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("phone = ?", phone).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return nil, false
	}
	return &user, true
}

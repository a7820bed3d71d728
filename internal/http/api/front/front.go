package front

import (
	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/access"
	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/http/api/front/handlers"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"github.com/kaamsetu-in/kaamsetu/internal/payment"
	"github.com/kaamsetu-in/kaamsetu/internal/ratelimit"
	"github.com/kaamsetu-in/kaamsetu/internal/sms"
	"github.com/kaamsetu-in/kaamsetu/internal/uploads"
	"gorm.io/gorm"
)

// Deps bundles the collaborators the front API needs.
type Deps struct {
	DB       *gorm.DB
	JWT      config.JWTConfig
	Sender   sms.Sender
	Uploader uploads.Uploader
	Gateway  payment.OrderCreator
	Settler  *payment.Settler
	Limiter  ratelimit.Limiter
	Engine   *access.Engine
}

// RegisterFrontRoutes registers public and authenticated marketplace routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/v1")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT, deps.Sender, deps.Limiter)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/otp/resend", authHandler.ResendOTP)
	api.POST("/auth/otp/verify", authHandler.VerifyOTP)
	api.POST("/auth/login", authHandler.Login)

	planHandler := handlers.NewPlanHandler(deps.DB)
	api.GET("/plans", planHandler.List)

	businessHandler := handlers.NewBusinessHandler(deps.DB)
	api.GET("/businesses", businessHandler.List)

	authed := api.Group("")
	authed.Use(handlers.UserAuthMiddleware(deps.DB, deps.JWT))

	authed.POST("/businesses", businessHandler.Create)

	workerHandler := handlers.NewWorkerHandler(deps.DB, deps.Engine, deps.Uploader)
	authed.GET("/workers", workerHandler.Search)
	authed.GET("/workers/:id", workerHandler.Get)
	authed.GET("/posts", workerHandler.ListPosts)

	workerOnly := authed.Group("")
	workerOnly.Use(handlers.RequireRole(models.RoleWorker))
	workerOnly.PUT("/profile", workerHandler.UpsertProfile)
	workerOnly.POST("/posts", workerHandler.CreatePost)
	workerOnly.POST("/posts/:id/images", workerHandler.UploadPostImage)

	jobHandler := handlers.NewJobHandler(deps.DB)
	authed.GET("/jobs", jobHandler.List)

	clientOnly := authed.Group("")
	clientOnly.Use(handlers.RequireRole(models.RoleClient))
	clientOnly.POST("/jobs", jobHandler.Create)
	clientOnly.POST("/jobs/:id/close", jobHandler.Close)

	workerOnly.POST("/jobs/:id/apply", jobHandler.Apply)

	accessHandler := handlers.NewAccessHandler(deps.DB, deps.Engine, deps.Limiter)
	clientOnly.POST("/unlock/:type/:id", accessHandler.Unlock)
	clientOnly.GET("/unlock/:type/:id/status", accessHandler.Status)
	clientOnly.GET("/credits", accessHandler.Balance)
	clientOnly.GET("/unlocks", accessHandler.Grants)

	paymentHandler := handlers.NewPaymentHandler(deps.DB, deps.Settler, deps.Gateway)
	clientOnly.POST("/payments/checkout", paymentHandler.Checkout)
	clientOnly.POST("/payments/callback", paymentHandler.Callback)
}

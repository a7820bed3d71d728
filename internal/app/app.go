package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/access"
	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/db"
	"github.com/kaamsetu-in/kaamsetu/internal/http/api/front"
	"github.com/kaamsetu-in/kaamsetu/internal/payment"
	"github.com/kaamsetu-in/kaamsetu/internal/ratelimit"
	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"github.com/kaamsetu-in/kaamsetu/internal/sms"
	"github.com/kaamsetu-in/kaamsetu/internal/unlock"
	"github.com/kaamsetu-in/kaamsetu/internal/uploads"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunServer boots the marketplace API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	gatewayCfg, _ := config.LoadGatewayConfig(configPath)
	smsCfg, _ := config.LoadSMSConfig(configPath)
	redisCfg, _ := config.LoadRedisConfig(configPath)

	var sender sms.Sender = sms.LogSender{}
	if strings.TrimSpace(smsCfg.APIKey) != "" {
		sender = sms.NewFast2SMSClient(smsCfg)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if strings.TrimSpace(redisCfg.Addr) != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		limiter = ratelimit.NewRedisLimiter(client, settings.DefaultRateLimitRedisPrefix)
	}

	uploadsCfg, _ := config.LoadUploadsConfig(configPath)

	deps := front.Deps{
		DB:       conn,
		JWT:      jwtCfg,
		Sender:   sender,
		Uploader: uploads.NewImgBBClient(uploadsCfg.APIKey),
		Gateway:  payment.NewGatewayClient(gatewayCfg),
		Settler:  payment.NewSettler(conn, gatewayCfg.KeySecret),
		Limiter:  limiter,
		Engine:   access.NewEngine(conn),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	front.RegisterFrontRoutes(engine, deps)

	// Expired grants are pruned opportunistically; validity never depends
	// on this loop running.
	go pruneLoop(ctx, conn)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	log.WithField("port", port).Info("server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		return errServe
	}
}

// pruneLoop periodically deletes long-expired unlock grants.
func pruneLoop(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-settings.UnlockWindow)
			pruned, errPrune := unlock.PruneExpired(ctx, conn, cutoff)
			if errPrune != nil {
				log.WithError(errPrune).Warn("prune expired grants failed")
				continue
			}
			if pruned > 0 {
				log.WithField("count", pruned).Debug("pruned expired grants")
			}
		}
	}
}

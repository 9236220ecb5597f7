package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/teamops-governance-api/api/swagger"
	"github.com/noah-isme/teamops-governance-api/internal/handler"
	"github.com/noah-isme/teamops-governance-api/internal/middleware"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/internal/repository"
	"github.com/noah-isme/teamops-governance-api/internal/service"
	"github.com/noah-isme/teamops-governance-api/pkg/cache"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	"github.com/noah-isme/teamops-governance-api/pkg/database"
	"github.com/noah-isme/teamops-governance-api/pkg/jobs"
	"github.com/noah-isme/teamops-governance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teamops-governance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teamops-governance-api/pkg/middleware/requestid"
	"github.com/noah-isme/teamops-governance-api/pkg/storage"
)

// @title TeamOps Governance API
// @version 0.1.0
// @description Master promotion and challenge engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ScoreTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.ScoreTTL, logr, false)
	}

	applicationRepo := repository.NewApplicationRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	masterRepo := repository.NewMasterRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	telemetry := service.NewTelemetryClient(cfg.Telemetry)
	scoring := service.NewScoringEngine(cfg.Governance)
	eligibilitySvc := service.NewEligibilityService(telemetry, cfg.Eligibility, logr)

	notificationSvc := service.NewNotificationService(cfg.Notifications, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	applicationSvc := service.NewApplicationService(applicationRepo, eligibilitySvc, auditRepo, notificationSvc, metricsSvc, logr, cfg.Governance)
	challengeSvc := service.NewChallengeService(challengeRepo, masterRepo, eligibilitySvc, scoring, cacheSvc, auditRepo, notificationSvc, metricsSvc, telemetry, logr, cfg.Governance, cfg.Cache.ScoreTTL)
	masterSvc := service.NewMasterService(masterRepo)
	authSvc := service.NewAuthService(cfg.JWT)

	sweeperSvc := service.NewSweeperService(applicationSvc, challengeSvc, auditRepo, metricsSvc, logr, cfg.Sweeper)
	sweeperSvc.Start(ctx)

	var dossierSvc *service.DossierService
	var dossierQueue *jobs.Queue
	if cfg.Dossiers.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Dossiers.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init dossier storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Dossiers.SignedURLSecret, cfg.Dossiers.SignedURLTTL)
		dossierRepo := repository.NewDossierRepository(db)
		exportSvc := service.NewExportService(applicationRepo, challengeRepo, scoring, localStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Dossiers.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewDossierWorker(dossierRepo, exportSvc, cfg.Dossiers.WorkerRetries, logr)
		dossierQueue = jobs.NewQueue("dossiers", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Dossiers.WorkerConcurrency,
			MaxRetries: cfg.Dossiers.WorkerRetries,
			Logger:     logr,
		})
		dossierQueue.Start(ctx)
		defer dossierQueue.Stop()

		dossierSvc = service.NewDossierService(dossierRepo, applicationRepo, challengeRepo, dossierQueue, exportSvc, logr, service.DossierServiceConfig{
			ResultTTL:       cfg.Dossiers.SignedURLTTL,
			CleanupInterval: cfg.Dossiers.CleanupInterval,
			MaxRetries:      cfg.Dossiers.WorkerRetries,
		})
		dossierSvc.RecoverPendingJobs(ctx)
		dossierSvc.StartCleanup(ctx)
	}

	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	challengeHandler := handler.NewChallengeHandler(challengeSvc)
	masterHandler := handler.NewMasterHandler(masterSvc)
	eligibilityHandler := handler.NewEligibilityHandler(eligibilitySvc)
	sweeperHandler := handler.NewSweeperHandler(sweeperSvc)
	dossierHandler := handler.NewDossierHandler(dossierSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Downloads authenticate through the signed token, not JWT.
	if dossierSvc != nil {
		api.GET("/dossiers/download/:token", dossierHandler.Download)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/applications", applicationHandler.Submit)
		authed.GET("/applications", applicationHandler.List)
		authed.GET("/applications/:id", applicationHandler.Get)
		authed.POST("/applications/:id/votes", applicationHandler.CastVote)
		authed.GET("/applications/:id/votes", applicationHandler.ListVotes)

		authed.GET("/eligibility/:userId", eligibilityHandler.Evaluate)

		authed.POST("/challenges", challengeHandler.Create)
		authed.GET("/challenges", challengeHandler.List)
		authed.GET("/challenges/:id", challengeHandler.Get)
		authed.POST("/challenges/:id/response", challengeHandler.Respond)
		authed.POST("/challenges/:id/metrics",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSystem), challengeHandler.SubmitMetrics)
		authed.POST("/challenges/:id/votes", challengeHandler.CastVote)
		authed.GET("/challenges/:id/votes", challengeHandler.ListVotes)
		authed.POST("/challenges/:id/adjudication",
			middleware.RequireRoles(models.RoleAdmin), challengeHandler.Adjudicate)
		authed.GET("/challenges/:id/score", challengeHandler.LiveScore)
		authed.GET("/challenges/:id/progress", challengeHandler.Progress)

		authed.GET("/masters", masterHandler.List)
		authed.GET("/masters/:id", masterHandler.Get)

		authed.POST("/sweeper/run",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSystem), sweeperHandler.Run)

		if dossierSvc != nil {
			authed.POST("/dossiers", dossierHandler.Create)
			authed.GET("/dossiers/:id", dossierHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}

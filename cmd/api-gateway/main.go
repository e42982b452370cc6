package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mission-gateway/api/swagger"
	"github.com/noah-isme/mission-gateway/internal/handler"
	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/platform"
	"github.com/noah-isme/mission-gateway/internal/repository"
	"github.com/noah-isme/mission-gateway/internal/service"
	"github.com/noah-isme/mission-gateway/pkg/cache"
	"github.com/noah-isme/mission-gateway/pkg/config"
	"github.com/noah-isme/mission-gateway/pkg/database"
	"github.com/noah-isme/mission-gateway/pkg/logger"
	corsmiddleware "github.com/noah-isme/mission-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mission-gateway/pkg/middleware/requestid"
)

// @title Mission Gateway API
// @version 1.0.0
// @description Role-based gateway for missions, assignments, tutoring conversations and dashboards
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	redisClient, err := cache.Connect(context.Background(), cfg.Redis)
	if err != nil {
		logr.Fatal("redis unavailable", zap.Error(err))
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	client := platform.NewClient(platform.Options{
		BaseURL:  cfg.Upstream.BaseURL,
		Timeout:  cfg.Upstream.Timeout,
		Observer: metricsSvc,
		Logger:   logr,
	})

	authRepo := repository.NewAuthRepository(client)
	membershipRepo := repository.NewMembershipRepository(client)
	missionRepo := repository.NewMissionRepository(client)
	assignmentRepo := repository.NewAssignmentRepository(client)
	conversationRepo := repository.NewConversationRepository(client)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, "mission-gateway")

	readiness := map[string]handler.ReadinessCheck{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	var journalSvc *service.JournalService
	if cfg.Journal.Enabled {
		db, err := database.Connect(context.Background(), cfg.Database)
		if err != nil {
			logr.Fatal("postgres unavailable", zap.Error(err))
		}
		defer db.Close()
		readiness["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }

		journalSvc = service.NewJournalService(repository.NewJournalRepository(db), metricsSvc, service.JournalServiceConfig{
			Workers: cfg.Journal.Workers,
			Retries: cfg.Journal.Retries,
		}, validate, logr)
	}

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.MissionTTL, logr, cfg.Cache.Enabled)
	store := service.NewMissionStore(missionRepo, cacheSvc, metricsSvc, cfg.Cache.MissionTTL, logr)
	states := service.NewSessionStateRegistry(metricsSvc)

	sessionSvc := service.NewSessionService(authRepo, membershipRepo, sessionRepo, states, journalSvc, validate, logr, service.SessionConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.SessionTTL,
	})
	missionSvc := service.NewMissionService(store, missionRepo, journalSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(service.AssignmentServiceParams{
		Store:       store,
		Repo:        assignmentRepo,
		Cache:       cacheSvc,
		Journal:     journalSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
		Concurrency: cfg.Missions.FanoutConcurrency,
	})
	managementSvc := service.NewManagementService(store, assignmentSvc, membershipRepo, logr)
	directorySvc := service.NewDirectoryService(repository.NewDirectoryRepository(client), membershipRepo, cacheSvc, cfg.Cache.DirectoryTTL, logr)
	exportSvc := service.NewExportService(managementSvc, nil, nil, logr)
	conversationSvc := service.NewConversationService(conversationRepo, states, journalSvc, service.ConversationServiceConfig{
		DefaultName:    cfg.Chat.DefaultName,
		CreateFallback: cfg.Chat.CreateFallback,
		FallbackID:     cfg.Chat.FallbackID,
	}, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Board:   assignmentSvc,
		Store:   store,
		Roster:  membershipRepo,
		Counter: authRepo,
		Cache:   cacheSvc,
		Logger:  logr,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Sessions:       handler.NewSessionHandler(sessionSvc),
		Missions:       handler.NewMissionHandler(missionSvc, managementSvc, assignmentSvc, exportSvc),
		StudentMission: handler.NewStudentMissionHandler(assignmentSvc),
		Conversations:  handler.NewConversationHandler(conversationSvc),
		Dashboard:      handler.NewDashboardHandler(dashboardSvc),
		Journal:        handler.NewJournalHandler(journalSvc),
		Directory:      handler.NewDirectoryHandler(directorySvc),
	}, middleware.Session(sessionSvc))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journalSvc.Start(ctx)
	defer journalSvc.Stop()
	go states.Run(ctx, time.Minute, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

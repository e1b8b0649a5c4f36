package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schnillerman/care-contracts-api/api/swagger"
	"github.com/schnillerman/care-contracts-api/internal/handler"
	"github.com/schnillerman/care-contracts-api/internal/middleware"
	"github.com/schnillerman/care-contracts-api/internal/repository"
	"github.com/schnillerman/care-contracts-api/internal/service"
	"github.com/schnillerman/care-contracts-api/pkg/cache"
	"github.com/schnillerman/care-contracts-api/pkg/config"
	"github.com/schnillerman/care-contracts-api/pkg/database"
	"github.com/schnillerman/care-contracts-api/pkg/lock"
	"github.com/schnillerman/care-contracts-api/pkg/logger"
	corsmiddleware "github.com/schnillerman/care-contracts-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schnillerman/care-contracts-api/pkg/middleware/requestid"
)

// @title Care Contracts API
// @version 1.0.0
// @description Contract period management with overlap conflict enforcement
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
	}

	var cacheRepo *repository.CacheRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, contract caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()
	contractRepo := repository.NewContractRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	locks := lock.NewKeyed()
	validate := validator.New()

	var contractSvc *service.ContractService
	if cacheRepo != nil {
		contractSvc = service.NewContractService(contractRepo, categoryRepo, cacheRepo, locks, metricsSvc,
			cfg.Guard.LockTimeout, cfg.Cache.ContractsTTL, validate, logr)
	} else {
		contractSvc = service.NewContractService(contractRepo, categoryRepo, nil, locks, metricsSvc,
			cfg.Guard.LockTimeout, cfg.Cache.ContractsTTL, validate, logr)
	}

	contractHandler := handler.NewContractHandler(contractSvc, nil)
	if cfg.Export.Enabled {
		contractHandler = handler.NewContractHandler(contractSvc, service.NewExportService(contractSvc, logr))
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
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
	{
		api.GET("/contracts", contractHandler.List)
		api.POST("/contracts", contractHandler.Create)
		api.POST("/contracts/validate", contractHandler.Validate)
		api.GET("/contracts/:id", contractHandler.Get)
		api.PUT("/contracts/:id", contractHandler.Update)
		api.DELETE("/contracts/:id", contractHandler.Delete)
		api.GET("/clients/:id/contracts", contractHandler.ListByClient)
		api.GET("/clients/:id/contracts/export", contractHandler.Export)
		api.GET("/categories", contractHandler.ListCategories)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

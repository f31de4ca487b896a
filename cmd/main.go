package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/calculator"
	"github.com/ashmitsharp/tradebook/internal/config"
	"github.com/ashmitsharp/tradebook/internal/db"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/handler"
	"github.com/ashmitsharp/tradebook/internal/query"
	"github.com/ashmitsharp/tradebook/internal/scheduler"
	"github.com/ashmitsharp/tradebook/internal/storage"
	"github.com/ashmitsharp/tradebook/pkg/utils"
)

const version = "1.0.0"

// @title           Tradebook API
// @version         1.0
// @description     Multi-account trade history across Binance, OKX and Bybit with volume-weighted analysis and CSV export

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.InitLogger(cfg.Server.Environment)
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}()

	logger.Info("Starting application with configuration",
		zap.String("environment", cfg.Server.Environment),
		zap.Duration("exchange_timeout", cfg.Exchanges.RequestTimeout),
		zap.Int("retry_attempts", cfg.Exchanges.RetryAttempts),
		zap.Bool("archive_enabled", cfg.Archive.Enabled),
		zap.Strings("allowed_origins", cfg.Server.AllowedOrigins))

	endpoints, err := exchanges.LoadEndpoints(cfg.Exchanges.EndpointsFile)
	if err != nil {
		logger.Fatal("Failed to load exchange endpoints", zap.Error(err))
	}
	factory := exchanges.NewFactory(logger, endpoints,
		exchanges.WithRequestTimeout(cfg.Exchanges.RequestTimeout),
		exchanges.WithRetryAttempts(cfg.Exchanges.RetryAttempts))

	store, err := cache.New(cfg.Session.MaxCost, cfg.Session.TTL)
	if err != nil {
		logger.Fatal("Failed to create session store", zap.Error(err))
	}
	defer store.Close()

	// Optional fill archive. Interfaces stay nil when disabled.
	var (
		archiver  handler.TradeArchiver
		retention scheduler.Archive
	)
	if cfg.Archive.Enabled {
		if cfg.Archive.AutoMigrate {
			if err := db.MigrateUp(cfg.Archive.ClickHouse, cfg.Archive.MigrationsURL, logger); err != nil {
				logger.Fatal("Failed to migrate archive", zap.Error(err))
			}
		}

		logger.Info("Initializing ClickHouse connection...")
		conn, err := db.InitClickHouse(context.Background(), cfg.Archive.ClickHouse, logger)
		if err != nil {
			logger.Fatal("Failed to initialize ClickHouse", zap.Error(err))
		}
		defer conn.Close()
		logger.Info("ClickHouse connection established successfully")

		tradeStorage := storage.NewTradeStorage(conn, logger)
		archiver = tradeStorage
		retention = tradeStorage
	}

	cronScheduler := scheduler.NewScheduler(cfg.Scheduler, store, retention, cfg.Archive.RetentionDays, logger)
	if err := cronScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer cronScheduler.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(utils.LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	origins := handler.NewOriginPolicy(cfg.Server.AllowedOrigins)
	router.Use(origins.Middleware())

	sessions := handler.NewSessions(store, cfg.Session.CookieName, cfg.Session.TTL)
	accountHandler := handler.NewAccountHandler(sessions, factory, logger)
	tradeHandler := handler.NewTradeHandler(sessions,
		query.NewService(factory, logger),
		calculator.NewAnalyzer(logger),
		archiver,
		origins,
		factory.Location(),
		logger)

	handler.RegisterRoutes(router.Group("/api/v1"), accountHandler, tradeHandler)

	health := handler.NewHealthHandler(version, store, retention, cronScheduler)
	router.GET("/health", health.Health)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:           cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

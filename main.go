package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/config"
	"github.com/finvault/trading-backend/database"
	"github.com/finvault/trading-backend/handlers"
	"github.com/finvault/trading-backend/jobs"
	"github.com/finvault/trading-backend/services"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		logrus.Warnf("Migration warning: %v", err)
	}

	store := database.NewPostgresStore(database.DB)

	// Quote cache and vendor API client
	quoteCache := services.NewQuoteCacheWithTTL(cfg.CacheTTL)
	vendorClient := services.NewVendorClient(services.VendorClientConfig{
		BaseURL:            cfg.VendorBaseURL,
		APIKey:             cfg.VendorAPIKey,
		Timeout:            cfg.VendorTimeout,
		MaxRetries:         cfg.VendorMaxRetries,
		MaxPages:           cfg.VendorMaxPages,
		MinRequestInterval: cfg.VendorMinInterval,
	})

	// Trading services
	stockService := services.NewStockService(store, quoteCache)
	var purchaseService *services.PurchaseService
	if cfg.TradeExecutionEnabled {
		purchaseService = services.NewPurchaseServiceWithExecutor(store, quoteCache, vendorClient, cfg.PriceBandPercent)
	} else {
		purchaseService = services.NewPurchaseService(store, quoteCache, cfg.PriceBandPercent)
	}

	// Report pipeline
	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	delivery := services.NewEmailDeliveryService(mailer, cfg.SMTPFrom, cfg.ReportRecipients)
	aggregation := services.NewReportAggregationService(store)
	formatting := services.NewReportFormattingService()
	reportGenerator := services.NewReportGenerationService(store, aggregation, formatting, delivery)

	logrus.Info("Trading backend services initialized:")
	logrus.Infof("  - Quote cache (TTL: %v)", cfg.CacheTTL)
	logrus.Infof("  - Vendor API client (timeout: %v, max pages: %d)", cfg.VendorTimeout, cfg.VendorMaxPages)
	logrus.Infof("  - Purchase workflow (price band: %.1f%%, external settlement: %v)",
		cfg.PriceBandPercent, cfg.TradeExecutionEnabled)
	logrus.Infof("  - Report pipeline (schedule: %q, max attempts: %d)", cfg.ReportSchedule, cfg.ReportMaxAttempts)

	// Background jobs
	stockUpdateJob := jobs.NewStockUpdateJob(quoteCache, vendorClient, store, cfg.RefreshInterval)
	cacheCleanupJob := jobs.NewCacheCleanupJob(quoteCache, cfg.CacheCleanupInterval)
	reportScheduler := jobs.NewReportSchedulerJob(reportGenerator, cfg.ReportSchedule, cfg.ReportMaxAttempts, cfg.ReportRetryBaseDelay)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	stockUpdateJob.Start(jobCtx)
	cacheCleanupJob.Start(jobCtx)
	if err := reportScheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start report scheduler: %v", err)
	}
	defer reportScheduler.Stop()

	// Handlers
	stockHandler := handlers.NewStockHandler(stockService, quoteCache)
	transactionHandler := handlers.NewTransactionHandler(purchaseService)
	portfolioHandler := handlers.NewPortfolioHandler(store)
	adminHandler := handlers.NewAdminHandler(reportScheduler, stockUpdateJob)

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if err := database.HealthCheck(); err != nil {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")

	// Stock Routes
	api.Get("/stocks", stockHandler.GetStocks)
	api.Get("/stocks/cache/stats", stockHandler.GetCacheStats)
	api.Delete("/stocks/cache", stockHandler.InvalidateCache)
	api.Get("/stocks/:symbol", stockHandler.GetStockBySymbol)

	// Transaction Routes
	api.Post("/transactions/buy", transactionHandler.BuyStock)

	// Portfolio Routes
	api.Get("/portfolios/:user_id", portfolioHandler.GetPortfolioByUserID)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Post("/reports/generate", adminHandler.GenerateReport)
	admin.Post("/stocks/refresh", adminHandler.RefreshStocks)

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}

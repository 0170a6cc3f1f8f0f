package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuroleaf/neuroleaf-api/internal/api/rest"
	"github.com/neuroleaf/neuroleaf-api/internal/api/rest/handlers"
	"github.com/neuroleaf/neuroleaf-api/internal/api/rest/middleware"
	"github.com/neuroleaf/neuroleaf-api/internal/config"
	"github.com/neuroleaf/neuroleaf-api/internal/cron"
	"github.com/neuroleaf/neuroleaf-api/internal/db"
	"github.com/neuroleaf/neuroleaf-api/internal/integration/ai"
	"github.com/neuroleaf/neuroleaf-api/internal/integration/stripe"
	"github.com/neuroleaf/neuroleaf-api/internal/kafka"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/internal/repository/postgres"
	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

var log *logger.Logger

func init() {
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(promRegistry, log)

	dbPool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	sqlClient, err := db.NewClient(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to open analytics database client: %v", err)
	}
	defer sqlClient.Close()

	// Repositories
	var accountRepo repository.AccountRepository = postgres.NewAccountRepository(dbPool, log)
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		accountRepo = repository.NewCachedAccountRepository(accountRepo, cache, log)
	}
	deckRepo := postgres.NewDeckRepository(dbPool, log)
	flashcardRepo := postgres.NewFlashcardRepository(dbPool, log)
	usageRepo := postgres.NewUsageRepository(dbPool, log)
	generationRepo := postgres.NewGenerationRepository(dbPool, log)
	testRepo := postgres.NewTestRepository(dbPool, log)
	analyticsRepo := db.NewAnalyticsRepository(sqlClient)

	// Integrations
	stripeClient := stripe.NewClient(cfg.Stripe.APIKey, log)
	webhookVerifier := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)
	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
	}, log)

	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
	} else {
		producer = kafka.NewNoopProducer(log)
	}
	defer producer.Close()

	// Services
	entitlementSvc := service.NewEntitlementService(accountRepo, deckRepo, usageRepo, appMetrics, log)
	billingSvc := service.NewBillingService(accountRepo, stripeClient, producer, cfg.Stripe.ProPriceIDs, appMetrics, log)
	accountSvc := service.NewAccountService(accountRepo, log)
	deckSvc := service.NewDeckService(deckRepo, entitlementSvc, log)
	flashcardSvc := service.NewFlashcardService(deckRepo, flashcardRepo, entitlementSvc, log)
	generationSvc := service.NewGenerationService(aiClient, generationRepo, flashcardRepo, deckRepo, entitlementSvc, appMetrics, log)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, log)
	testSvc := service.NewTestService(testRepo, flashcardRepo, generationRepo, aiClient, entitlementSvc, analyticsSvc, appMetrics, log)

	// Expiry sweeper
	if cfg.Cron.ExpirySchedule != "" {
		sweeper := cron.NewExpirySweeper(billingSvc, cfg.Cron.ExpirySchedule, log)
		if err := sweeper.Start(); err != nil {
			log.Fatal("Failed to start expiry sweeper: %v", err)
		}
		defer sweeper.Stop()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	auth := middleware.NewJWTMiddleware(&middleware.HMACTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}, log)
	router := rest.NewRouter(rest.Handlers{
		Webhook:    handlers.NewWebhookHandler(webhookVerifier, billingSvc, log),
		Deck:       handlers.NewDeckHandler(deckSvc, entitlementSvc, log),
		Flashcard:  handlers.NewFlashcardHandler(flashcardSvc, log),
		Generation: handlers.NewGenerationHandler(generationSvc, log),
		Test:       handlers.NewTestHandler(testSvc, log),
		Account:    handlers.NewAccountHandler(accountSvc, entitlementSvc, analyticsSvc, log),
	}, auth, promRegistry, log)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		log.Info("Starting HTTP server on port %s", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}

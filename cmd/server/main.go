package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quotecast-service/internal/infrastructure/config"
	"quotecast-service/internal/infrastructure/crypto"
	"quotecast-service/internal/infrastructure/oauth"
	"quotecast-service/internal/infrastructure/persistence"
	"quotecast-service/internal/interface/connector"
	"quotecast-service/internal/interface/handler"
	repo "quotecast-service/internal/interface/repository"
	"quotecast-service/internal/usecase"
	"quotecast-service/pkg/logger"
	"quotecast-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Create logger
	log := logger.NewLogger()
	log.Info("Starting Quotecast Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential encryption key is a startup requirement
	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal("Invalid encryption key", "error", err)
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	mongoDB := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	log.Info("Connecting to Redis")
	redisClient, err := persistence.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	// Set up repositories
	credentialRepo := repo.NewGormCredentialRepository(gormDB)
	planRepo := repo.NewGormPlanRepository(gormDB)
	rateRepo := repo.NewGormCurrencyRateRepository(gormDB)
	quoteLogRepo := repo.NewMongoQuoteLogRepository(mongoDB)
	cacheStore := repo.NewRedisCacheStore(redisClient)

	appMetrics := metrics.NewMetrics("quotecast")

	// Credential manager with background renewal
	exchanger := oauth.NewProviderOAuth(log)
	credentialManager := usecase.NewCredentialManager(
		credentialRepo, cipher, exchanger, log,
		cfg.RenewalThreshold, cfg.RenewalInterval,
	)
	go credentialManager.StartRenewalLoop(ctx)

	// Provider connectors
	connectors := []connector.Connector{
		connector.NewAssureLink(credentialManager, exchanger, rateRepo, log),
		connector.NewMeridian(credentialManager, exchanger, rateRepo, log),
	}

	quoteCache := usecase.NewQuoteCache(
		cacheStore, quoteLogRepo, log, appMetrics,
		cfg.CacheTTL, cfg.StaleWindow, cfg.LockTTL,
	)
	orchestrator := usecase.NewQuoteOrchestrator(
		connectors, credentialRepo, quoteCache, log, appMetrics,
		cfg.ProviderTimeout, cfg.DefaultCurrency,
	)
	synchronizer := usecase.NewCatalogSynchronizer(
		connectors, credentialRepo, planRepo, log, appMetrics, 3,
	)

	// Set up HTTP server
	mux := http.NewServeMux()
	httpHandler := handler.NewHTTPHandler(orchestrator, synchronizer, planRepo, log)
	httpHandler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines
	quoteCache.Wait()

	// Disconnect from the stores
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Redis disconnect error", "error", err)
	}

	log.Info("Quotecast Service stopped")
}

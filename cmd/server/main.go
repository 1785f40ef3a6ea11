package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	catalogapp "github.com/meschain/sync/internal/application/catalog"
	syncapp "github.com/meschain/sync/internal/application/sync"
	webhookapp "github.com/meschain/sync/internal/application/webhook"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/infrastructure/cache"
	"github.com/meschain/sync/internal/infrastructure/config"
	"github.com/meschain/sync/internal/infrastructure/logger"
	"github.com/meschain/sync/internal/infrastructure/marketplace"
	"github.com/meschain/sync/internal/infrastructure/persistence"
	"github.com/meschain/sync/internal/infrastructure/ratelimit"
	"github.com/meschain/sync/internal/infrastructure/scheduler"
	"github.com/meschain/sync/internal/interfaces/http/handler"
	"github.com/meschain/sync/internal/interfaces/http/middleware"
	"github.com/meschain/sync/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting MesChain Sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Strings("marketplaces", cfg.EnabledMarketplaces()),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)

	// Canonical catalog
	catalogService := catalogapp.NewService(productRepo, orderRepo, log)

	// Marketplace adapters
	registry := marketplace.NewRegistry()
	limits := make(map[integration.MarketplaceCode]ratelimit.Limits)
	if err := registerAdapters(cfg, registry, limits, log); err != nil {
		log.Fatal("Failed to configure marketplace adapters", zap.Error(err))
	}
	limiter := ratelimit.NewRegistry(limits, ratelimit.Limits{Capacity: 10, Rate: 1})

	// Webhook dedup store: Redis when reachable, in-memory otherwise
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Application services
	syncService := syncapp.NewService(mappingRepo, catalogService, registry, limiter, log, syncapp.Options{
		BatchSize:       cfg.Sync.BatchSize,
		Concurrency:     cfg.Sync.Concurrency,
		MaxAttempts:     cfg.Sync.MaxAttempts,
		MinBackoff:      cfg.Sync.MinBackoff,
		MaxBackoff:      cfg.Sync.MaxBackoff,
		InFlightTimeout: cfg.Sync.InFlightTimeout,
		PushTimeout:     cfg.Sync.PushTimeout,
	})
	webhookService := webhookapp.NewService(
		registry,
		webhookEventRepo,
		mappingRepo,
		catalogService,
		idempotencyStore,
		cfg.Sync.WebhookDedupTTL,
		log,
	)

	// Sync runner: one worker per enabled marketplace
	var runner *scheduler.Runner
	codes := enabledCodes(cfg)
	if len(codes) > 0 {
		runner, err = scheduler.NewRunner(scheduler.RunnerConfig{
			Marketplaces:      codes,
			SyncInterval:      cfg.Sync.SyncInterval,
			OrderPullInterval: cfg.Sync.OrderPullInterval,
			OrderLookback:     cfg.Sync.OrderLookback,
			CycleTimeout:      cfg.Sync.CycleTimeout,
		}, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync runner", zap.Error(err))
		}
		if cfg.Sync.Enabled {
			if err := runner.Start(context.Background()); err != nil {
				log.Fatal("Failed to start sync runner", zap.Error(err))
			}
			log.Info("Sync runner started",
				zap.Duration("sync_interval", cfg.Sync.SyncInterval),
				zap.Duration("order_pull_interval", cfg.Sync.OrderPullInterval))
		} else {
			log.Warn("Sync runner created but not started (sync.enabled is false)")
		}
	} else {
		log.Warn("No marketplaces enabled, sync runner not created")
	}

	// Set gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitRequests > 0 {
		engine.Use(middleware.RateLimit(
			middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
	}

	// HTTP handlers
	r := router.NewRouter(engine)
	r.Register(handler.NewWebhookHandler(webhookService, registry))
	r.Register(handler.NewMappingHandler(syncService))
	r.Register(handler.NewCatalogHandler(catalogService, syncService))
	r.Register(handler.NewSystemHandler(db.Ping))
	if runner != nil {
		r.Register(handler.NewSyncHandler(runner, syncService))
	}
	r.Setup()

	// Simple ping for load balancer health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if runner != nil {
		if err := runner.Stop(ctx); err != nil {
			log.Error("Sync runner did not stop cleanly", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// registerAdapters builds an adapter per enabled marketplace and records its
// rate limits.
func registerAdapters(cfg *config.Config, registry *marketplace.Registry, limits map[integration.MarketplaceCode]ratelimit.Limits, log *zap.Logger) error {
	if mc := cfg.Marketplaces.Trendyol; mc.Enabled {
		tcfg := marketplace.NewTrendyolConfig(mc.SellerID, mc.APIKey, mc.APISecret, mc.WebhookSecret)
		tcfg.IsSandbox = mc.Sandbox
		if mc.APIBaseURL != "" {
			tcfg.APIBaseURL = mc.APIBaseURL
		} else if mc.Sandbox {
			tcfg.APIBaseURL = marketplace.TrendyolSandboxAPIURL
		}
		adapter, err := marketplace.NewTrendyolAdapter(tcfg)
		if err != nil {
			return err
		}
		registry.Register(adapter)
		limits[integration.MarketplaceCodeTrendyol] = marketplaceLimits(mc)
		log.Info("Trendyol adapter registered", zap.Bool("sandbox", mc.Sandbox))
	}

	if mc := cfg.Marketplaces.Hepsiburada; mc.Enabled {
		hcfg := marketplace.NewHepsiburadaConfig(mc.MerchantID, mc.Username, mc.Password, mc.WebhookSecret)
		hcfg.IsSandbox = mc.Sandbox
		if mc.APIBaseURL != "" {
			hcfg.APIBaseURL = mc.APIBaseURL
		} else if mc.Sandbox {
			hcfg.APIBaseURL = marketplace.HepsiburadaSandboxAPIURL
		}
		adapter, err := marketplace.NewHepsiburadaAdapter(hcfg)
		if err != nil {
			return err
		}
		registry.Register(adapter)
		limits[integration.MarketplaceCodeHepsiburada] = marketplaceLimits(mc)
		log.Info("Hepsiburada adapter registered", zap.Bool("sandbox", mc.Sandbox))
	}

	if mc := cfg.Marketplaces.Pazarama; mc.Enabled {
		pcfg := marketplace.NewPazaramaConfig(mc.APIKey, mc.APISecret, mc.WebhookSecret)
		if mc.APIBaseURL != "" {
			pcfg.APIBaseURL = mc.APIBaseURL
		}
		if mc.TokenURL != "" {
			pcfg.TokenURL = mc.TokenURL
		}
		adapter, err := marketplace.NewPazaramaAdapter(pcfg)
		if err != nil {
			return err
		}
		registry.Register(adapter)
		limits[integration.MarketplaceCodePazarama] = marketplaceLimits(mc)
		log.Info("Pazarama adapter registered")
	}

	return nil
}

// marketplaceLimits converts configured per-minute limits to bucket limits
func marketplaceLimits(mc config.MarketplaceConfig) ratelimit.Limits {
	return ratelimit.Limits{
		Capacity: mc.RateCapacity,
		Rate:     mc.RatePerMin / 60.0,
	}
}

// enabledCodes returns the marketplace codes the runner should drive
func enabledCodes(cfg *config.Config) []integration.MarketplaceCode {
	names := cfg.EnabledMarketplaces()
	codes := make([]integration.MarketplaceCode, 0, len(names))
	for _, name := range names {
		codes = append(codes, integration.MarketplaceCode(name))
	}
	return codes
}

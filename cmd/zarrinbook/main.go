package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/config"
	"github.com/zarrinbook/zarrinbook/internal/handler"
	"github.com/zarrinbook/zarrinbook/internal/infra/cache"
	"github.com/zarrinbook/zarrinbook/internal/infra/goldfeed"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/infra/resilience"
	"github.com/zarrinbook/zarrinbook/internal/infra/supabase"
	"github.com/zarrinbook/zarrinbook/internal/port"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"go.uber.org/zap"

	"github.com/zarrinbook/zarrinbook/internal/domain"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("public_base_url", cfg.PublicBaseURL),
		zap.String("gold_feed_url", cfg.GoldFeedURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("gold_cache_ttl", cfg.GoldCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "zarrinbook")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	var goldCache port.Cache[*domain.GoldPrice]
	if cfg.RedisAddr != "" {
		logger.Info("using Redis cache", zap.String("addr", cfg.RedisAddr))
		goldCache = cache.NewRedis[*domain.GoldPrice](cfg.RedisAddr, "gold", cfg.GoldCacheTTL, logger)
	} else {
		goldCache = cache.New[*domain.GoldPrice](cfg.GoldCacheTTL)
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	storeCB := resilience.NewCircuitBreaker("supabase")
	feedCB := resilience.NewCircuitBreaker("goldfeed")
	backupBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		storeCB,
		resilienceCfg,
		logger,
	)
	feed := goldfeed.NewClient(httpClient, cfg.GoldFeedURL, feedCB, resilienceCfg)

	// --- Services ---
	goldSvc := service.NewGoldPriceService(feed, goldCache, metrics, logger)
	tenantSvc := service.NewTenantService(store, backupBulkhead, metrics, logger)
	invoiceSvc := service.NewInvoiceService(store, store, goldSvc, cfg.PublicBaseURL, metrics, logger)
	installmentSvc := service.NewInstallmentService(store, goldSvc, metrics, logger)
	logSvc := service.NewErrorLogService(store, metrics, logger)
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Tenants:      tenantSvc,
		Invoices:     invoiceSvc,
		Installments: installmentSvc,
		Gold:         goldSvc,
		Logs:         logSvc,
		Auth:         authSvc,
	}, metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

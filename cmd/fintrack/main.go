package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatdomain "github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	chatinfra "github.com/boddenberg/fintrack-bfa-go/internal/chat/infra"
	chatport "github.com/boddenberg/fintrack-bfa-go/internal/chat/port"
	chatservice "github.com/boddenberg/fintrack-bfa-go/internal/chat/service"
	"github.com/boddenberg/fintrack-bfa-go/internal/config"
	"github.com/boddenberg/fintrack-bfa-go/internal/handler"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/events"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/export"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/mongostore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("chat_provider", cfg.ChatProvider),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "fintrack-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Record store ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	// --- Events ---
	publisher := newPublisher(cfg, metrics, logger)

	// --- Services ---
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	txSvc := service.NewTransactionService(store, store, export.NewXLSXExporter(), publisher, logger)
	budgetSvc := service.NewBudgetService(store, store, publisher, logger)
	goalSvc := service.NewGoalService(store, publisher, logger)
	billSvc := service.NewBillService(store, publisher, logger)
	analyticsSvc := service.NewAnalyticsService(store, budgetSvc, goalSvc, billSvc, metrics, logger)

	// --- Assistant ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	generator, closeGenerator, err := newGenerator(ctx, cfg, resilienceCfg)
	if err != nil {
		logger.Fatal("failed to init chat provider", zap.String("provider", cfg.ChatProvider), zap.Error(err))
	}

	contextCache := cache.New[*chatdomain.FinancialContext](cfg.CacheTTL)
	loader := chatservice.NewFinanceContextLoader(txSvc, budgetSvc, goalSvc, billSvc, analyticsSvc)
	chatSvc := chatservice.NewChatService(
		loader,
		generator,
		chatservice.DefaultStrategies(),
		contextCache,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics,
		logger,
		cfg.UpcomingBillsDays,
	)
	txSvc.OnChange(chatSvc.Forget)
	budgetSvc.OnChange(chatSvc.Forget)
	goalSvc.OnChange(chatSvc.Forget)
	billSvc.OnChange(chatSvc.Forget)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:              authSvc,
		Transactions:      txSvc,
		Budgets:           budgetSvc,
		Goals:             goalSvc,
		Bills:             billSvc,
		Analytics:         analyticsSvc,
		Chat:              chatSvc,
		Store:             store,
		StoreName:         cfg.StoreDriver,
		UpcomingBillsDays: cfg.UpcomingBillsDays,
	}, metrics, logger)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	contextCache.Close()
	if err := closeGenerator(); err != nil {
		logger.Warn("chat provider close failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("event publisher close failed", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("record store close failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.StoreTimeout, logger)
	case config.StoreSQLite:
		return sqlstore.Open(cfg.SQLitePath, cfg.StoreTimeout, logger)
	default:
		logger.Warn("using in-memory record store; data is lost on restart")
		return memstore.New(), nil
	}
}

// newPublisher falls back to a no-op publisher when the broker is not
// configured or unreachable, unless AMQP_REQUIRED is set.
func newPublisher(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) port.EventPublisher {
	if cfg.AMQPURL == "" {
		return events.NewNoopPublisher(logger)
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, metrics, logger)
	if err != nil {
		if cfg.AMQPRequired {
			logger.Fatal("event broker unreachable", zap.Error(err))
		}
		logger.Warn("event broker unreachable, events disabled", zap.Error(err))
		return events.NewNoopPublisher(logger)
	}
	return pub
}

// newGenerator returns nil in template mode.
func newGenerator(ctx context.Context, cfg *config.Config, rc resilience.Config) (chatport.TextGenerator, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.ChatProvider {
	case config.ChatGemini:
		g, err := chatinfra.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, resilience.NewCircuitBreaker("gemini"), rc)
		if err != nil {
			return nil, noClose, err
		}
		return g, g.Close, nil
	case config.ChatAgent:
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		return chatinfra.NewChatAgentClient(httpClient, cfg.ChatAgentURL, resilience.NewCircuitBreaker("chat-agent"), rc), noClose, nil
	default:
		return nil, noClose, nil
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	chatinfra "github.com/boddenberg/finance-assistant-bfa-go/internal/chat/infra"
	chatservice "github.com/boddenberg/finance-assistant-bfa-go/internal/chat/service"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/config"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/client"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/sqlite"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/realtime"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
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

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("expense_api_url", cfg.ExpenseAPIURL),
		zap.String("chat_api_url", cfg.ChatAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("stream_timeout", cfg.StreamTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("sqlite_sessions", cfg.SessionDBPath != ""),
	)

	// money goes out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Realtime ---
	hub := realtime.NewHub(logger)
	defer hub.Close()

	// --- Cache ---
	dashboardCache := cache.New[*domain.Dashboard](cfg.CacheTTL)
	defer dashboardCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	expenseCB := resilience.NewCircuitBreaker("expenses", logger)
	chatCB := resilience.NewCircuitBreaker("chat-backend", logger)

	// --- Clients ---
	var expenseSource port.ExpenseSource
	if cfg.ExpenseAPIURL != "" {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		expenseSource = client.NewExpenseClient(httpClient, cfg.ExpenseAPIURL, expenseCB, resilienceCfg)
	} else {
		logger.Warn("EXPENSE_API_URL not set, dashboard starts from the seed")
	}
	// sem Timeout: um stream longo é limitado pelo STREAM_TIMEOUT do ChatService
	chatTransport := chatinfra.NewChatBackendClient(&http.Client{}, cfg.ChatAPIURL, chatCB)

	// --- Session storage ---
	var sessionStorage port.SessionStorage = memory.NewSessionStorage()
	if cfg.SessionDBPath != "" {
		store, err := sqlite.NewSessionStorage(cfg.SessionDBPath, logger)
		if err != nil {
			logger.Fatal("failed to open session storage", zap.Error(err))
		}
		defer store.Close()
		sessionStorage = store
	}

	// --- Services ---
	expenseSvc := service.NewExpenseService(expenseSource, memory.NewExpenseRepository(), dashboardCache, hub, metrics, logger)
	planningSvc := service.NewPlanningService(
		memory.NewPlanningRepository(),
		expenseSvc,
		dashboardCache,
		hub,
		decimal.NewFromFloat(cfg.BudgetBufferRatio),
		logger,
	)
	dashboardSvc := service.NewDashboardService(expenseSvc, planningSvc, dashboardCache, metrics, analytics.TrendOptions{
		WindowDays:  cfg.TrendWindowDays,
		HorizonDays: cfg.TrendHorizonDays,
	}, logger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), cfg.HTTPTimeout+5*time.Second)
	loaded, err := expenseSvc.Load(bootCtx)
	cancelBoot()
	if err != nil {
		logger.Fatal("failed to load expenses", zap.Error(err))
	}
	logger.Info("expenses loaded", zap.Int("count", loaded.Count), zap.String("source", loaded.Source))

	sessionStore := chatservice.NewSessionStore(context.Background(), sessionStorage, logger,
		chatservice.WithPublisher(hub),
		chatservice.WithMetrics(metrics),
	)
	chatSvc := chatservice.NewChatService(
		sessionStore,
		chatservice.NewAssembler(chatTransport, metrics, logger),
		resilience.NewBulkhead(cfg.MaxConcurrency),
		hub,
		metrics,
		cfg.StreamTimeout,
		logger,
	)

	chatLimiter := handler.NewRateLimiter(cfg.ChatRatePerMinute, cfg.ChatRateBurst, logger)
	defer chatLimiter.Stop()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Expenses:       expenseSvc,
		Planning:       planningSvc,
		Dashboard:      dashboardSvc,
		Chat:           chatSvc,
		Hub:            hub,
		Metrics:        metrics,
		Breakers:       []*gobreaker.CircuitBreaker{expenseCB, chatCB},
		ChatLimiter:    chatLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	// --- Server ---
	// WriteTimeout fica em zero: SSE e websocket mantêm a resposta aberta.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
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

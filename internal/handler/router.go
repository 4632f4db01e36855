package handler

import (
	"net/http"
	"time"

	chathandler "github.com/boddenberg/finance-assistant-bfa-go/internal/chat/handler"
	chatservice "github.com/boddenberg/finance-assistant-bfa-go/internal/chat/service"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/realtime"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps groups everything the router serves. ChatLimiter, Hub, Breakers and Now are optional.
type Deps struct {
	Expenses  *service.ExpenseService
	Planning  *service.PlanningService
	Dashboard *service.DashboardService
	Chat      *chatservice.ChatService

	Hub         *realtime.Hub
	Metrics     *observability.Metrics
	Breakers    []*gobreaker.CircuitBreaker
	ChatLimiter *RateLimiter

	AllowedOrigins []string
	Now            func() time.Time
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	now := d.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Breakers))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/chat", chatMetricsHandler(d.Metrics))

		// =============================================
		// 1. Despesas & categorias
		// =============================================
		r.Get("/expenses", listExpensesHandler(d.Expenses, logger))
		r.Post("/expenses", createExpenseHandler(d.Expenses, logger))
		r.Post("/expenses/reload", reloadExpensesHandler(d.Expenses, logger))
		r.Delete("/expenses/{id}", deleteExpenseHandler(d.Expenses, logger))
		r.Get("/categories", listCategoriesHandler(d.Expenses, logger))
		r.Post("/categories/suggest", suggestCategoryHandler(d.Expenses, logger))

		// =============================================
		// 2. Dashboard & análise
		// =============================================
		r.Get("/dashboard", dashboardHandler(d.Dashboard, now, logger))
		r.Get("/analytics/trend", trendHandler(d.Dashboard, now, logger))
		r.Get("/analytics/health", healthScoreHandler(d.Dashboard, now, logger))
		r.Get("/analytics/forecast", forecastHandler(d.Dashboard, now, logger))

		// =============================================
		// 3. Orçamentos & metas
		// =============================================
		r.Get("/budgets", listBudgetsHandler(d.Planning, logger))
		r.Put("/budgets/{category}", upsertBudgetHandler(d.Planning, logger))
		r.Delete("/budgets/{category}", deleteBudgetHandler(d.Planning, logger))
		r.Post("/budgets/{category}/optimize", optimizeBudgetHandler(d.Planning, logger))
		r.Get("/goals", listGoalsHandler(d.Planning, logger))
		r.Post("/goals", createGoalHandler(d.Planning, logger))
		r.Patch("/goals/{id}", updateGoalHandler(d.Planning, logger))
		r.Delete("/goals/{id}", deleteGoalHandler(d.Planning, logger))

		// =============================================
		// 4. Chat
		// =============================================
		r.Get("/chats", chathandler.ListChatsHandler(d.Chat, logger))
		r.Post("/chats", chathandler.CreateChatHandler(d.Chat, logger))
		r.Route("/chats/{chatId}", func(r chi.Router) {
			r.Patch("/", chathandler.RenameChatHandler(d.Chat, logger))
			r.Delete("/", chathandler.DeleteChatHandler(d.Chat, logger))
			r.Post("/activate", chathandler.ActivateChatHandler(d.Chat, logger))
			r.Post("/messages", chathandler.AppendMessageHandler(d.Chat, logger))
			r.Patch("/messages/{messageId}", chathandler.PatchMessageHandler(d.Chat, logger))
			r.Delete("/messages/{messageId}", chathandler.DeleteMessageHandler(d.Chat, logger))
			r.Delete("/stream", chathandler.CancelSendHandler(d.Chat, logger))
		})

		send := http.Handler(chathandler.SendHandler(d.Chat, logger))
		if d.ChatLimiter != nil {
			send = d.ChatLimiter.Middleware(send)
		}
		r.Method(http.MethodPost, "/chat/send", send)

		r.Get("/settings", chathandler.GetSettingsHandler(d.Chat, logger))
		r.Put("/settings", chathandler.UpdateSettingsHandler(d.Chat, logger))

		// =============================================
		// 5. Eventos ao vivo
		// =============================================
		if d.Hub != nil {
			r.Get("/ws", websocketHandler(d.Hub, d.AllowedOrigins, logger))
		}
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

// healthzHandler reports each circuit breaker as a dependency.
// An open breaker makes the BFA degraded, never unhealthy: chat failures become message text.
func healthzHandler(breakers []*gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{{Name: "bfa-api", Status: "healthy", LastChecked: now}}
		for _, cb := range breakers {
			status := "healthy"
			switch cb.State() {
			case gobreaker.StateOpen:
				status = "unhealthy"
			case gobreaker.StateHalfOpen:
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{Name: cb.Name(), Status: status, LastChecked: now})
		}

		overall := "healthy"
		for _, s := range services[1:] {
			if s.Status != "healthy" {
				overall = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func chatMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetChatSnapshot())
	}
}

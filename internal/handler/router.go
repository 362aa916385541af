package handler

import (
	"context"
	"net/http"
	"time"

	chathandler "github.com/boddenberg/fintrack-bfa-go/internal/chat/handler"
	chatservice "github.com/boddenberg/fintrack-bfa-go/internal/chat/service"
	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// pingTimeout bounds the store probe of /healthz and /readyz.
const pingTimeout = 2 * time.Second

// Services groups everything the router mounts.
type Services struct {
	Auth         *service.AuthService
	Transactions *service.TransactionService
	Budgets      *service.BudgetService
	Goals        *service.GoalService
	Bills        *service.BillService
	Analytics    *service.AnalyticsService
	Chat         *chatservice.ChatService

	// Store is probed by /healthz and /readyz; nil skips the probe.
	Store     port.Store
	StoreName string

	UpcomingBillsDays int
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(observability.MetricsMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Store, svcs.StoreName))
	r.Get("/readyz", readyzHandler(svcs.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/assistant", assistantMetricsHandler(metrics))

		// =============================================
		// Identity
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Get("/me", authMeHandler(svcs.Auth, logger))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// =============================================
			// Transaction ledger
			// =============================================
			r.Route("/transactions", func(r chi.Router) {
				tx := svcs.Transactions
				r.Get("/", listTransactionsHandler(tx, logger))
				r.Post("/", createTransactionHandler(tx, logger))
				r.Get("/stats", transactionStatsHandler(tx, logger))
				r.Get("/export", exportTransactionsHandler(tx, logger))
				r.Post("/bulk", bulkCreateTransactionsHandler(tx, logger))
				r.Get("/goal/{goalId}", goalTransactionsHandler(tx, logger))
				r.Get("/{id}", getTransactionHandler(tx, logger))
				r.Put("/{id}", updateTransactionHandler(tx, logger))
				r.Delete("/{id}", deleteTransactionHandler(tx, logger))
			})

			// =============================================
			// Budget tracker
			// =============================================
			r.Route("/budgets", func(r chi.Router) {
				b := svcs.Budgets
				r.Get("/", listBudgetsHandler(b, logger))
				r.Post("/", createBudgetHandler(b, logger))
				r.Get("/with-spending", budgetsWithSpendingHandler(b, logger))
				r.Get("/summary", budgetSummaryHandler(b, logger))
				r.Get("/{id}", getBudgetHandler(b, logger))
				r.Put("/{id}", updateBudgetHandler(b, logger))
				r.Delete("/{id}", deleteBudgetHandler(b, logger))
			})

			// =============================================
			// Goal tracker
			// =============================================
			r.Route("/goals", func(r chi.Router) {
				g := svcs.Goals
				r.Get("/", listGoalsHandler(g, logger))
				r.Post("/", createGoalHandler(g, logger))
				r.Get("/stats", goalStatsHandler(g, logger))
				r.Get("/{id}", getGoalHandler(g, logger))
				r.Put("/{id}", updateGoalHandler(g, logger))
				r.Delete("/{id}", deleteGoalHandler(g, logger))
				r.Patch("/{id}/progress", goalProgressHandler(g, logger))
			})

			// =============================================
			// Bill tracker
			// =============================================
			r.Route("/bills", func(r chi.Router) {
				b := svcs.Bills
				r.Get("/", listBillsHandler(b, logger))
				r.Post("/", createBillHandler(b, logger))
				r.Get("/upcoming", upcomingBillsHandler(b, svcs.UpcomingBillsDays, logger))
				r.Get("/overdue", overdueBillsHandler(b, logger))
				r.Get("/stats", billStatsHandler(b, logger))
				r.Get("/{id}", getBillHandler(b, logger))
				r.Put("/{id}", updateBillHandler(b, logger))
				r.Delete("/{id}", deleteBillHandler(b, logger))
				r.Patch("/{id}/paid", markBillPaidHandler(b, logger))
				r.Patch("/{id}/pause", billTransitionHandler("/v1/bills/{id}/pause", "bill paused", b.Pause, logger))
				r.Patch("/{id}/resume", billTransitionHandler("/v1/bills/{id}/resume", "bill resumed", b.Resume, logger))
				r.Patch("/{id}/cancel", billTransitionHandler("/v1/bills/{id}/cancel", "bill cancelled", b.Cancel, logger))
			})

			// =============================================
			// Analytics
			// =============================================
			r.Route("/analytics", func(r chi.Router) {
				a := svcs.Analytics
				r.Get("/overview", overviewHandler(a, logger))
				r.Get("/trends", trendsHandler(a, logger))
				r.Get("/budgets", budgetUtilizationHandler(a))
				r.Get("/goals", goalProgressSummaryHandler(a))
				r.Get("/patterns", spendingPatternsHandler(a))
				r.Get("/health-score", healthScoreHandler(a))
			})

			// =============================================
			// Assistant
			// =============================================
			r.Post("/chat/message", chathandler.ChatHandler(svcs.Chat, UserIDFromContext, logger))
		})
	})

	return r
}

// ============================================================
// Metrics & Health
// ============================================================

func healthzHandler(store port.Store, storeName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "fintrack-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			start := time.Now()
			err := store.Ping(ctx)
			cancel()
			sh := domain.ServiceHealth{
				Name: "store:" + storeName, Status: "healthy",
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			}
			if err != nil {
				sh.Status = "degraded"
				sh.Error = err.Error()
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler reports 503 until the record store answers a ping.
func readyzHandler(store port.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("readiness probe failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func assistantMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.AssistantSnapshot())
	}
}

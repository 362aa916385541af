package handler

import (
	"net/http"

	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Analytics: /v1/analytics
// ============================================================

// defaultTrendMonths is the window of GET /v1/analytics/trends without ?months=.
const defaultTrendMonths = 12

func overviewHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/overview")
		defer span.End()

		from, to, err := queryRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		overview, err := svc.Overview(ctx, UserIDFromContext(ctx), from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", overview)
	}
}

// The remaining aggregates degrade to zero values instead of failing.

func trendsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/trends")
		defer span.End()

		months, err := queryInt(r, "months", defaultTrendMonths)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", svc.MonthlyTrends(ctx, UserIDFromContext(ctx), months))
	}
}

func budgetUtilizationHandler(svc *service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/budgets")
		defer span.End()
		writeData(w, http.StatusOK, "ok", svc.BudgetUtilization(ctx, UserIDFromContext(ctx)))
	}
}

func goalProgressSummaryHandler(svc *service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/goals")
		defer span.End()
		writeData(w, http.StatusOK, "ok", svc.GoalProgress(ctx, UserIDFromContext(ctx)))
	}
}

func spendingPatternsHandler(svc *service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/patterns")
		defer span.End()
		writeData(w, http.StatusOK, "ok", svc.SpendingPatterns(ctx, UserIDFromContext(ctx)))
	}
}

func healthScoreHandler(svc *service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/health-score")
		defer span.End()
		writeData(w, http.StatusOK, "ok", svc.FinancialHealthScore(ctx, UserIDFromContext(ctx)))
	}
}

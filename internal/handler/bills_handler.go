package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Bills: /v1/bills
// ============================================================

func createBillHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bills")
		defer span.End()

		var in domain.BillInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.Create(ctx, UserIDFromContext(ctx), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, "bill created", b)
	}
}

// listBillsHandler serves GET /v1/bills?status=paused.
func listBillsHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills")
		defer span.End()

		status := domain.BillStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			handleServiceError(w, &domain.ErrValidation{Field: "status", Message: "unknown bill status"}, logger)
			return
		}
		bills, err := svc.List(ctx, UserIDFromContext(ctx), status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", bills)
	}
}

// upcomingBillsHandler serves GET /v1/bills/upcoming?days=; defaultDays
// applies when the parameter is absent.
func upcomingBillsHandler(svc *service.BillService, defaultDays int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/upcoming")
		defer span.End()

		days, err := queryInt(r, "days", defaultDays)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		bills, err := svc.Upcoming(ctx, UserIDFromContext(ctx), days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", bills)
	}
}

func overdueBillsHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/overdue")
		defer span.End()

		bills, err := svc.Overdue(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", bills)
	}
}

func billStatsHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/stats")
		defer span.End()

		stats, err := svc.Stats(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", stats)
	}
}

func getBillHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/{id}")
		defer span.End()

		b, err := svc.Get(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", b)
	}
}

func updateBillHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/bills/{id}")
		defer span.End()

		var in domain.BillInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.Update(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "bill updated", b)
	}
}

func deleteBillHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/bills/{id}")
		defer span.End()

		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "bill deleted", nil)
	}
}

// markBillPaidHandler serves PATCH /v1/bills/{id}/paid. The body is optional;
// every payment field falls back to the bill's own defaults.
func markBillPaidHandler(svc *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/bills/{id}/paid")
		defer span.End()

		var in domain.PaymentInput
		if err := decodeOptionalJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.MarkPaid(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "bill marked as paid", b)
	}
}

type billTransition func(ctx context.Context, userID, id string) (*domain.BillView, error)

// billTransitionHandler serves PATCH /v1/bills/{id}/pause|resume|cancel.
func billTransitionHandler(route, msg string, move billTransition, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH "+route)
		defer span.End()

		b, err := move(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, msg, b)
	}
}

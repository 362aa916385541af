package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: /v1/transactions
// ============================================================

func createTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var in domain.TransactionInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.Create(ctx, UserIDFromContext(ctx), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, "transaction created", tx)
	}
}

func bulkCreateTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/bulk")
		defer span.End()

		var in domain.BulkTransactionInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("transactions.count", len(in.Transactions)))

		rows, err := svc.BulkCreate(ctx, UserIDFromContext(ctx), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, fmt.Sprintf("%d transactions created", len(rows)), rows)
	}
}

func listTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		f, err := transactionFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, err := svc.List(ctx, UserIDFromContext(ctx), f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", page)
	}
}

// transactionFilter reads ?kind=&category=&goalId=&from=&to=&search=&sort=&order=&page=&page_size=.
func transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	f := domain.TransactionFilter{
		Kind:     domain.Kind(q.Get("kind")),
		Category: strings.TrimSpace(q.Get("category")),
		GoalID:   q.Get("goalId"),
		Search:   strings.TrimSpace(q.Get("search")),
		SortBy:   q.Get("sort"),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, &domain.ErrValidation{Field: "kind", Message: "must be 'income' or 'expense'"}
	}
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		f.Asc = true
	default:
		return f, &domain.ErrValidation{Field: "order", Message: "must be 'asc' or 'desc'"}
	}
	var err error
	if f.From, f.To, err = queryRange(r); err != nil {
		return f, err
	}
	f.Page, f.PageSize = parsePagination(r)
	return f, nil
}

func getTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{id}")
		defer span.End()

		tx, err := svc.Get(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", tx)
	}
}

func updateTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{id}")
		defer span.End()

		var in domain.TransactionInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.Update(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "transaction updated", tx)
	}
}

func deleteTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "transaction deleted", nil)
	}
}

func transactionStatsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/stats")
		defer span.End()

		from, to, err := queryRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		stats, err := svc.Stats(ctx, UserIDFromContext(ctx), from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", stats)
	}
}

func goalTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/goal/{goalId}")
		defer span.End()

		view, err := svc.ByGoal(ctx, UserIDFromContext(ctx), chi.URLParam(r, "goalId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "ok", view)
	}
}

// exportTransactionsHandler renders the workbook into memory first so a
// failure can still be reported as JSON.
func exportTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/export")
		defer span.End()

		from, to, err := queryRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var buf bytes.Buffer
		if err := svc.Export(ctx, UserIDFromContext(ctx), from, to, &buf); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		contentType, ext := svc.ExportFormat()
		filename := fmt.Sprintf("transactions-%s.%s", time.Now().UTC().Format("20060102"), ext)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

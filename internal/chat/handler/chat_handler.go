// Package handler exposes the assistant over HTTP: POST /v1/chat/message.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/chat/service"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/handler")

// maxBodyBytes bounds the request body, history included.
const maxBodyBytes = 256 << 10

// ChatHandler answers
//
//	POST /v1/chat/message
//	{"message": "How are my budgets?", "conversationHistory": [{"role": "user", "message": "hi"}]}
//
// with {"message": "ok", "data": {"message": "...", "suggestions": [...], "intent": "budget_help"}}.
// userIDFrom reads the authenticated user set by the auth middleware.
func ChatHandler(chatSvc *service.ChatService, userIDFrom func(context.Context) string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/message")
		defer span.End()

		userID := userIDFrom(ctx)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "authentication required", maindomain.ErrorDetail{Code: "UNAUTHORIZED"})
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.ChatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"message": "..."}`,
				maindomain.ErrorDetail{Code: "VALIDATION_FAILED", Field: "body"})
			return
		}

		resp, err := chatSvc.ProcessMessage(ctx, userID, &req)
		if err != nil {
			var validation *maindomain.ErrValidation
			if errors.As(err, &validation) {
				writeError(w, http.StatusBadRequest, validation.Message,
					maindomain.ErrorDetail{Code: "VALIDATION_FAILED", Field: validation.Field})
				return
			}
			logger.Error("unexpected error in chat handler", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error", maindomain.ErrorDetail{Code: "INTERNAL"})
			return
		}

		writeJSON(w, http.StatusOK, maindomain.Envelope{Message: "ok", Data: resp})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string, detail maindomain.ErrorDetail) {
	writeJSON(w, status, maindomain.ErrorEnvelope{Message: msg, Error: detail})
}

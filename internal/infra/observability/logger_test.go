package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := observability.NewLogger(tt.level)
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("level %s not enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("level below %s should be disabled", tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := observability.NewMetrics()
	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.NewNop()))
	r.Use(observability.MetricsMiddleware(m))
	r.Get("/bills/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bills/"+id, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	families, _ := m.Registry.Gather()
	for _, f := range families {
		if f.GetName() != "fintrack_request_duration_seconds" {
			continue
		}
		if len(f.GetMetric()) != 1 {
			t.Fatalf("want one series, got %d", len(f.GetMetric()))
		}
		if got := f.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
			t.Errorf("sample count = %d, want 3", got)
		}
		return
	}
	t.Fatal("histogram not found")
}

package observability

import (
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Chat outcome labels.
const (
	ChatTemplate  = "template"
	ChatGenerated = "generated"
	ChatFallback  = "fallback"
	ChatError     = "error"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// Registry owns every collector below; /metrics serves it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	chatRequests    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

// NewMetrics registers all collectors on a private registry, so it can be
// called once per test without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_external_errors_total",
				Help: "Failures of stores, brokers and LLM providers.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_llm_tokens_total",
				Help: "LLM tokens consumed by the assistant.",
			},
			[]string{"type"},
		),
		chatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_chat_requests_total",
				Help: "Assistant messages by outcome.",
			},
			[]string{"outcome"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_events_published_total",
				Help: "Domain events handed to the broker.",
			},
			[]string{"type", "result"},
		),
	}
}

func (m *Metrics) RecordRequestDuration(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrChat counts one assistant message with the given outcome label.
func (m *Metrics) IncrChat(outcome string) {
	m.chatRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrEvent(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// AssistantSnapshot summarises the cumulative assistant counters for
// GET /v1/metrics/assistant.
func (m *Metrics) AssistantSnapshot() *domain.AssistantMetrics {
	template := getCounterValue(m.chatRequests, ChatTemplate)
	generated := getCounterValue(m.chatRequests, ChatGenerated)
	fallback := getCounterValue(m.chatRequests, ChatFallback)
	failed := getCounterValue(m.chatRequests, ChatError)
	total := template + generated + fallback + failed

	tokens := getCounterValue(m.tokensUsed, "prompt") + getCounterValue(m.tokensUsed, "completion")
	hits := getCounterValue(m.cacheHits, "chat-context")
	misses := getCounterValue(m.cacheMisses, "chat-context")

	snap := &domain.AssistantMetrics{
		TotalRequests: int64(total),
		Period:        "all_time",
	}
	if total > 0 {
		snap.ErrorRate = failed / total
		snap.FallbackRate = fallback / total
	}
	if llm := generated + fallback; llm > 0 {
		snap.AvgTokensPerRequest = tokens / llm
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

// getCounterValue reads the current value of one labelled counter.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

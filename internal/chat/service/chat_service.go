// Package service implements the conversational assistant.
//
// Every message is classified by keyword into an intent. In template mode
// the intent's strategy renders the answer from the caller's financial
// snapshot. In generative mode the snapshot is serialised into a context
// block and sent, with the recent conversation, to a text generator.
//
// Upstream failures never reach the caller: they are logged, counted and
// replaced with FallbackMessage.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/chat/port"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"
	mainport "github.com/boddenberg/fintrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var chatTracer = otel.Tracer("chat/service")

// FallbackMessage replaces any answer that could not be produced.
const FallbackMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

const (
	contextCacheName    = "chat-context"
	generatorMetricName = "chat-generator"
)

const systemInstruction = `You are FinTrack's personal finance assistant.
Answer using only the user's financial data provided in the context.
Be concise and friendly, quote amounts exactly as given, and end with one concrete next step.
If the data does not answer the question, say so instead of guessing.`

// ChatService answers assistant messages.
type ChatService struct {
	loader     port.ContextLoader
	generator  port.TextGenerator // nil selects template mode
	strategies []ChatStrategy
	cache      mainport.Cache[*domain.FinancialContext]
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger

	upcomingDays int
}

// NewChatService wires the assistant. Strategies are tried in order; the
// first one accepting the intent answers.
func NewChatService(
	loader port.ContextLoader,
	generator port.TextGenerator,
	strategies []ChatStrategy,
	cache mainport.Cache[*domain.FinancialContext],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
	upcomingDays int,
) *ChatService {
	return &ChatService{
		loader:       loader,
		generator:    generator,
		strategies:   strategies,
		cache:        cache,
		bulkhead:     bulkhead,
		metrics:      metrics,
		logger:       logger,
		upcomingDays: upcomingDays,
	}
}

// ProcessMessage answers one message. Only request validation errors are
// returned.
func (s *ChatService) ProcessMessage(ctx context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ProcessMessage")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	intent := DetectIntent(req.Message)
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("chat.intent", intent),
	)
	s.logger.Info("chat message received",
		zap.String("user_id", userID),
		zap.String("intent", intent),
		zap.Int("message_length", len(req.Message)),
		zap.Int("history_turns", len(req.ConversationHistory)),
	)

	if s.generator != nil {
		return s.generate(ctx, userID, intent, req), nil
	}
	return s.template(ctx, userID, intent, req), nil
}

func (s *ChatService) template(ctx context.Context, userID, intent string, req *domain.ChatRequest) *domain.ChatResponse {
	strategy := s.strategyFor(intent)
	if strategy == nil {
		s.logger.Error("no strategy registered for intent", zap.String("intent", intent))
		return s.fallback(intent, observability.ChatError)
	}

	cc := &domain.ChatContext{
		UserID:         userID,
		Query:          req.Message,
		DetectedIntent: intent,
		History:        req.RecentHistory(),
		UpcomingDays:   s.upcomingDays,
	}
	if strategy.NeedsContext() {
		fc, err := s.financialContext(ctx, userID)
		if err != nil {
			s.logger.Error("financial context unavailable",
				zap.String("user_id", userID),
				zap.String("intent", intent),
				zap.Error(err),
			)
			return s.fallback(intent, observability.ChatError)
		}
		cc.Financial = fc
	}

	s.metrics.IncrChat(observability.ChatTemplate)
	return strategy.Handle(cc)
}

func (s *ChatService) generate(ctx context.Context, userID, intent string, req *domain.ChatRequest) *domain.ChatResponse {
	fc, err := s.financialContext(ctx, userID)
	if err != nil {
		s.logger.Error("financial context unavailable",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return s.fallback(intent, observability.ChatError)
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		s.logger.Warn("assistant bulkhead rejected request", zap.Error(err))
		return s.fallback(intent, observability.ChatFallback)
	}
	defer s.bulkhead.Release()

	start := time.Now()
	result, err := s.generator.Generate(ctx, &domain.GenerateRequest{
		UserID:  userID,
		System:  systemInstruction,
		Context: RenderContext(fc),
		History: req.RecentHistory(),
		Message: req.Message,
	})
	s.metrics.RecordRequestDuration("chat.generate", time.Since(start))
	if err != nil {
		var circuitOpen *maindomain.ErrCircuitOpen
		s.metrics.IncrExternalError(generatorMetricName)
		s.logger.Error("text generation failed",
			zap.String("user_id", userID),
			zap.String("intent", intent),
			zap.Bool("circuit_open", errors.As(err, &circuitOpen)),
			zap.Error(err),
		)
		return s.fallback(intent, observability.ChatFallback)
	}

	s.metrics.RecordTokens(result.PromptTokens, result.CompletionTokens)
	text := strings.TrimSpace(result.Text)
	if text == "" {
		s.logger.Warn("text generator returned an empty answer", zap.String("user_id", userID))
		return s.fallback(intent, observability.ChatFallback)
	}

	s.metrics.IncrChat(observability.ChatGenerated)
	return &domain.ChatResponse{
		Message:     text,
		Suggestions: suggestionsFor(intent),
		Intent:      intent,
	}
}

func contextKey(userID string) string { return "context:" + userID }

// Forget drops the cached financial context of userID so the next message
// reads the stores again.
func (s *ChatService) Forget(userID string) {
	s.cache.Delete(contextKey(userID))
}

// financialContext serves the snapshot from the per-user cache, loading it
// on a miss.
func (s *ChatService) financialContext(ctx context.Context, userID string) (*domain.FinancialContext, error) {
	fc, hit, err := s.cache.GetOrLoad(contextKey(userID), func() (*domain.FinancialContext, error) {
		return s.loader.Load(ctx, userID)
	})
	if hit {
		s.metrics.IncrCacheHit(contextCacheName)
	} else {
		s.metrics.IncrCacheMiss(contextCacheName)
	}
	return fc, err
}

func (s *ChatService) strategyFor(intent string) ChatStrategy {
	for _, st := range s.strategies {
		if st.CanHandle(intent) {
			return st
		}
	}
	for _, st := range s.strategies {
		if st.CanHandle(domain.IntentGeneral) {
			return st
		}
	}
	return nil
}

func (s *ChatService) fallback(intent, outcome string) *domain.ChatResponse {
	s.metrics.IncrChat(outcome)
	return &domain.ChatResponse{
		Message:     FallbackMessage,
		Suggestions: suggestionsFor(domain.IntentGeneral),
		Intent:      intent,
	}
}

package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

const geminiServiceName = "gemini"

// GeminiGenerator answers through the Gemini API.
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
	cb        *gobreaker.CircuitBreaker
	cfg       resilience.Config
}

// NewGeminiGenerator opens a Gemini client for modelName.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, modelName: modelName, cb: cb, cfg: cfg}, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// Generate sends the context block, the recent history and the message as
// one prompt under the request's system instruction.
func (g *GeminiGenerator) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "GeminiGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("llm.model", g.modelName),
	)

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.4)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	prompt := BuildPrompt(req)

	result, err := g.cb.Execute(func() (any, error) {
		var resp *genai.GenerateContentResponse
		innerErr := resilience.RetryWithBackoff(ctx, g.cfg, func() error {
			var callErr error
			resp, callErr = model.GenerateContent(ctx, genai.Text(prompt))
			return callErr
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return resp, nil
	})
	if err != nil {
		if resilience.IsBreakerOpen(err) {
			return nil, &maindomain.ErrCircuitOpen{Service: geminiServiceName}
		}
		return nil, &maindomain.ErrExternalService{Service: geminiServiceName, Err: err}
	}

	resp := result.(*genai.GenerateContentResponse)
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &maindomain.ErrExternalService{Service: geminiServiceName, Err: errors.New("no candidates in response")}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := &domain.GenerateResult{Text: text.String()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	span.SetAttributes(attribute.Int("llm.tokens", out.PromptTokens+out.CompletionTokens))
	return out, nil
}

// BuildPrompt lays out the context block, the conversation so far and the
// new message.
func BuildPrompt(req *domain.GenerateRequest) string {
	var b strings.Builder
	b.WriteString("USER FINANCIAL DATA\n")
	b.WriteString(req.Context)
	if len(req.History) > 0 {
		b.WriteString("\nCONVERSATION SO FAR\n")
		for _, t := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Message)
		}
	}
	b.WriteString("\nUSER MESSAGE\n")
	b.WriteString(req.Message)
	return b.String()
}

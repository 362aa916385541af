// Package infra holds the assistant's text generator adapters.
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("chat/infra")

const agentServiceName = "chat-agent"

// ChatAgentClient calls an external agent over HTTP:
//
//	POST {baseURL}/v1/chat
//	{"query": "...", "user_id": "...", "instructions": "...", "context": "...", "history": [...]}
//	→ {"answer": "...", "tokens_used": 1250}
type ChatAgentClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewChatAgentClient builds the client. baseURL must not include /v1/chat.
func NewChatAgentClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ChatAgentClient {
	return &ChatAgentClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// Generate sends the request through the breaker, retrying transient
// failures. 4xx answers are not retried.
func (c *ChatAgentClient) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "ChatAgentClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID))

	body, err := json.Marshal(&domain.ChatAgentRequest{
		Query:        req.Message,
		UserID:       req.UserID,
		Instructions: req.System,
		Context:      req.Context,
		History:      req.History,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		var agentResp domain.ChatAgentResponse
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			agentResp = domain.ChatAgentResponse{}
			return c.post(ctx, body, &agentResp)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &agentResp, nil
	})
	if err != nil {
		if resilience.IsBreakerOpen(err) {
			return nil, &maindomain.ErrCircuitOpen{Service: agentServiceName}
		}
		return nil, &maindomain.ErrExternalService{Service: agentServiceName, Err: err}
	}

	resp := result.(*domain.ChatAgentResponse)
	out := &domain.GenerateResult{
		Text:             resp.Answer,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if out.PromptTokens == 0 && out.CompletionTokens == 0 {
		out.CompletionTokens = resp.TokensUsed
	}
	span.SetAttributes(attribute.Int("llm.tokens", out.PromptTokens+out.CompletionTokens))
	return out, nil
}

func (c *ChatAgentClient) post(ctx context.Context, body []byte, out *domain.ChatAgentResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("create http request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http call to agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("agent /v1/chat returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	return nil
}

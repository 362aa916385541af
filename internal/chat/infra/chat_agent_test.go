package infra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"
)

func newAgent(url string) *ChatAgentClient {
	return NewChatAgentClient(http.DefaultClient, url+"/", resilience.NewCircuitBreaker("test-agent"), resilience.Config{MaxRetries: 2})
}

func TestChatAgentClient_Generate(t *testing.T) {
	var got domain.ChatAgentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"Spend less on food.","tokens_used":42}`))
	}))
	defer srv.Close()

	res, err := newAgent(srv.URL).Generate(context.Background(), &domain.GenerateRequest{
		UserID:  "u1",
		System:  "be brief",
		Context: "ACTIVE BUDGETS",
		History: []domain.ChatTurn{{Role: domain.RoleUser, Message: "hi"}},
		Message: "tips?",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Spend less on food." || res.CompletionTokens != 42 || res.PromptTokens != 0 {
		t.Errorf("result = %+v", res)
	}
	if got.Query != "tips?" || got.UserID != "u1" || got.Instructions != "be brief" || len(got.History) != 1 {
		t.Errorf("agent received %+v", got)
	}
}

func TestChatAgentClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newAgent(srv.URL).Generate(context.Background(), &domain.GenerateRequest{Message: "x"})
	var ext *maindomain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != agentServiceName {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestChatAgentClient_ServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"answer":"ok","prompt_tokens":10,"completion_tokens":5,"tokens_used":15}`))
	}))
	defer srv.Close()

	res, err := newAgent(srv.URL).Generate(context.Background(), &domain.GenerateRequest{Message: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.PromptTokens != 10 || res.CompletionTokens != 5 {
		t.Errorf("tokens = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestChatAgentClient_OpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewChatAgentClient(http.DefaultClient, srv.URL, resilience.NewCircuitBreaker("open-agent"), resilience.Config{})
	for i := 0; i < 5; i++ {
		_, _ = client.Generate(context.Background(), &domain.GenerateRequest{Message: "x"})
	}
	_, err := client.Generate(context.Background(), &domain.GenerateRequest{Message: "x"})
	var open *maindomain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(&domain.GenerateRequest{
		Context: "ACTIVE GOALS\n- Trip\n",
		History: []domain.ChatTurn{
			{Role: domain.RoleUser, Message: "hi"},
			{Role: domain.RoleAssistant, Message: "hello"},
		},
		Message: "how is my trip goal?",
	})
	ctxAt := strings.Index(p, "ACTIVE GOALS")
	histAt := strings.Index(p, "assistant: hello")
	msgAt := strings.Index(p, "how is my trip goal?")
	if ctxAt < 0 || histAt < ctxAt || msgAt < histAt {
		t.Errorf("unexpected prompt layout:\n%s", p)
	}
}

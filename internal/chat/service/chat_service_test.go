package service_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/chat/port"
	"github.com/boddenberg/fintrack-bfa-go/internal/chat/service"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// --- Mocks ---

type stubLoader struct {
	mu    sync.Mutex
	fc    *domain.FinancialContext
	err   error
	calls int
}

func (l *stubLoader) Load(context.Context, string) (*domain.FinancialContext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.fc, nil
}

type stubGenerator struct {
	result *domain.GenerateResult
	err    error
	got    *domain.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	g.got = req
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func budgetRow(category string, amount, spent float64) maindomain.BudgetWithSpending {
	b := maindomain.Budget{
		Category:        category,
		Amount:          amount,
		Period:          maindomain.PeriodMonthly,
		AlertThresholds: maindomain.DefaultThresholds(),
		IsActive:        true,
	}
	return maindomain.BudgetWithSpending{Budget: b, BudgetSpending: maindomain.ComputeSpending(&b, spent, 1)}
}

func snapshot() *domain.FinancialContext {
	return &domain.FinancialContext{
		Summary: maindomain.FinancialSummary{
			From: "2024-03-01", To: "2024-03-15",
			TotalIncome: 3000, TotalExpenses: 270, Balance: 2730, SavingsRate: 91, TransactionCount: 3,
		},
		Budgets: []maindomain.BudgetWithSpending{
			budgetRow("transportation", 100, 20),
			budgetRow("food", 200, 250),
		},
		Recent: []maindomain.Transaction{
			{Kind: maindomain.KindExpense, Category: "food", Amount: 250, Date: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		},
		Health: maindomain.HealthScore{Score: 72, Grade: "good"},
	}
}

func newChat(loader *stubLoader, gen *stubGenerator) (*service.ChatService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	c := cache.New[*domain.FinancialContext](time.Minute)
	var generator port.TextGenerator
	if gen != nil {
		generator = gen
	}
	svc := service.NewChatService(
		loader, generator, service.DefaultStrategies(), c,
		resilience.NewBulkhead(2), metrics, zap.NewNop(), 7,
	)
	return svc, metrics
}

// --- Tests ---

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Hello there", domain.IntentGreeting},
		{"hi, how are my budgets?", domain.IntentGreeting},
		{"How are my budgets?", domain.IntentBudgetHelp},
		{"How much did I spend on food?", domain.IntentSpendingSummary},
		{"Where did my money go?", domain.IntentSpendingSummary},
		{"What bills are due this week?", domain.IntentUpcomingBills},
		{"Any tips to save more?", domain.IntentFinancialTips},
		{"How is my vacation goal going?", domain.IntentGoalProgress},
		{"How do I add a transaction?", domain.IntentTransactionHelp},
		{"They said the sky is blue", domain.IntentGeneral},
		{"Tell me a joke", domain.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := service.DetectIntent(tt.message); got != tt.want {
				t.Errorf("DetectIntent(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestProcessMessage_BudgetHelpListsAttentionBeforeOnTrack(t *testing.T) {
	svc, metrics := newChat(&stubLoader{fc: snapshot()}, nil)

	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{Message: "How are my budgets?"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Intent != domain.IntentBudgetHelp {
		t.Errorf("intent = %q, want budget_help", resp.Intent)
	}

	msg := resp.Message
	attention := strings.Index(msg, service.HeadingNeedsAttention)
	food := strings.Index(msg, "food")
	onTrack := strings.Index(msg, service.HeadingOnTrack)
	transport := strings.Index(msg, "transportation")
	if attention < 0 || onTrack < 0 {
		t.Fatalf("missing headings in %q", msg)
	}
	if !(attention < food && food < onTrack && onTrack < transport) {
		t.Errorf("unexpected layout:\n%s", msg)
	}
	if !strings.Contains(msg, "exceeded") || !strings.Contains(msg, "over by $50.00") {
		t.Errorf("exceeded budget not described: %q", msg)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
	if snap := metrics.AssistantSnapshot(); snap.TotalRequests != 1 || snap.ErrorRate != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestProcessMessage_GeneratorFailureFallsBack(t *testing.T) {
	gen := &stubGenerator{err: &maindomain.ErrExternalService{Service: "gemini", Err: errors.New("boom")}}
	svc, metrics := newChat(&stubLoader{fc: snapshot()}, gen)

	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{Message: "How are my budgets?"})
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if resp.Message != service.FallbackMessage {
		t.Errorf("message = %q, want the fallback", resp.Message)
	}
	if resp.Intent != domain.IntentBudgetHelp {
		t.Errorf("intent = %q, want it preserved", resp.Intent)
	}
	if !reflect.DeepEqual(resp.Suggestions, service.GenericSuggestions) {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}
	if snap := metrics.AssistantSnapshot(); snap.FallbackRate != 1 {
		t.Errorf("fallback rate = %v, want 1", snap.FallbackRate)
	}
}

func TestProcessMessage_ContextFailureFallsBack(t *testing.T) {
	svc, _ := newChat(&stubLoader{err: errors.New("store down")}, nil)

	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{Message: "show my spending"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Message != service.FallbackMessage || resp.Intent != domain.IntentSpendingSummary {
		t.Errorf("resp = %+v", resp)
	}
}

func TestProcessMessage_GreetingSkipsContext(t *testing.T) {
	loader := &stubLoader{err: errors.New("store down")}
	svc, _ := newChat(loader, nil)

	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{Message: "Hello!"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Intent != domain.IntentGreeting || resp.Message == service.FallbackMessage {
		t.Errorf("resp = %+v", resp)
	}
	if loader.calls != 0 {
		t.Errorf("loader called %d times for a greeting", loader.calls)
	}
}

func TestProcessMessage_GenerativeSendsContextAndRecentHistory(t *testing.T) {
	gen := &stubGenerator{result: &domain.GenerateResult{Text: "  Cut back on food.  ", PromptTokens: 120, CompletionTokens: 30}}
	loader := &stubLoader{fc: snapshot()}
	svc, metrics := newChat(loader, gen)

	history := make([]domain.ChatTurn, 12)
	for i := range history {
		history[i] = domain.ChatTurn{Role: domain.RoleUser, Message: string(rune('a' + i))}
	}
	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{
		Message:             "Any tips for me?",
		ConversationHistory: history,
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Message != "Cut back on food." || resp.Intent != domain.IntentFinancialTips {
		t.Errorf("resp = %+v", resp)
	}

	if gen.got == nil {
		t.Fatal("generator not called")
	}
	if len(gen.got.History) != domain.HistoryWindow || gen.got.History[0].Message != "c" {
		t.Errorf("history = %+v, want the last 10 turns", gen.got.History)
	}
	for _, want := range []string{"FINANCIAL SUMMARY", "ACTIVE BUDGETS", "food monthly", "RECENT TRANSACTIONS", "UPCOMING BILLS"} {
		if !strings.Contains(gen.got.Context, want) {
			t.Errorf("context block missing %q:\n%s", want, gen.got.Context)
		}
	}
	if snap := metrics.AssistantSnapshot(); snap.AvgTokensPerRequest != 150 {
		t.Errorf("avg tokens = %v, want 150", snap.AvgTokensPerRequest)
	}
}

func TestProcessMessage_ContextIsCachedPerUser(t *testing.T) {
	loader := &stubLoader{fc: snapshot()}
	svc, metrics := newChat(loader, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.ProcessMessage(ctx, "u1", &domain.ChatRequest{Message: "How are my budgets?"}); err != nil {
			t.Fatalf("ProcessMessage: %v", err)
		}
	}
	if _, err := svc.ProcessMessage(ctx, "u2", &domain.ChatRequest{Message: "How are my budgets?"}); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if loader.calls != 2 {
		t.Errorf("loader calls = %d, want one per user", loader.calls)
	}
	if snap := metrics.AssistantSnapshot(); snap.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate = %v, want 0.5", snap.CacheHitRate)
	}
}

func TestProcessMessage_UpcomingBillsUsesWindow(t *testing.T) {
	fc := snapshot()
	fc.Bills = []maindomain.BillView{
		{Bill: maindomain.Bill{Name: "Internet", Amount: 60, DueDate: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)}, DaysUntilDue: 2},
		{Bill: maindomain.Bill{Name: "Insurance", Amount: 300, DueDate: time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)}, DaysUntilDue: 20},
	}
	svc, _ := newChat(&stubLoader{fc: fc}, nil)

	resp, err := svc.ProcessMessage(context.Background(), "u1", &domain.ChatRequest{Message: "Which bills are coming?"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "Internet") || strings.Contains(resp.Message, "Insurance") {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "1 bill due in the next 7 days ($60.00 total)") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestProcessMessage_Validation(t *testing.T) {
	svc, _ := newChat(&stubLoader{fc: snapshot()}, nil)
	tests := []struct {
		name  string
		req   domain.ChatRequest
		field string
	}{
		{"empty", domain.ChatRequest{Message: "   "}, "message"},
		{"too long", domain.ChatRequest{Message: strings.Repeat("a", domain.MaxMessageLength+1)}, "message"},
		{"bad role", domain.ChatRequest{Message: "hi", ConversationHistory: []domain.ChatTurn{{Role: "system", Message: "x"}}}, "conversationHistory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessMessage(context.Background(), "u1", &tt.req)
			var v *maindomain.ErrValidation
			if !errors.As(err, &v) || v.Field != tt.field {
				t.Errorf("err = %v, want validation on %s", err, tt.field)
			}
		})
	}
}

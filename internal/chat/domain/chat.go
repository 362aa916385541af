// Package domain holds the assistant's request, response and context types.
//
// The assistant has no state of its own: every answer is rendered from a
// FinancialContext snapshot read through the trackers and the aggregator.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// Intents recognised by the classifier.
const (
	IntentGreeting        = "greeting"
	IntentSpendingSummary = "spending_summary"
	IntentBudgetHelp      = "budget_help"
	IntentUpcomingBills   = "upcoming_bills"
	IntentFinancialTips   = "financial_tips"
	IntentGoalProgress    = "goal_progress"
	IntentTransactionHelp = "transaction_help"
	IntentGeneral         = "general"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessageLength caps the user message, counted in runes.
const MaxMessageLength = 2000

// HistoryWindow is how many past turns are forwarded to a text generator.
const HistoryWindow = 10

// ============================================================
// Chat: request/response between the caller and the API
// ============================================================

// ChatTurn is one past message of the conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ChatRequest is the body of POST /v1/chat/message.
type ChatRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversationHistory"`
}

// Validate trims the message and rejects empty or oversized input and
// unknown history roles.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return &maindomain.ErrValidation{Field: "message", Message: "message is required"}
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return &maindomain.ErrValidation{Field: "message", Message: "message must be at most 2000 characters"}
	}
	for _, t := range r.ConversationHistory {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return &maindomain.ErrValidation{Field: "conversationHistory", Message: "role must be user or assistant"}
		}
	}
	return nil
}

// RecentHistory returns the last HistoryWindow turns.
func (r *ChatRequest) RecentHistory() []ChatTurn {
	if len(r.ConversationHistory) <= HistoryWindow {
		return r.ConversationHistory
	}
	return r.ConversationHistory[len(r.ConversationHistory)-HistoryWindow:]
}

// ChatResponse is what the assistant answers.
type ChatResponse struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
	Intent      string   `json:"intent"`
}

// ============================================================
// Context: what a strategy or a generator reads
// ============================================================

// FinancialContext is a point-in-time snapshot of one user's finances.
type FinancialContext struct {
	Summary     maindomain.FinancialSummary     `json:"summary"`
	Spending    maindomain.SpendingBreakdown    `json:"spending"`
	Recent      []maindomain.Transaction        `json:"recentTransactions"`
	Budgets     []maindomain.BudgetWithSpending `json:"budgets"`
	Goals       []maindomain.GoalView           `json:"goals"`
	GoalStats   maindomain.GoalProgressSummary  `json:"goalStats"`
	Bills       []maindomain.BillView           `json:"bills"`
	Patterns    maindomain.SpendingPatterns     `json:"patterns"`
	Health      maindomain.HealthScore          `json:"healthScore"`
	GeneratedAt time.Time                       `json:"generatedAt"`
}

// ChatContext is everything a strategy needs to answer one message.
type ChatContext struct {
	UserID         string
	Query          string
	DetectedIntent string
	History        []ChatTurn

	// Financial is nil for strategies that do not read user data.
	Financial *FinancialContext

	// UpcomingDays is the bill window the upcoming_bills answer uses.
	UpcomingDays int
}

// ============================================================
// Generation: between the assistant and a text generator
// ============================================================

// GenerateRequest is a provider-neutral completion request.
type GenerateRequest struct {
	UserID  string
	System  string
	Context string
	History []ChatTurn
	Message string
}

// GenerateResult is the generated text and its token usage.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// ChatAgentRequest is the payload of the HTTP agent (POST /v1/chat).
type ChatAgentRequest struct {
	Query        string     `json:"query"`
	UserID       string     `json:"user_id,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	Context      string     `json:"context,omitempty"`
	History      []ChatTurn `json:"history,omitempty"`
}

// ChatAgentResponse is the HTTP agent's answer. Agents that only report
// tokens_used have it counted as completion tokens.
type ChatAgentResponse struct {
	Answer           string   `json:"answer"`
	Sources          []string `json:"sources,omitempty"`
	TokensUsed       int      `json:"tokens_used"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	Timestamp        string   `json:"timestamp,omitempty"`
}

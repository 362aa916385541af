package service

import (
	"strings"
	"unicode"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
)

// intentRule maps keywords to an intent. Rules are tried in order and the
// first match wins.
type intentRule struct {
	intent   string
	keywords []string
}

var intentRules = []intentRule{
	{domain.IntentGreeting, []string{
		"hi", "hello", "hey", "greetings", "good morning", "good afternoon", "good evening",
	}},
	{domain.IntentSpendingSummary, []string{
		"spending", "spent", "spend", "expenses", "expense",
		"how much did i", "where did my money", "where does my money",
	}},
	{domain.IntentBudgetHelp, []string{
		"budget", "budgets", "overspending", "over budget", "limit", "limits",
	}},
	{domain.IntentUpcomingBills, []string{
		"bill", "bills", "due", "upcoming", "subscription", "subscriptions", "pay next",
	}},
	{domain.IntentFinancialTips, []string{
		"tip", "tips", "advice", "save", "saving", "savings", "improve", "health", "score",
		"how can i",
	}},
	{domain.IntentGoalProgress, []string{
		"goal", "goals", "target", "progress",
	}},
	{domain.IntentTransactionHelp, []string{
		"transaction", "transactions", "record", "categorize", "import", "add income", "add expense",
	}},
}

// DetectIntent classifies message. Single-word keywords must match a whole
// word; multi-word keywords match anywhere in the text.
func DetectIntent(message string) string {
	lower := strings.ToLower(message)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		words[strings.Trim(w, "'")] = struct{}{}
	}

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return rule.intent
				}
				continue
			}
			if _, ok := words[kw]; ok {
				return rule.intent
			}
		}
	}
	return domain.IntentGeneral
}

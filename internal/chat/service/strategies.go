package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// Section headings of the budget answer.
const (
	HeadingNeedsAttention = "⚠️ Needs attention"
	HeadingOnTrack        = "✅ On track"
)

// ChatStrategy renders the templated answer of one intent.
type ChatStrategy interface {
	// CanHandle reports whether the strategy answers intent.
	CanHandle(intent string) bool

	// NeedsContext reports whether Handle reads ChatContext.Financial.
	NeedsContext() bool

	Handle(cc *domain.ChatContext) *domain.ChatResponse
}

type templateStrategy struct {
	intent       string
	needsContext bool
	render       func(cc *domain.ChatContext) string
}

func (s *templateStrategy) CanHandle(intent string) bool { return intent == s.intent }
func (s *templateStrategy) NeedsContext() bool           { return s.needsContext }

func (s *templateStrategy) Handle(cc *domain.ChatContext) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message:     s.render(cc),
		Suggestions: suggestionsFor(s.intent),
		Intent:      s.intent,
	}
}

// DefaultStrategies returns one template strategy per intent.
func DefaultStrategies() []ChatStrategy {
	return []ChatStrategy{
		&templateStrategy{intent: domain.IntentGreeting, render: renderGreeting},
		&templateStrategy{intent: domain.IntentSpendingSummary, needsContext: true, render: renderSpendingSummary},
		&templateStrategy{intent: domain.IntentBudgetHelp, needsContext: true, render: renderBudgetHelp},
		&templateStrategy{intent: domain.IntentUpcomingBills, needsContext: true, render: renderUpcomingBills},
		&templateStrategy{intent: domain.IntentFinancialTips, needsContext: true, render: renderFinancialTips},
		&templateStrategy{intent: domain.IntentGoalProgress, needsContext: true, render: renderGoalProgress},
		&templateStrategy{intent: domain.IntentTransactionHelp, render: renderTransactionHelp},
		&templateStrategy{intent: domain.IntentGeneral, render: renderGeneral},
	}
}

var intentSuggestions = map[string][]string{
	domain.IntentGreeting:        {"Show my spending summary", "How are my budgets?", "What bills are coming up?"},
	domain.IntentSpendingSummary: {"How are my budgets?", "Give me some saving tips", "How are my goals doing?"},
	domain.IntentBudgetHelp:      {"Show my spending summary", "Give me some saving tips", "What bills are coming up?"},
	domain.IntentUpcomingBills:   {"Show my spending summary", "How are my budgets?", "How are my goals doing?"},
	domain.IntentFinancialTips:   {"How are my budgets?", "How are my goals doing?", "Show my spending summary"},
	domain.IntentGoalProgress:    {"Give me some saving tips", "Show my spending summary", "How are my budgets?"},
	domain.IntentTransactionHelp: {"Show my spending summary", "How are my budgets?", "What bills are coming up?"},
}

// GenericSuggestions are offered with the fallback answer and for
// unrecognised questions.
var GenericSuggestions = []string{
	"Show my spending summary",
	"How are my budgets?",
	"What bills are coming up?",
	"How are my goals doing?",
}

func suggestionsFor(intent string) []string {
	s, ok := intentSuggestions[intent]
	if !ok {
		s = GenericSuggestions
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// ============================================================
// Templates
// ============================================================

func renderGreeting(_ *domain.ChatContext) string {
	return "Hi! I'm your FinTrack assistant. I can summarise your spending, check your budgets, " +
		"list upcoming bills, follow your savings goals and share tips. What would you like to know?"
}

func renderGeneral(_ *domain.ChatContext) string {
	return "I'm not sure I understood that. Try asking about your spending, budgets, bills or goals, " +
		"or ask me for a few saving tips."
}

func renderTransactionHelp(_ *domain.ChatContext) string {
	var b strings.Builder
	b.WriteString("Here's how to keep your ledger up to date:\n")
	b.WriteString("• Add an income or expense with an amount, a category and a date.\n")
	b.WriteString("• Import up to 100 transactions at once with a bulk upload.\n")
	b.WriteString("• Link income to a goal to see how much you have set aside for it.\n")
	b.WriteString("• Export any date range to a spreadsheet from the transactions page.")
	return b.String()
}

func renderSpendingSummary(cc *domain.ChatContext) string {
	fc := cc.Financial
	s := fc.Summary
	if s.TransactionCount == 0 {
		return "I don't see any transactions this month yet. Add a few and I'll break down where your money goes."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's your month so far (%s to %s):\n", s.From, s.To)
	fmt.Fprintf(&b, "• Income: %s\n", money(s.TotalIncome))
	fmt.Fprintf(&b, "• Expenses: %s\n", money(s.TotalExpenses))
	fmt.Fprintf(&b, "• Balance: %s\n", money(s.Balance))
	fmt.Fprintf(&b, "• Savings rate: %s", pct(s.SavingsRate))

	if len(fc.Spending.TopCategories) > 0 {
		b.WriteString("\n\nTop spending categories:")
		for i, c := range fc.Spending.TopCategories {
			fmt.Fprintf(&b, "\n%d. %s: %s (%s)", i+1, c.Category, money(c.Total), pct(c.Percentage))
		}
	}
	return b.String()
}

func renderBudgetHelp(cc *domain.ChatContext) string {
	budgets := cc.Financial.Budgets
	if len(budgets) == 0 {
		return "You don't have any active budgets yet. Set one for a category you spend a lot on, " +
			"like food or shopping, and I'll tell you how it's going."
	}

	var attention, onTrack []maindomain.BudgetWithSpending
	for _, b := range budgets {
		if b.Status == maindomain.BudgetGood {
			onTrack = append(onTrack, b)
		} else {
			attention = append(attention, b)
		}
	}
	sort.SliceStable(attention, func(i, j int) bool { return attention[i].Percentage > attention[j].Percentage })

	var b strings.Builder
	fmt.Fprintf(&b, "Here's how your %d %s look:", len(budgets), plural(len(budgets), "budget", "budgets"))
	if len(attention) > 0 {
		b.WriteString("\n\n" + HeadingNeedsAttention)
		for _, x := range attention {
			fmt.Fprintf(&b, "\n• %s (%s): %s of %s spent (%s), %s",
				x.Category, x.Period, money(x.Spent), money(x.Amount), pct(x.Percentage), x.Status)
			if x.Remaining < 0 {
				fmt.Fprintf(&b, ", over by %s", money(-x.Remaining))
			}
		}
	}
	if len(onTrack) > 0 {
		b.WriteString("\n\n" + HeadingOnTrack)
		for _, x := range onTrack {
			fmt.Fprintf(&b, "\n• %s (%s): %s of %s spent (%s), %s left",
				x.Category, x.Period, money(x.Spent), money(x.Amount), pct(x.Percentage), money(x.Remaining))
		}
	}
	return b.String()
}

func renderUpcomingBills(cc *domain.ChatContext) string {
	var due []maindomain.BillView
	total := make([]float64, 0, len(cc.Financial.Bills))
	for _, bill := range cc.Financial.Bills {
		if bill.DaysUntilDue <= cc.UpcomingDays {
			due = append(due, bill)
			total = append(total, bill.Amount)
		}
	}
	if len(due) == 0 {
		return fmt.Sprintf("You have no bills due in the next %d days.", cc.UpcomingDays)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d %s due in the next %d days (%s total):",
		len(due), plural(len(due), "bill", "bills"), cc.UpcomingDays, money(maindomain.SumAmounts(total...)))
	for _, bill := range due {
		fmt.Fprintf(&b, "\n• %s: %s due %s (%s)", bill.Name, money(bill.Amount), date(bill.DueDate), dueIn(bill.DaysUntilDue))
		if bill.AutoPay {
			b.WriteString(", autopay")
		}
	}
	return b.String()
}

func renderGoalProgress(cc *domain.ChatContext) string {
	fc := cc.Financial
	if len(fc.Goals) == 0 {
		return "You don't have any active goals. Create one, like an emergency fund, and I'll track your progress."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d active %s:", len(fc.Goals), plural(len(fc.Goals), "goal", "goals"))
	for _, g := range fc.Goals {
		fmt.Fprintf(&b, "\n• %s: %s of %s (%s)", g.Name, money(g.CurrentAmount), money(g.TargetAmount), pct(g.ProgressPercentage))
		switch {
		case g.RemainingAmount == 0:
			b.WriteString(", target reached")
		case g.DaysRemaining != nil && *g.DaysRemaining >= 0:
			fmt.Fprintf(&b, ", %s to go with %d days left", money(g.RemainingAmount), *g.DaysRemaining)
		case g.DaysRemaining != nil:
			fmt.Fprintf(&b, ", %s to go and the deadline has passed", money(g.RemainingAmount))
		default:
			fmt.Fprintf(&b, ", %s to go", money(g.RemainingAmount))
		}
	}
	fmt.Fprintf(&b, "\n\nAverage progress across all goals: %s.", pct(fc.GoalStats.AverageProgress))
	return b.String()
}

func renderFinancialTips(cc *domain.ChatContext) string {
	fc := cc.Financial
	var tips []string

	if fc.Summary.TotalIncome > 0 && fc.Summary.SavingsRate < 20 {
		tips = append(tips, fmt.Sprintf("Aim to save at least 20%% of your income. This month you're at %s.", pct(fc.Summary.SavingsRate)))
	}
	for _, x := range fc.Budgets {
		if x.Status == maindomain.BudgetExceeded || x.Status == maindomain.BudgetDanger {
			tips = append(tips, fmt.Sprintf("Your %s budget is at %s. Review those expenses before the period ends.", x.Category, pct(x.Percentage)))
		}
	}
	if fc.Patterns.TotalSpent > 0 {
		tips = append(tips, fmt.Sprintf("You spend the most on %ss. Planning purchases for that day can help.", fc.Patterns.PeakDayName))
	}
	if len(fc.Goals) == 0 {
		tips = append(tips, "Set a savings goal so your surplus has a purpose.")
	}
	if len(fc.Budgets) == 0 {
		tips = append(tips, "Create budgets for your top spending categories.")
	}
	if len(tips) == 0 {
		tips = append(tips, "You're on track. Consider raising a goal target to keep the momentum.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your financial health score is %d/100 (%s).\n\nTips:", fc.Health.Score, fc.Health.Grade)
	for _, t := range tips {
		b.WriteString("\n• " + t)
	}
	return b.String()
}

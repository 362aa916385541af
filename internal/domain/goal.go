package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ============================================================
// Goal Tracker
// ============================================================

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
		return true
	}
	return false
}

// Goal is a named savings target. CurrentAmount is written only by explicit
// updates and contributions; linked transactions are summed on read.
type Goal struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	TargetAmount  float64    `json:"targetAmount"`
	CurrentAmount float64    `json:"currentAmount"`
	Category      string     `json:"category,omitempty"`
	Priority      Priority   `json:"priority"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Status        GoalStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// GoalProgressPercentage returns current/target*100 clamped to [0, 100].
// The clamped value is the only one exposed anywhere.
func GoalProgressPercentage(current, target float64) float64 {
	p := Percent(current, target)
	return math.Min(math.Max(p, 0), 100)
}

// GoalRemainingAmount returns max(target-current, 0).
func GoalRemainingAmount(current, target float64) float64 {
	return math.Max(SumAmounts(target, -current), 0)
}

// GoalView is a goal with its derived progress fields.
type GoalView struct {
	Goal
	ProgressPercentage float64 `json:"progressPercentage"`
	RemainingAmount    float64 `json:"remainingAmount"`
	DaysRemaining      *int    `json:"daysRemaining,omitempty"`
}

// ViewGoal derives the progress fields of g as of today.
func ViewGoal(g Goal, today time.Time) GoalView {
	v := GoalView{
		Goal:               g,
		ProgressPercentage: GoalProgressPercentage(g.CurrentAmount, g.TargetAmount),
		RemainingAmount:    GoalRemainingAmount(g.CurrentAmount, g.TargetAmount),
	}
	if g.Deadline != nil {
		d := DaysBetween(today, *g.Deadline)
		v.DaysRemaining = &d
	}
	return v
}

// GoalInput is the create/replace payload for a goal.
type GoalInput struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	TargetAmount  float64    `json:"targetAmount"`
	CurrentAmount float64    `json:"currentAmount"`
	Category      string     `json:"category"`
	Priority      Priority   `json:"priority"`
	Deadline      Date       `json:"deadline"`
	Status        GoalStatus `json:"status"`
}

// Validate checks the goal payload and fills enum defaults.
func (in *GoalInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if len(in.Name) > 100 {
		return &ErrValidation{Field: "name", Message: "must be at most 100 characters"}
	}
	if err := CheckPositive("targetAmount", in.TargetAmount); err != nil {
		return err
	}
	if in.CurrentAmount < 0 {
		return &ErrValidation{Field: "currentAmount", Message: "must not be negative"}
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return &ErrValidation{Field: "priority", Message: "must be one of low, medium, high"}
	}
	if in.Status == "" {
		in.Status = GoalActive
	}
	if !in.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "must be one of active, completed, paused, cancelled"}
	}
	return nil
}

// ContributionInput is the body of PATCH /goals/{id}/progress.
type ContributionInput struct {
	Amount float64 `json:"amount"`
}

// GoalProgressSummary is the rollup across a user's goals.
type GoalProgressSummary struct {
	TotalGoals      int                `json:"totalGoals"`
	TotalTarget     float64            `json:"totalTarget"`
	TotalSaved      float64            `json:"totalSaved"`
	AverageProgress float64            `json:"averageProgress"`
	StatusCounts    map[GoalStatus]int `json:"statusCounts"`
	TopGoals        []GoalView         `json:"topGoals"`
}

// EmptyGoalStatusCounts returns a counter with every bucket present.
func EmptyGoalStatusCounts() map[GoalStatus]int {
	return map[GoalStatus]int{GoalActive: 0, GoalCompleted: 0, GoalPaused: 0, GoalCancelled: 0}
}

// SummarizeGoals builds the rollup across goals. AverageProgress is the
// unweighted mean of the clamped per-goal percentages, so a small goal
// counts as much as a large one. TopGoals holds the five active goals with
// the highest progress.
func SummarizeGoals(goals []Goal, today time.Time) GoalProgressSummary {
	s := GoalProgressSummary{
		TotalGoals:   len(goals),
		StatusCounts: EmptyGoalStatusCounts(),
		TopGoals:     []GoalView{},
	}
	targets := make([]float64, 0, len(goals))
	saved := make([]float64, 0, len(goals))
	progress := make([]float64, 0, len(goals))
	for _, g := range goals {
		v := ViewGoal(g, today)
		targets = append(targets, g.TargetAmount)
		saved = append(saved, g.CurrentAmount)
		progress = append(progress, v.ProgressPercentage)
		s.StatusCounts[g.Status]++
		if g.Status == GoalActive {
			s.TopGoals = append(s.TopGoals, v)
		}
	}
	s.TotalTarget = SumAmounts(targets...)
	s.TotalSaved = SumAmounts(saved...)
	if len(progress) > 0 {
		s.AverageProgress = Round2(SumAmounts(progress...) / float64(len(progress)))
	}

	sort.SliceStable(s.TopGoals, func(i, j int) bool {
		return s.TopGoals[i].ProgressPercentage > s.TopGoals[j].ProgressPercentage
	})
	if len(s.TopGoals) > 5 {
		s.TopGoals = s.TopGoals[:5]
	}
	return s
}

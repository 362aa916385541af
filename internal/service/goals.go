package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var goalTracer = otel.Tracer("service/goals")

// GoalService manages savings goals. currentAmount changes only through
// Update and AddContribution.
type GoalService struct {
	goals port.GoalStore
	emitter
	now Clock
}

func NewGoalService(goals port.GoalStore, events port.EventPublisher, logger *zap.Logger) *GoalService {
	return &GoalService{
		goals:   goals,
		emitter: emitter{events: events, logger: logger},
		now:     systemClock,
	}
}

// WithClock overrides the time source.
func (s *GoalService) WithClock(c Clock) *GoalService {
	s.now = c
	return s
}

func (s *GoalService) Create(ctx context.Context, userID string, in *domain.GoalInput) (*domain.GoalView, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	g := &domain.Goal{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	applyGoal(g, in)
	g.UpdatedAt = now

	if err := s.goals.CreateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	s.logger.Info("goal created",
		zap.String("user_id", userID),
		zap.String("goal_id", g.ID),
		zap.Float64("target", g.TargetAmount),
	)
	s.changed(userID)
	v := domain.ViewGoal(*g, now)
	return &v, nil
}

func (s *GoalService) Get(ctx context.Context, userID, id string) (*domain.GoalView, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Get")
	defer span.End()

	g, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v := domain.ViewGoal(*g, s.now())
	return &v, nil
}

func (s *GoalService) List(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.GoalView, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.List")
	defer span.End()

	if status != "" && !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be one of active, completed, paused, cancelled"}
	}
	rows, err := s.goals.ListGoals(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	today := s.now()
	out := make([]domain.GoalView, 0, len(rows))
	for _, g := range rows {
		out = append(out, domain.ViewGoal(g, today))
	}
	return out, nil
}

func (s *GoalService) Update(ctx context.Context, userID, id string, in *domain.GoalInput) (*domain.GoalView, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Update")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	g, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyGoal(g, in)
	g.UpdatedAt = s.now()

	if err := s.goals.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}
	s.changed(userID)
	v := domain.ViewGoal(*g, g.UpdatedAt)
	return &v, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := goalTracer.Start(ctx, "GoalService.Delete")
	defer span.End()

	if err := s.goals.DeleteGoal(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("goal deleted", zap.String("user_id", userID), zap.String("goal_id", id))
	s.changed(userID)
	return nil
}

// AddContribution increments currentAmount in one store operation. An active
// goal that reaches its target is marked completed; saving past the target
// is allowed.
func (s *GoalService) AddContribution(ctx context.Context, userID, id string, amount float64) (*domain.GoalView, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.AddContribution")
	defer span.End()
	span.SetAttributes(attribute.String("goal.id", id), attribute.Float64("amount", amount))

	if err := domain.CheckPositive("amount", amount); err != nil {
		return nil, err
	}
	g, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if g.Status == domain.GoalCancelled {
		return nil, &domain.ErrValidation{Field: "status", Message: "cannot contribute to a cancelled goal"}
	}

	updated, err := s.goals.IncrementGoal(ctx, userID, id, domain.Round2(amount))
	if err != nil {
		return nil, fmt.Errorf("increment goal: %w", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "goal", ID: id}
	}
	s.emit(ctx, domain.EventGoalContributed, userID, id, amount, "")

	if updated.Status == domain.GoalActive && updated.CurrentAmount >= updated.TargetAmount {
		updated.Status = domain.GoalCompleted
		updated.UpdatedAt = s.now()
		if err := s.goals.UpdateGoal(ctx, updated); err != nil {
			return nil, fmt.Errorf("complete goal: %w", err)
		}
		s.logger.Info("goal completed", zap.String("user_id", userID), zap.String("goal_id", id))
		s.emit(ctx, domain.EventGoalCompleted, userID, id, updated.CurrentAmount, "")
	}

	v := domain.ViewGoal(*updated, s.now())
	return &v, nil
}

// Stats is the rollup across every goal of the caller.
func (s *GoalService) Stats(ctx context.Context, userID string) (*domain.GoalProgressSummary, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Stats")
	defer span.End()

	rows, err := s.goals.ListGoals(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	summary := domain.SummarizeGoals(rows, s.now())
	return &summary, nil
}

func (s *GoalService) find(ctx context.Context, userID, id string) (*domain.Goal, error) {
	g, err := s.goals.GetGoal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if g == nil {
		return nil, &domain.ErrNotFound{Resource: "goal", ID: id}
	}
	return g, nil
}

func applyGoal(g *domain.Goal, in *domain.GoalInput) {
	g.Name = in.Name
	g.Description = in.Description
	g.TargetAmount = domain.Round2(in.TargetAmount)
	g.CurrentAmount = domain.Round2(in.CurrentAmount)
	g.Category = in.Category
	g.Priority = in.Priority
	g.Status = in.Status
	g.Deadline = nil
	if !in.Deadline.IsZero() {
		d := in.Deadline.Time
		g.Deadline = &d
	}
}

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

var billTracer = otel.Tracer("service/bills")

// UpcomingStatsWindow is the look-ahead, in days, of the bill stats.
const UpcomingStatsWindow = 30

// BillService manages recurring bills and their payment cycles.
type BillService struct {
	bills port.BillStore
	emitter
	now Clock
}

func NewBillService(bills port.BillStore, events port.EventPublisher, logger *zap.Logger) *BillService {
	return &BillService{
		bills:   bills,
		emitter: emitter{events: events, logger: logger},
		now:     systemClock,
	}
}

// WithClock overrides the time source.
func (s *BillService) WithClock(c Clock) *BillService {
	s.now = c
	return s
}

func (s *BillService) Create(ctx context.Context, userID string, in *domain.BillInput) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := in.Validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = domain.BillActive
	}
	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be one of active, paused, cancelled"}
	}

	now := s.now()
	b := &domain.Bill{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         status,
		PaymentHistory: []domain.PaymentRecord{},
		CreatedAt:      now,
	}
	applyBill(b, in)
	b.UpdatedAt = now

	if err := s.bills.CreateBill(ctx, b); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	s.logger.Info("bill created",
		zap.String("user_id", userID),
		zap.String("bill_id", b.ID),
		zap.String("frequency", string(b.Frequency)),
	)
	s.changed(userID)
	v := domain.ViewBill(*b, now)
	return &v, nil
}

func (s *BillService) Get(ctx context.Context, userID, id string) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Get")
	defer span.End()

	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v := domain.ViewBill(*b, s.now())
	return &v, nil
}

func (s *BillService) List(ctx context.Context, userID string, status domain.BillStatus) ([]domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.List")
	defer span.End()

	if status != "" && !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be one of active, paused, cancelled"}
	}
	rows, err := s.bills.ListBills(ctx, domain.BillFilter{UserID: userID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return s.views(rows, nil), nil
}

// Update replaces the descriptive fields. Status moves only through
// Pause/Resume/Cancel and the payment history only through MarkPaid.
func (s *BillService) Update(ctx context.Context, userID, id string, in *domain.BillInput) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Update")
	defer span.End()

	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.DueDate.IsZero() {
		in.DueDate = domain.NewDate(b.DueDate)
	}
	if in.ReminderDays == nil {
		r := b.ReminderDays
		in.ReminderDays = &r
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Status != "" && in.Status != b.Status {
		return nil, &domain.ErrValidation{Field: "status", Message: "use the pause, resume or cancel actions"}
	}
	applyBill(b, in)
	b.UpdatedAt = s.now()

	if err := s.bills.UpdateBill(ctx, b); err != nil {
		return nil, err
	}
	s.changed(userID)
	v := domain.ViewBill(*b, b.UpdatedAt)
	return &v, nil
}

func (s *BillService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := billTracer.Start(ctx, "BillService.Delete")
	defer span.End()

	if err := s.bills.DeleteBill(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("bill deleted", zap.String("user_id", userID), zap.String("bill_id", id))
	s.changed(userID)
	return nil
}

// ============================================================
// MarkPaid: PATCH /v1/bills/{id}/paid
// ============================================================

// MarkPaid settles the current occurrence of an active bill and advances its
// due date by one frequency step.
func (s *BillService) MarkPaid(ctx context.Context, userID, id string, in *domain.PaymentInput) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.MarkPaid")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", id))

	if err := in.Validate(); err != nil {
		return nil, err
	}
	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BillActive {
		return nil, &domain.ErrInvalidTransition{Resource: "bill", From: string(b.Status), To: "paid"}
	}

	now := s.now()
	settled := b.DueDate
	rec := b.MarkPaid(uuid.NewString(), *in, now)
	b.UpdatedAt = now
	if err := s.bills.UpdateBill(ctx, b); err != nil {
		return nil, fmt.Errorf("mark bill paid: %w", err)
	}

	s.logger.Info("bill paid",
		zap.String("user_id", userID),
		zap.String("bill_id", id),
		zap.Float64("amount", rec.Amount),
		zap.String("settled", settled.Format(domain.DateLayout)),
		zap.String("next_due", b.DueDate.Format(domain.DateLayout)),
	)
	s.emit(ctx, domain.EventBillPaid, userID, id, rec.Amount, settled.Format(domain.DateLayout))
	v := domain.ViewBill(*b, now)
	return &v, nil
}

// ============================================================
// Status transitions: pause / resume / cancel
// ============================================================

func (s *BillService) Pause(ctx context.Context, userID, id string) (*domain.BillView, error) {
	return s.transition(ctx, userID, id, domain.BillPaused)
}

func (s *BillService) Resume(ctx context.Context, userID, id string) (*domain.BillView, error) {
	return s.transition(ctx, userID, id, domain.BillActive)
}

func (s *BillService) Cancel(ctx context.Context, userID, id string) (*domain.BillView, error) {
	return s.transition(ctx, userID, id, domain.BillCancelled)
}

func (s *BillService) transition(ctx context.Context, userID, id string, to domain.BillStatus) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", id), attribute.String("bill.to", string(to)))

	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := b.Transition(to); err != nil {
		return nil, err
	}
	b.UpdatedAt = s.now()
	if err := s.bills.UpdateBill(ctx, b); err != nil {
		return nil, fmt.Errorf("update bill status: %w", err)
	}

	s.logger.Info("bill status changed",
		zap.String("bill_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.emit(ctx, domain.EventBillStatusChanged, userID, id, 0, string(from)+"->"+string(to))
	v := domain.ViewBill(*b, b.UpdatedAt)
	return &v, nil
}

// ============================================================
// Due windows
// ============================================================

// Upcoming returns active, unpaid bills due in [today, today+days], soonest first.
func (s *BillService) Upcoming(ctx context.Context, userID string, days int) ([]domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Upcoming")
	defer span.End()

	if days < 0 {
		return nil, &domain.ErrValidation{Field: "days", Message: "must not be negative"}
	}
	today := domain.DateOnly(s.now())
	rows, err := s.bills.ListBills(ctx, domain.BillFilter{
		UserID:  userID,
		Status:  domain.BillActive,
		DueFrom: today,
		DueTo:   domain.EndOfDay(today.AddDate(0, 0, days)),
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming bills: %w", err)
	}
	return s.views(rows, func(b *domain.Bill) bool { return !b.IsPaid() }), nil
}

// Overdue returns active, unpaid bills due before today, oldest first.
func (s *BillService) Overdue(ctx context.Context, userID string) ([]domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Overdue")
	defer span.End()

	today := domain.DateOnly(s.now())
	rows, err := s.bills.ListBills(ctx, domain.BillFilter{
		UserID: userID,
		Status: domain.BillActive,
		DueTo:  domain.EndOfDay(today.AddDate(0, 0, -1)),
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue bills: %w", err)
	}
	return s.views(rows, func(b *domain.Bill) bool { return b.IsOverdue(today) }), nil
}

// Stats summarises the caller's bills: status counts, the monthly cost of
// active bills, overdue and 30-day upcoming exposure, and this month's payments.
func (s *BillService) Stats(ctx context.Context, userID string) (*domain.BillStats, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Stats")
	defer span.End()

	rows, err := s.bills.ListBills(ctx, domain.BillFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}

	today := domain.DateOnly(s.now())
	horizon := today.AddDate(0, 0, UpcomingStatsWindow)
	stats := &domain.BillStats{
		TotalBills: len(rows),
		StatusCounts: map[domain.BillStatus]int{
			domain.BillActive: 0, domain.BillPaused: 0, domain.BillCancelled: 0,
		},
	}
	var monthly, overdue, upcoming, paid []float64
	for i := range rows {
		b := &rows[i]
		stats.StatusCounts[b.Status]++
		for _, p := range b.PaymentHistory {
			if p.PaidDate.Year() == today.Year() && p.PaidDate.Month() == today.Month() {
				paid = append(paid, p.Amount)
			}
		}
		if b.Status != domain.BillActive {
			continue
		}
		monthly = append(monthly, domain.MonthlyEquivalent(b.Amount, b.Frequency))
		switch due := domain.DateOnly(b.DueDate); {
		case b.IsPaid():
		case due.Before(today):
			stats.OverdueCount++
			overdue = append(overdue, b.Amount)
		case !due.After(horizon):
			stats.UpcomingCount++
			upcoming = append(upcoming, b.Amount)
		}
	}
	stats.MonthlyTotal = domain.SumAmounts(monthly...)
	stats.OverdueAmount = domain.SumAmounts(overdue...)
	stats.UpcomingAmount = domain.SumAmounts(upcoming...)
	stats.PaidThisMonth = domain.SumAmounts(paid...)
	stats.PaymentsThisMonth = len(paid)
	return stats, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *BillService) find(ctx context.Context, userID, id string) (*domain.Bill, error) {
	b, err := s.bills.GetBill(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	if b == nil {
		return nil, &domain.ErrNotFound{Resource: "bill", ID: id}
	}
	return b, nil
}

func (s *BillService) views(rows []domain.Bill, keep func(*domain.Bill) bool) []domain.BillView {
	today := s.now()
	out := make([]domain.BillView, 0, len(rows))
	for i := range rows {
		if keep != nil && !keep(&rows[i]) {
			continue
		}
		out = append(out, domain.ViewBill(rows[i], today))
	}
	return out
}

func applyBill(b *domain.Bill, in *domain.BillInput) {
	reminder := domain.DefaultReminderDays
	if in.ReminderDays != nil {
		reminder = *in.ReminderDays
	}
	b.Name = in.Name
	b.Amount = domain.Round2(in.Amount)
	b.Category = in.Category
	b.DueDate = domain.DateOnly(in.DueDate.Time)
	b.Frequency = in.Frequency
	b.ReminderDays = reminder
	b.AutoPay = in.AutoPay
	b.Notes = in.Notes
}

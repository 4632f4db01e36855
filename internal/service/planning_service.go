package service

import (
	"context"
	"strings"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// PlanningService: orçamentos e metas
// ============================================================

// PlanningService valida e grava orçamentos e metas.
type PlanningService struct {
	store       port.PlanningStore
	expenses    *ExpenseService
	cache       port.Cache[*domain.Dashboard]
	publisher   port.EventPublisher
	bufferRatio decimal.Decimal
	logger      *zap.Logger
}

// NewPlanningService cria o serviço. bufferRatio ≤ 0 usa a folga padrão (1.10).
func NewPlanningService(
	store port.PlanningStore,
	expenses *ExpenseService,
	cache port.Cache[*domain.Dashboard],
	publisher port.EventPublisher,
	bufferRatio decimal.Decimal,
	logger *zap.Logger,
) *PlanningService {
	if !bufferRatio.IsPositive() {
		bufferRatio = analytics.DefaultBufferRatio
	}
	return &PlanningService{
		store:       store,
		expenses:    expenses,
		cache:       cache,
		publisher:   publisher,
		bufferRatio: bufferRatio,
		logger:      logger,
	}
}

// BufferRatio é a folga usada nas sugestões de limite.
func (s *PlanningService) BufferRatio() decimal.Decimal {
	return s.bufferRatio
}

// ============================================================
// Orçamentos
// ============================================================

func (s *PlanningService) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.ListBudgets")
	defer span.End()

	return s.store.ListBudgets(ctx)
}

// UpsertBudget cria ou substitui o orçamento da categoria.
// A categoria precisa ser conhecida e o limite não pode ser negativo.
// Um SmartLimit já calculado é preservado; o enviado pelo cliente é ignorado.
func (s *PlanningService) UpsertBudget(ctx context.Context, b domain.Budget) (domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.UpsertBudget")
	defer span.End()

	category, known, err := s.expenses.IsKnownCategory(ctx, strings.TrimSpace(b.Category))
	if err != nil {
		return domain.Budget{}, err
	}
	if !known {
		return domain.Budget{}, &domain.ErrValidation{Field: "category", Message: "unknown category " + b.Category}
	}
	if b.Limit.IsNegative() {
		return domain.Budget{}, &domain.ErrValidation{Field: "limit", Message: "must not be negative"}
	}
	switch b.Priority {
	case "", domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		return domain.Budget{}, &domain.ErrValidation{Field: "priority", Message: "must be high, medium or low"}
	}
	b.Category = category
	b.SmartLimit = nil

	existing, err := s.store.ListBudgets(ctx)
	if err != nil {
		return domain.Budget{}, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Category, category) {
			b.SmartLimit = e.SmartLimit
			break
		}
	}

	saved, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return domain.Budget{}, err
	}
	s.logger.Info("budget saved", zap.String("category", saved.Category), zap.String("limit", saved.Limit.String()))
	s.changed(domain.EventBudgetsChanged, "budget", saved)
	return saved, nil
}

func (s *PlanningService) DeleteBudget(ctx context.Context, category string) error {
	ctx, span := tracer.Start(ctx, "PlanningService.DeleteBudget")
	defer span.End()

	if err := s.store.DeleteBudget(ctx, category); err != nil {
		return err
	}
	s.changed(domain.EventBudgetsChanged, "budget", map[string]string{"category": category, "action": "delete"})
	return nil
}

// OptimizeBudget grava o SmartLimit do orçamento com base no gasto da categoria
// dentro do filtro (filtro vazio = todas as despesas). O Limit não muda.
func (s *PlanningService) OptimizeBudget(ctx context.Context, category string, filter domain.ExpenseFilter) (domain.BudgetSuggestion, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.OptimizeBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.category", category))

	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return domain.BudgetSuggestion{}, err
	}
	all, err := s.expenses.All(ctx)
	if err != nil {
		return domain.BudgetSuggestion{}, err
	}
	spend := categorySpend(analytics.AggregateByCategory(s.expenses.Filter(all, filter)), category)

	updated, suggestion, err := analytics.OptimizeBudget(budgets, category, spend, s.bufferRatio)
	if err != nil {
		return domain.BudgetSuggestion{}, err
	}
	if err := s.store.ReplaceBudgets(ctx, updated); err != nil {
		return domain.BudgetSuggestion{}, err
	}

	s.logger.Info("budget optimized",
		zap.String("category", suggestion.Category),
		zap.String("smart_limit", suggestion.SmartLimit.String()),
	)
	s.changed(domain.EventBudgetsChanged, "budget", suggestion)
	return suggestion, nil
}

// categorySpend soma o total da categoria sem diferenciar maiúsculas.
func categorySpend(totals map[string]decimal.Decimal, category string) decimal.Decimal {
	spend := decimal.Zero
	for c, v := range totals {
		if strings.EqualFold(c, category) {
			spend = spend.Add(v)
		}
	}
	return spend
}

// ============================================================
// Metas
// ============================================================

func (s *PlanningService) ListGoals(ctx context.Context) ([]domain.FinancialGoal, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.ListGoals")
	defer span.End()

	return s.store.ListGoals(ctx)
}

// CreateGoal valida e grava uma meta nova (id gerado pelo store).
func (s *PlanningService) CreateGoal(ctx context.Context, g domain.FinancialGoal) (domain.FinancialGoal, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.CreateGoal")
	defer span.End()

	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return domain.FinancialGoal{}, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if !g.Target.IsPositive() {
		return domain.FinancialGoal{}, &domain.ErrValidation{Field: "target", Message: "must be positive"}
	}
	if g.Current.IsNegative() {
		return domain.FinancialGoal{}, &domain.ErrValidation{Field: "current", Message: "must not be negative"}
	}
	g.ID = ""

	saved, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return domain.FinancialGoal{}, err
	}
	s.changed(domain.EventGoalsChanged, "goal", saved)
	return saved, nil
}

// UpdateGoalProgress troca o valor acumulado da meta.
func (s *PlanningService) UpdateGoalProgress(ctx context.Context, id string, current decimal.Decimal) (domain.FinancialGoal, error) {
	ctx, span := tracer.Start(ctx, "PlanningService.UpdateGoalProgress")
	defer span.End()

	if current.IsNegative() {
		return domain.FinancialGoal{}, &domain.ErrValidation{Field: "current", Message: "must not be negative"}
	}
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return domain.FinancialGoal{}, err
	}
	for _, g := range goals {
		if g.ID != id {
			continue
		}
		g.Current = current
		saved, err := s.store.UpdateGoal(ctx, g)
		if err != nil {
			return domain.FinancialGoal{}, err
		}
		s.changed(domain.EventGoalsChanged, "goal", saved)
		return saved, nil
	}
	return domain.FinancialGoal{}, &domain.ErrNotFound{Resource: "goal", ID: id}
}

func (s *PlanningService) DeleteGoal(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "PlanningService.DeleteGoal")
	defer span.End()

	if err := s.store.DeleteGoal(ctx, id); err != nil {
		return err
	}
	s.changed(domain.EventGoalsChanged, "goal", map[string]string{"id": id, "action": "delete"})
	return nil
}

func (s *PlanningService) changed(eventType, entity string, payload any) {
	if s.cache != nil {
		s.cache.Clear()
	}
	if s.publisher != nil {
		s.publisher.Publish(domain.NewEvent(eventType, entity, payload))
	}
}

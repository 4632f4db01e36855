package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/google/uuid"
)

// PlanningRepository guarda orçamentos (um por categoria, sem diferenciar maiúsculas) e metas.
type PlanningRepository struct {
	mu      sync.RWMutex
	budgets []domain.Budget
	goals   []domain.FinancialGoal
}

// NewPlanningRepository cria um repositório vazio.
func NewPlanningRepository() *PlanningRepository {
	return &PlanningRepository{}
}

func (r *PlanningRepository) ListBudgets(_ context.Context) ([]domain.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.budgets), nil
}

// UpsertBudget substitui o orçamento da mesma categoria ou acrescenta um novo.
func (r *PlanningRepository) UpsertBudget(_ context.Context, b domain.Budget) (domain.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.budgetIndex(b.Category); i >= 0 {
		r.budgets[i] = b
		return b, nil
	}
	r.budgets = append(r.budgets, b)
	return b, nil
}

func (r *PlanningRepository) ReplaceBudgets(_ context.Context, budgets []domain.Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets = slices.Clone(budgets)
	return nil
}

func (r *PlanningRepository) DeleteBudget(_ context.Context, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.budgetIndex(category)
	if i < 0 {
		return &domain.ErrNotFound{Resource: "budget", ID: category}
	}
	r.budgets = slices.Delete(r.budgets, i, i+1)
	return nil
}

func (r *PlanningRepository) ListGoals(_ context.Context) ([]domain.FinancialGoal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.goals), nil
}

// CreateGoal acrescenta a meta no fim da lista; a primeira meta é a que alimenta o score de poupança.
func (r *PlanningRepository) CreateGoal(_ context.Context, g domain.FinancialGoal) (domain.FinancialGoal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if r.goalIndex(g.ID) >= 0 {
		return domain.FinancialGoal{}, &domain.ErrConflict{Message: "goal " + g.ID + " already exists"}
	}
	r.goals = append(r.goals, g)
	return g, nil
}

func (r *PlanningRepository) UpdateGoal(_ context.Context, g domain.FinancialGoal) (domain.FinancialGoal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.goalIndex(g.ID)
	if i < 0 {
		return domain.FinancialGoal{}, &domain.ErrNotFound{Resource: "goal", ID: g.ID}
	}
	r.goals[i] = g
	return g, nil
}

func (r *PlanningRepository) DeleteGoal(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.goalIndex(id)
	if i < 0 {
		return &domain.ErrNotFound{Resource: "goal", ID: id}
	}
	r.goals = slices.Delete(r.goals, i, i+1)
	return nil
}

func (r *PlanningRepository) budgetIndex(category string) int {
	return slices.IndexFunc(r.budgets, func(b domain.Budget) bool { return strings.EqualFold(b.Category, category) })
}

func (r *PlanningRepository) goalIndex(id string) int {
	return slices.IndexFunc(r.goals, func(g domain.FinancialGoal) bool { return g.ID == id })
}

// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
)

// ExpenseSource retrieves raw expense records from the remote expense API.
type ExpenseSource interface {
	FetchExpenses(ctx context.Context) ([]domain.RawExpense, error)
}

// ExpenseStore is the canonical, process-owned list of transactions.
type ExpenseStore interface {
	List(ctx context.Context) ([]domain.Transaction, error)
	Add(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	Delete(ctx context.Context, id string) error
	Replace(ctx context.Context, txns []domain.Transaction) error
}

// PlanningStore holds budgets (one per category) and financial goals.
type PlanningStore interface {
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
	UpsertBudget(ctx context.Context, b domain.Budget) (domain.Budget, error)
	ReplaceBudgets(ctx context.Context, budgets []domain.Budget) error
	DeleteBudget(ctx context.Context, category string) error

	ListGoals(ctx context.Context) ([]domain.FinancialGoal, error)
	CreateGoal(ctx context.Context, g domain.FinancialGoal) (domain.FinancialGoal, error)
	UpdateGoal(ctx context.Context, g domain.FinancialGoal) (domain.FinancialGoal, error)
	DeleteGoal(ctx context.Context, id string) error
}

// SessionStorage persists opaque blobs under fixed keys (chats, settings).
// Load reports found=false when the key was never written.
type SessionStorage interface {
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// EventPublisher fans out change notifications to connected dashboards.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Clear()
}

// Package memory holds the process-owned in-memory stores.
// Every store is created explicitly and injected; there are no package-level instances.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/google/uuid"
)

// ExpenseRepository is the canonical list of transactions, in insertion order.
type ExpenseRepository struct {
	mu    sync.RWMutex
	items []domain.Transaction
}

// NewExpenseRepository creates a repository pre-loaded with initial.
func NewExpenseRepository(initial ...domain.Transaction) *ExpenseRepository {
	return &ExpenseRepository{items: slices.Clone(initial)}
}

// List returns a copy of every transaction.
func (r *ExpenseRepository) List(_ context.Context) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items), nil
}

// Add appends tx. An empty ID gets a fresh uuid; a duplicate ID is a conflict.
func (r *ExpenseRepository) Add(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if r.indexOf(tx.ID) >= 0 {
		return domain.Transaction{}, &domain.ErrConflict{Message: "expense " + tx.ID + " already exists"}
	}
	r.items = append(r.items, tx)
	return tx, nil
}

// Delete removes the transaction with id.
func (r *ExpenseRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	r.items = slices.Delete(r.items, i, i+1)
	return nil
}

// Replace swaps the whole list.
func (r *ExpenseRepository) Replace(_ context.Context, txns []domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = slices.Clone(txns)
	return nil
}

// Reset restores the repository to txns. Test hook.
func (r *ExpenseRepository) Reset(txns ...domain.Transaction) {
	_ = r.Replace(context.Background(), txns)
}

func (r *ExpenseRepository) indexOf(id string) int {
	return slices.IndexFunc(r.items, func(t domain.Transaction) bool { return t.ID == id })
}

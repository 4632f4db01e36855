package analytics

import (
	"fmt"
	"strings"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultBufferRatio é a folga aplicada sobre o gasto atual ao sugerir um limite.
var DefaultBufferRatio = decimal.NewFromFloat(1.10)

// SuggestSmartLimit calcula round(gasto × folga). Folga ≤ 0 usa a padrão.
func SuggestSmartLimit(categorySpend, bufferRatio decimal.Decimal) decimal.Decimal {
	if !bufferRatio.IsPositive() {
		bufferRatio = DefaultBufferRatio
	}
	return categorySpend.Mul(bufferRatio).Round(0)
}

// OptimizeBudget grava o SmartLimit do orçamento da categoria e devolve
// uma cópia da lista de orçamentos junto com a sugestão em texto.
// O Limit definido pelo usuário nunca é alterado.
func OptimizeBudget(budgets []domain.Budget, category string, categorySpend, bufferRatio decimal.Decimal) ([]domain.Budget, domain.BudgetSuggestion, error) {
	idx := -1
	for i, b := range budgets {
		if strings.EqualFold(b.Category, category) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.BudgetSuggestion{}, &domain.ErrNotFound{Resource: "budget", ID: category}
	}

	if !bufferRatio.IsPositive() {
		bufferRatio = DefaultBufferRatio
	}
	smart := SuggestSmartLimit(categorySpend, bufferRatio)

	out := make([]domain.Budget, len(budgets))
	copy(out, budgets)
	updated := out[idx]
	updated.SmartLimit = &smart
	out[idx] = updated

	return out, domain.BudgetSuggestion{
		Category:   updated.Category,
		Limit:      updated.Limit,
		SmartLimit: smart,
		Message:    suggestionMessage(updated, categorySpend, bufferRatio, smart),
	}, nil
}

func suggestionMessage(b domain.Budget, spend, ratio, smart decimal.Decimal) string {
	bufferPct := ratio.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(0)
	return fmt.Sprintf("%s: limit %s → suggested %s (spent %s + %s%% buffer)",
		b.Category, b.Limit.StringFixed(2), smart.StringFixed(2), spend.StringFixed(2), bufferPct.String())
}

// Package analytics é o engine de análise derivada do dashboard.
//
// Todas as funções daqui são puras e síncronas: recebem um snapshot
// (transações, orçamentos, metas) e devolvem valores novos. Nenhuma delas
// guarda estado nem altera a entrada, então podem ser chamadas em qualquer
// ordem e quantas vezes for preciso.
package analytics

import (
	"sort"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// anomalyFactor é o multiplicador da média da categoria acima do qual
// uma transação é marcada como anomalia.
var anomalyFactor = decimal.NewFromInt(2)

// AggregateByCategory soma o valor por categoria.
// A ordem do mapa não importa; para exibição use SortedTotals.
func AggregateByCategory(txns []domain.Transaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txns {
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}
	return totals
}

// SortedTotals converte os totais em lista, do maior para o menor.
// Empates ficam em ordem alfabética para a saída ser estável.
func SortedTotals(totals map[string]decimal.Decimal) []domain.CategoryTotal {
	out := make([]domain.CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, domain.CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TotalSpent soma todas as transações.
func TotalSpent(txns []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txns {
		total = total.Add(tx.Amount)
	}
	return total
}

// CategoryAverages calcula a média por categoria sobre o conjunto recebido.
// Deve ser chamado com o MESMO conjunto filtrado que vai passar por DetectAnomalies.
func CategoryAverages(txns []domain.Transaction) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for _, tx := range txns {
		sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
		counts[tx.Category]++
	}

	avgs := make(map[string]decimal.Decimal, len(sums))
	for cat, sum := range sums {
		avgs[cat] = sum.Div(decimal.NewFromInt(counts[cat]))
	}
	return avgs
}

// DetectAnomalies devolve uma cópia das transações com o flag Anomaly recalculado:
// anômala se amount > 2 × média da sua categoria.
func DetectAnomalies(txns []domain.Transaction, categoryAverages map[string]decimal.Decimal) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	for i, tx := range txns {
		tx.Anomaly = false
		if avg, ok := categoryAverages[tx.Category]; ok {
			tx.Anomaly = tx.Amount.GreaterThan(avg.Mul(anomalyFactor))
		}
		out[i] = tx
	}
	return out
}

// FlagAnomalies calcula as médias e detecta anomalias sobre o mesmo conjunto.
func FlagAnomalies(txns []domain.Transaction) []domain.Transaction {
	return DetectAnomalies(txns, CategoryAverages(txns))
}

// CountAnomalies conta quantas transações estão marcadas como anomalia.
func CountAnomalies(txns []domain.Transaction) int {
	n := 0
	for _, tx := range txns {
		if tx.Anomaly {
			n++
		}
	}
	return n
}

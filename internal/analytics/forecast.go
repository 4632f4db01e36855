package analytics

import (
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// projectionDays é o tamanho fixo do "mês" usado na projeção.
const projectionDays = 30

// ProjectMonthlySpend extrapola o gasto do mês: (total / diaDoMês) × 30.
// dayOfMonth < 1 é tratado como 1; total zero projeta zero.
func ProjectMonthlySpend(totalSpendSoFar decimal.Decimal, dayOfMonth int) decimal.Decimal {
	if totalSpendSoFar.IsZero() {
		return decimal.Zero
	}
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	avgDaily := totalSpendSoFar.Div(decimal.NewFromInt(int64(dayOfMonth)))
	return avgDaily.Mul(decimal.NewFromInt(projectionDays)).Round(2)
}

// SpentInMonth soma as transações do mês civil de now (no fuso loc) até now.
// É a base de ProjectMonthlySpend: meses passados e datas futuras ficam de fora.
func SpentInMonth(txns []domain.Transaction, now time.Time, loc *time.Location) decimal.Decimal {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	year, month, _ := now.Date()
	total := decimal.Zero
	for _, tx := range txns {
		d := tx.Date.In(loc)
		if y, m, _ := d.Date(); y != year || m != month || d.After(now) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total
}

package analytics

import (
	"math"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Valores fixos do score de saúde. É uma heurística propositalmente grosseira:
// presença de orçamento/meta vale pontos fixos, não a qualidade deles.
const (
	neutralSpendingScore = 50
	budgetingWithBudgets = 80
	budgetingNoBudgets   = 20
	planningWithGoals    = 75
	planningNoGoals      = 25
)

// ComputeHealthScore calcula os quatro sub-scores e o overall.
//
//	spending  = max(0, 100 − gasto/orçamento × 100), ou 50 sem orçamento
//	saving    = min(100, 100 × atual/alvo) da primeira meta, ou 0
//	budgeting = 80 com ao menos um orçamento, senão 20
//	planning  = 75 com ao menos uma meta, senão 25
//	overall   = round(média dos quatro)
func ComputeHealthScore(txns []domain.Transaction, budgets []domain.Budget, goals []domain.FinancialGoal) domain.FinancialHealthScore {
	totalSpent := TotalSpent(txns)
	totalBudget := decimal.Zero
	for _, b := range budgets {
		totalBudget = totalBudget.Add(b.Limit)
	}

	spending := float64(neutralSpendingScore)
	if totalBudget.IsPositive() {
		ratio := totalSpent.Div(totalBudget).InexactFloat64()
		spending = math.Max(0, 100-ratio*100)
	}

	saving := 0.0
	if len(goals) > 0 && goals[0].Target.IsPositive() {
		primary := goals[0]
		saving = math.Min(100, 100*primary.Current.Div(primary.Target).InexactFloat64())
	}

	budgeting := float64(budgetingNoBudgets)
	if len(budgets) > 0 {
		budgeting = budgetingWithBudgets
	}

	planning := float64(planningNoGoals)
	if len(goals) > 0 {
		planning = planningWithGoals
	}

	score := domain.FinancialHealthScore{
		Spending:  clampScore(spending),
		Saving:    clampScore(saving),
		Budgeting: budgeting,
		Planning:  planning,
	}
	score.Overall = OverallScore(score.Spending, score.Saving, score.Budgeting, score.Planning)
	return score
}

// OverallScore é a média aritmética dos sub-scores (já limitados a [0,100]), arredondada.
func OverallScore(spending, saving, budgeting, planning float64) int {
	mean := (clampScore(spending) + clampScore(saving) + clampScore(budgeting) + clampScore(planning)) / 4
	return int(math.Round(mean))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Orçamentos & Metas
// ============================================================

// Priority é a prioridade de um orçamento.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Budget é o limite mensal de uma categoria (um por categoria).
//
// SmartLimit é a sugestão calculada pelo engine. Fica num campo separado
// para que o Limit escolhido pelo usuário nunca seja sobrescrito.
type Budget struct {
	Category   string           `json:"category"`
	Limit      decimal.Decimal  `json:"limit"`
	Rollover   bool             `json:"rollover,omitempty"`
	SmartLimit *decimal.Decimal `json:"smartLimit,omitempty"`
	Priority   Priority         `json:"priority,omitempty"`
}

// FinancialGoal é uma meta de economia criada pelo usuário.
// O engine só lê a razão Current/Target.
type FinancialGoal struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Target   decimal.Decimal `json:"target"`
	Current  decimal.Decimal `json:"current"`
	Deadline string          `json:"deadline"` // YYYY-MM-DD
	Category string          `json:"category"`
	Priority int             `json:"priority"`
}

// ============================================================
// Saída do engine
// ============================================================

// FinancialHealthScore é o score composto, sempre função pura do estado atual.
// Os sub-scores ficam em [0,100]; Overall é a média arredondada dos quatro.
type FinancialHealthScore struct {
	Spending  float64 `json:"spending"`
	Saving    float64 `json:"saving"`
	Budgeting float64 `json:"budgeting"`
	Planning  float64 `json:"planning"`
	Overall   int     `json:"overall"`
}

// SpendingPattern é um padrão de gasto (saída de modelo externo ou heurística).
type SpendingPattern struct {
	Pattern     string `json:"pattern"`
	Confidence  int    `json:"confidence"`
	Description string `json:"description"`
}

// Prediction é uma previsão textual com confiança 0–100.
type Prediction struct {
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Confidence int             `json:"confidence"`
	Suggestion string          `json:"suggestion"`
}

// CategoryTotal é a soma de uma categoria.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// TrendPoint é um ponto da série diária (real ou projetado).
type TrendPoint struct {
	Label     string    `json:"label"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
	Predicted bool      `json:"predicted"`
}

// BudgetSuggestion é a prévia de otimização de um orçamento.
type BudgetSuggestion struct {
	Category   string          `json:"category"`
	Limit      decimal.Decimal `json:"limit"`
	SmartLimit decimal.Decimal `json:"smartLimit"`
	Message    string          `json:"message"`
}

// Dashboard é a visão agregada devolvida por GET /v1/dashboard.
type Dashboard struct {
	Transactions     []Transaction        `json:"transactions"`
	CategoryTotals   []CategoryTotal      `json:"categoryTotals"`
	TotalSpent       decimal.Decimal      `json:"totalSpent"`
	MonthToDate      decimal.Decimal      `json:"monthToDate"`
	Trend            []TrendPoint         `json:"trend"`
	ProjectedMonthly decimal.Decimal      `json:"projectedMonthly"`
	Health           FinancialHealthScore `json:"health"`
	Suggestions      []BudgetSuggestion   `json:"suggestions"`
	Predictions      []Prediction         `json:"predictions"`
	AnomalyCount     int                  `json:"anomalyCount"`
	GeneratedAt      time.Time            `json:"generatedAt"`
}

// Forecast é a resposta de GET /v1/analytics/forecast.
type Forecast struct {
	TotalSpent       decimal.Decimal `json:"totalSpent"`
	DayOfMonth       int             `json:"dayOfMonth"`
	ProjectedMonthly decimal.Decimal `json:"projectedMonthly"`
	Predictions      []Prediction    `json:"predictions"`
}

// Package domain defines the core entities of the finance assistant BFA.
// These models are independent of external services and represent the
// canonical data structures used throughout the service.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transações (despesas registradas pelo usuário)
// ============================================================

// Mood é o humor que o usuário associou à despesa no momento do registro.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodNeutral  Mood = "neutral"
	MoodStressed Mood = "stressed"
	MoodRegret   Mood = "regret"
)

// Valid indica se o humor pertence à enumeração fixa.
func (m Mood) Valid() bool {
	switch m {
	case MoodHappy, MoodNeutral, MoodStressed, MoodRegret:
		return true
	}
	return false
}

// Confiança registrada junto da categoria.
const (
	ConfidenceExplicit = 100 // categoria escolhida pelo usuário
	ConfidenceInferred = 70  // categoria sugerida pela heurística de palavras-chave
)

// DefaultCategories é a lista fixa de categorias padrão.
// A ordem importa: o round-robin de normalização percorre essa lista.
var DefaultCategories = []string{"Food", "Transport", "Shopping", "Entertainment", "Bills", "Health"}

// Transaction é uma despesa registrada.
//
// Predicted e Anomaly são derivados pelo engine a cada recomputação;
// nunca são aceitos como entrada do usuário.
type Transaction struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Date       time.Time       `json:"date"`
	Title      string          `json:"title,omitempty"`
	Mood       Mood            `json:"mood,omitempty"`
	Confidence int             `json:"confidence"`
	Predicted  bool            `json:"predicted"`
	Anomaly    bool            `json:"anomaly"`
}

// RawExpense é um registro "solto" como chega da rede (fonte de despesas ou POST do frontend).
// Precisa passar pela normalização antes de virar Transaction.
type RawExpense map[string]any

// CreateExpenseRequest é o body do POST /v1/expenses.
// amount aceita número ou string JSON ("25.50") sem passar por float.
type CreateExpenseRequest struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date,omitempty"`
	Mood     Mood            `json:"mood,omitempty"`
}

// ============================================================
// Filtros (aplicados antes de qualquer agregação / detecção de anomalia)
// ============================================================

// ExpenseFilter restringe o conjunto de transações observado pelo dashboard.
type ExpenseFilter struct {
	Month    string // YYYY-MM, vazio = todos
	Category string // vazio = todas
	Search   string // busca livre em título e categoria
}

// Match indica se a transação passa pelo filtro.
// O mês é comparado no fuso do parâmetro loc (o "dia" do cliente).
func (f ExpenseFilter) Match(tx Transaction, loc *time.Location) bool {
	if f.Month != "" && tx.Date.In(loc).Format("2006-01") != f.Month {
		return false
	}
	if f.Category != "" && !strings.EqualFold(tx.Category, f.Category) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(tx.Title), q) &&
			!strings.Contains(strings.ToLower(tx.Category), q) {
			return false
		}
	}
	return true
}

// CategorySuggestion é a resposta de POST /v1/categories/suggest.
type CategorySuggestion struct {
	Category   string `json:"category"`
	Inferred   bool   `json:"inferred"`
	Confidence int    `json:"confidence"`
}

// LoadResult resume uma carga da fonte de despesas.
type LoadResult struct {
	Count  int    `json:"count"`
	Source string `json:"source"` // remote, seed
}

// Origem de uma carga.
const (
	LoadSourceRemote = "remote"
	LoadSourceSeed   = "seed"
)

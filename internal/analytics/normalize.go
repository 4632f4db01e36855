package analytics

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================
// Normalização na fronteira
// ============================================================
//
// Registros vindos da rede são validados aqui e convertidos em
// domain.Transaction. Nada "solto" passa daqui para dentro do engine.
//
// Padrões aplicados:
//   - amount ausente/inválido → 0; negativo → valor absoluto
//   - category ausente        → round-robin em DefaultCategories
//   - date ausente/inválida   → now
//   - mood fora da enumeração → neutral
//   - confidence ausente      → 100 (limitada a 0–100)
//   - predicted/anomaly       → sempre false (são derivados)

// NormalizeExpenses converte registros soltos em transações tipadas.
func NormalizeExpenses(raw []domain.RawExpense, now time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(raw))
	for i, r := range raw {
		out = append(out, NormalizeExpense(r, i, now))
	}
	return out
}

// NormalizeExpense converte um único registro. index alimenta o round-robin de categorias.
func NormalizeExpense(r domain.RawExpense, index int, now time.Time) domain.Transaction {
	tx := domain.Transaction{
		ID:         normalizeID(r["id"]),
		Amount:     normalizeAmount(r["amount"]),
		Category:   strings.TrimSpace(stringField(r, "category")),
		Date:       normalizeDate(firstPresent(r, "date", "timestamp", "createdAt"), now),
		Title:      strings.TrimSpace(stringField(r, "title", "description")),
		Mood:       domain.Mood(strings.ToLower(stringField(r, "mood"))),
		Confidence: normalizeConfidence(r["confidence"]),
	}
	if tx.Category == "" {
		tx.Category = domain.DefaultCategories[index%len(domain.DefaultCategories)]
	}
	if !tx.Mood.Valid() {
		tx.Mood = domain.MoodNeutral
	}
	return tx
}

func normalizeID(v any) string {
	switch id := v.(type) {
	case string:
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	}
	return uuid.New().String()
}

func normalizeAmount(v any) decimal.Decimal {
	var d decimal.Decimal
	switch a := v.(type) {
	case float64:
		d = decimal.NewFromFloat(a)
	case json.Number:
		parsed, err := decimal.NewFromString(a.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(a))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case int:
		d = decimal.NewFromInt(int64(a))
	case int64:
		d = decimal.NewFromInt(a)
	case decimal.Decimal:
		d = a
	default:
		return decimal.Zero
	}
	return d.Abs()
}

func normalizeDate(v any, now time.Time) time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return now
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t
	}
	return now
}

func normalizeConfidence(v any) int {
	var c float64
	switch n := v.(type) {
	case float64:
		c = n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return domain.ConfidenceExplicit
		}
		c = f
	case int:
		c = float64(n)
	default:
		return domain.ConfidenceExplicit
	}
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return int(c)
}

func stringField(r domain.RawExpense, keys ...string) string {
	if s, ok := firstPresent(r, keys...).(string); ok {
		return s
	}
	return ""
}

func firstPresent(r domain.RawExpense, keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// ============================================================
// Seed: usado quando a fonte de despesas falha
// ============================================================

// SeedExpenses devolve o conjunto fixo de seis despesas usado como fallback,
// com datas relativas a now para o dashboard nunca ficar vazio.
func SeedExpenses(now time.Time) []domain.Transaction {
	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }
	seed := []struct {
		title    string
		amount   string
		category string
		mood     domain.Mood
		offset   int
	}{
		{"Morning coffee", "4.50", "Food", domain.MoodHappy, 0},
		{"Uber to office", "18.00", "Transport", domain.MoodNeutral, 1},
		{"Weekly groceries", "82.30", "Food", domain.MoodNeutral, 2},
		{"Netflix subscription", "15.99", "Entertainment", domain.MoodHappy, 3},
		{"Electricity bill", "120.00", "Bills", domain.MoodStressed, 4},
		{"Pharmacy", "22.40", "Health", domain.MoodRegret, 5},
	}

	out := make([]domain.Transaction, 0, len(seed))
	for i, s := range seed {
		out = append(out, domain.Transaction{
			ID:         "seed-" + strconv.Itoa(i+1),
			Amount:     decimal.RequireFromString(s.amount),
			Category:   s.category,
			Date:       day(s.offset),
			Title:      s.title,
			Mood:       s.mood,
			Confidence: domain.ConfidenceExplicit,
		})
	}
	return out
}

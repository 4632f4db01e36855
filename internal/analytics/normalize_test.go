package analytics_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var normalizeNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func TestNormalizeExpenses_FillsDefaults(t *testing.T) {
	raw := []domain.RawExpense{
		{"id": 7.0, "amount": -12.5, "title": " Lunch ", "mood": "HAPPY"},
		{"amount": "abc", "mood": "furious", "confidence": 250.0},
		{"description": "Bus", "date": "2026-10-01"},
	}

	out := analytics.NormalizeExpenses(raw, normalizeNow)
	require.Len(t, out, 3)

	assert.Equal(t, "7", out[0].ID)
	assert.Equal(t, "12.5", out[0].Amount.String())
	assert.Equal(t, "Lunch", out[0].Title)
	assert.Equal(t, domain.MoodHappy, out[0].Mood)
	assert.Equal(t, "Food", out[0].Category)
	assert.Equal(t, domain.ConfidenceExplicit, out[0].Confidence)
	assert.True(t, out[0].Date.Equal(normalizeNow))

	assert.NotEmpty(t, out[1].ID)
	assert.True(t, out[1].Amount.IsZero())
	assert.Equal(t, domain.MoodNeutral, out[1].Mood)
	assert.Equal(t, "Transport", out[1].Category)
	assert.Equal(t, 100, out[1].Confidence)

	assert.Equal(t, "Bus", out[2].Title)
	assert.Equal(t, "Shopping", out[2].Category)
	assert.Equal(t, "2026-10-01", out[2].Date.Format(time.DateOnly))
}

func TestNormalizeExpense_FromJSONNumbers(t *testing.T) {
	dec := json.NewDecoder(stringsReader(`{"id": 42, "amount": 19.90, "category": "Bills", "timestamp": "2026-10-02T08:30:00Z", "confidence": 70}`))
	dec.UseNumber()
	var r domain.RawExpense
	require.NoError(t, dec.Decode(&r))

	tx := analytics.NormalizeExpense(r, 0, normalizeNow)

	assert.Equal(t, "42", tx.ID)
	assert.Equal(t, "19.9", tx.Amount.String())
	assert.Equal(t, "Bills", tx.Category)
	assert.Equal(t, 70, tx.Confidence)
	assert.Equal(t, time.Date(2026, 10, 2, 8, 30, 0, 0, time.UTC), tx.Date.UTC())
	assert.False(t, tx.Anomaly)
	assert.False(t, tx.Predicted)
}

func TestNormalizeExpense_IgnoresDerivedFlags(t *testing.T) {
	tx := analytics.NormalizeExpense(domain.RawExpense{"amount": 1.0, "anomaly": true, "predicted": true}, 0, normalizeNow)
	assert.False(t, tx.Anomaly)
	assert.False(t, tx.Predicted)
}

func TestSeedExpenses(t *testing.T) {
	seed := analytics.SeedExpenses(normalizeNow)
	require.Len(t, seed, 6)

	assert.Equal(t, "seed-1", seed[0].ID)
	assert.Equal(t, "120", analytics.AggregateByCategory(seed)["Bills"].String())
	assert.Equal(t, "86.8", analytics.AggregateByCategory(seed)["Food"].String())
	assert.True(t, seed[0].Date.Equal(normalizeNow))
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

package analytics_test

import (
	"testing"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedJitter(v float64) analytics.JitterFunc { return func() float64 { return v } }

func at(day int, amount string) domain.Transaction {
	return domain.Transaction{
		ID:       "t",
		Category: "Food",
		Amount:   decimal.RequireFromString(amount),
		Date:     time.Date(2026, 10, day, 15, 0, 0, 0, time.UTC),
	}
}

func TestBuildTrendSeries_ShapeAndPrediction(t *testing.T) {
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	txns := []domain.Transaction{
		at(16, "60"),
		at(10, "30"),
		at(10, "30"),
		at(1, "999"), // fora da janela de 12 dias
	}

	series := analytics.BuildTrendSeries(txns, now, analytics.TrendOptions{
		Jitter:   fixedJitter(1.0),
		Location: time.UTC,
	})

	require.Len(t, series, analytics.DefaultWindowDays+analytics.DefaultHorizonDays)

	actual := series[:analytics.DefaultWindowDays]
	assert.Equal(t, "Oct 05", actual[0].Label)
	assert.Equal(t, "Oct 16", actual[len(actual)-1].Label)
	assert.Equal(t, 60.0, actual[len(actual)-1].Amount)
	assert.Equal(t, 60.0, actual[5].Amount) // Oct 10
	for _, p := range actual {
		assert.False(t, p.Predicted)
	}

	// média = 120 / 12 = 10
	for _, p := range series[analytics.DefaultWindowDays:] {
		assert.True(t, p.Predicted)
		assert.Equal(t, 10.0, p.Amount)
	}
	assert.Equal(t, "Oct 17", series[analytics.DefaultWindowDays].Label)
}

func TestBuildTrendSeries_JitterIsClamped(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	txns := []domain.Transaction{at(16, "120")}

	high := analytics.BuildTrendSeries(txns, now, analytics.TrendOptions{Jitter: fixedJitter(5), Location: time.UTC})
	low := analytics.BuildTrendSeries(txns, now, analytics.TrendOptions{Jitter: fixedJitter(0), Location: time.UTC})

	assert.Equal(t, 12.0, high[len(high)-1].Amount)
	assert.Equal(t, 8.0, low[len(low)-1].Amount)
}

func TestBuildTrendSeries_RandomJitterStaysInBand(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	series := analytics.BuildTrendSeries([]domain.Transaction{at(16, "1200")}, now, analytics.TrendOptions{Location: time.UTC})

	for _, p := range series[analytics.DefaultWindowDays:] {
		assert.GreaterOrEqual(t, p.Amount, 80.0)
		assert.LessOrEqual(t, p.Amount, 120.0)
	}
}

func TestBuildTrendSeries_BucketsByCalendarDayInLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, loc)
	// 01:00 UTC do dia 16 ainda é dia 15 em BRT
	late := domain.Transaction{Amount: decimal.NewFromInt(40), Date: time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC)}

	series := analytics.BuildTrendSeries([]domain.Transaction{late}, now, analytics.TrendOptions{
		Jitter:      fixedJitter(1),
		Location:    loc,
		HorizonDays: analytics.NoHorizon,
	})

	require.Len(t, series, analytics.DefaultWindowDays)
	assert.Equal(t, 40.0, series[len(series)-2].Amount)
	assert.Equal(t, 0.0, series[len(series)-1].Amount)
}

func TestBuildTrendSeries_ZeroOptionsUseDefaults(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	series := analytics.BuildTrendSeries(nil, now, analytics.TrendOptions{})

	require.Len(t, series, analytics.DefaultWindowDays+analytics.DefaultHorizonDays)
	predicted := 0
	for _, p := range series {
		if p.Predicted {
			predicted++
		}
	}
	assert.Equal(t, analytics.DefaultHorizonDays, predicted)
}

func TestBuildTrendSeries_EmptyInput(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	series := analytics.BuildTrendSeries(nil, now, analytics.TrendOptions{Jitter: fixedJitter(1), Location: time.UTC})

	require.Len(t, series, analytics.DefaultWindowDays+analytics.DefaultHorizonDays)
	for _, p := range series {
		assert.Zero(t, p.Amount)
	}
}

package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

func fixedTrend() analytics.TrendOptions {
	return analytics.TrendOptions{Jitter: func() float64 { return 1 }, Location: time.UTC}
}

func seededDashboard(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, nil,
		expense("1", "Food", "300", 2),
		expense("2", "Food", "300", 3),
		expense("3", "Bills", "200", 4),
	)
	ctx := context.Background()
	for _, b := range []domain.Budget{
		{Category: "Food", Limit: decimal.NewFromInt(500)},
		{Category: "Bills", Limit: decimal.NewFromInt(300)},
	} {
		if _, err := f.planning.UpsertBudget(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestDashboardBuild(t *testing.T) {
	f := seededDashboard(t)

	dash, err := f.dashboard.Build(context.Background(), domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !dash.TotalSpent.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected total 800, got %s", dash.TotalSpent)
	}
	// 800 / 16 × 30
	if !dash.ProjectedMonthly.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected projection 1500, got %s", dash.ProjectedMonthly)
	}
	if len(dash.CategoryTotals) != 2 || dash.CategoryTotals[0].Category != "Food" {
		t.Errorf("expected Food first in totals, got %+v", dash.CategoryTotals)
	}
	if len(dash.Trend) != analytics.DefaultWindowDays+analytics.DefaultHorizonDays {
		t.Errorf("expected %d trend points, got %d", analytics.DefaultWindowDays+analytics.DefaultHorizonDays, len(dash.Trend))
	}
	if dash.Health.Spending != 0 {
		t.Errorf("spending at 100%% of budget should score 0, got %v", dash.Health.Spending)
	}

	if len(dash.Suggestions) != 2 || !dash.Suggestions[0].SmartLimit.Equal(decimal.NewFromInt(660)) {
		t.Errorf("expected Food smart limit preview 660, got %+v", dash.Suggestions)
	}
	budgets, _ := f.planning.ListBudgets(context.Background())
	for _, b := range budgets {
		if b.SmartLimit != nil {
			t.Errorf("dashboard preview must not persist smart limits, %s has %s", b.Category, b.SmartLimit)
		}
	}

	if len(dash.Predictions) != 1 || dash.Predictions[0].Confidence != 50 {
		t.Fatalf("expected one prediction with confidence 50, got %+v", dash.Predictions)
	}
	if !strings.Contains(dash.Predictions[0].Suggestion, "700.00") {
		t.Errorf("expected overshoot of 700.00 in suggestion, got %q", dash.Predictions[0].Suggestion)
	}
}

func TestDashboardBuild_UsesCache(t *testing.T) {
	f := seededDashboard(t)
	ctx := context.Background()

	first, err := f.dashboard.Build(ctx, domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.dashboard.Build(ctx, domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the second build to come from the cache")
	}

	other, _ := f.dashboard.Build(ctx, domain.ExpenseFilter{Category: "Bills"}, testNow)
	if other == first {
		t.Error("a different filter must not share the cache entry")
	}
	if snap := f.metrics.GetChatSnapshot(); snap.CacheHitRate < 0.33 || snap.CacheHitRate > 0.34 {
		t.Errorf("expected cache hit rate 1/3, got %v", snap.CacheHitRate)
	}
}

func TestDashboardBuild_CancelledContext(t *testing.T) {
	f := seededDashboard(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.dashboard.Build(ctx, domain.ExpenseFilter{}, testNow); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestDashboardTrend_WindowOverride(t *testing.T) {
	f := seededDashboard(t)

	points, err := f.dashboard.Trend(context.Background(), domain.ExpenseFilter{}, 7, 3, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(points) != 10 {
		t.Errorf("expected 10 points, got %d", len(points))
	}
	if !points[9].Predicted || points[0].Predicted {
		t.Error("expected only the last 3 points to be predicted")
	}
}

func TestDashboardForecast(t *testing.T) {
	f := seededDashboard(t)

	fc, err := f.dashboard.Forecast(context.Background(), domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fc.DayOfMonth != 16 || !fc.ProjectedMonthly.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected forecast %+v", fc)
	}
}

func TestDashboardBuild_ProjectionUsesCurrentMonthOnly(t *testing.T) {
	// dia -5 de outubro normaliza para 25 de setembro
	f := newFixture(t, nil,
		expense("1", "Food", "800", 2),
		expense("2", "Food", "1000", -5),
	)
	ctx := context.Background()

	dash, err := f.dashboard.Build(ctx, domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !dash.TotalSpent.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("expected total 1800, got %s", dash.TotalSpent)
	}
	if !dash.MonthToDate.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected month to date 800, got %s", dash.MonthToDate)
	}
	// 800 / 16 × 30
	if !dash.ProjectedMonthly.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected projection 1500, got %s", dash.ProjectedMonthly)
	}

	past, err := f.dashboard.Build(ctx, domain.ExpenseFilter{Month: "2026-09"}, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !past.TotalSpent.Equal(decimal.NewFromInt(1000)) || !past.ProjectedMonthly.IsZero() {
		t.Errorf("past month must not feed the projection, got total %s projected %s", past.TotalSpent, past.ProjectedMonthly)
	}

	fc, err := f.dashboard.Forecast(ctx, domain.ExpenseFilter{}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !fc.TotalSpent.Equal(decimal.NewFromInt(800)) {
		t.Errorf("forecast total should be month to date, got %s", fc.TotalSpent)
	}
}

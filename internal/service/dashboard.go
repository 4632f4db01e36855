package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service")

// dashboardCacheLabel é o label de métrica das consultas ao cache do dashboard.
const dashboardCacheLabel = "dashboard"

// predictionConfidence é fixa: a projeção é uma heurística, não um modelo.
const predictionConfidence = 50

// DashboardService recalcula todas as visões derivadas a partir dos stores atuais.
// O resultado fica em cache por filtro e dia civil; qualquer mutação limpa o cache.
type DashboardService struct {
	expenses *ExpenseService
	planning *PlanningService
	cache    port.Cache[*domain.Dashboard]
	metrics  *observability.Metrics
	trend    analytics.TrendOptions
	logger   *zap.Logger
}

// NewDashboardService cria o dashboard. cache e metrics podem ser nil.
func NewDashboardService(
	expenses *ExpenseService,
	planning *PlanningService,
	cache port.Cache[*domain.Dashboard],
	metrics *observability.Metrics,
	trend analytics.TrendOptions,
	logger *zap.Logger,
) *DashboardService {
	if trend.Location == nil {
		trend.Location = expenses.Location()
	}
	return &DashboardService{
		expenses: expenses,
		planning: planning,
		cache:    cache,
		metrics:  metrics,
		trend:    trend,
		logger:   logger,
	}
}

// snapshot é o estado cru de onde saem todas as visões derivadas.
type snapshot struct {
	transactions []domain.Transaction
	budgets      []domain.Budget
	goals        []domain.FinancialGoal
}

// load lê despesas, orçamentos e metas em paralelo.
func (d *DashboardService) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txns, err := d.expenses.All(gCtx)
		if err != nil {
			return fmt.Errorf("expenses: %w", err)
		}
		snap.transactions = txns
		return nil
	})
	g.Go(func() error {
		budgets, err := d.planning.ListBudgets(gCtx)
		if err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
		snap.budgets = budgets
		return nil
	})
	g.Go(func() error {
		goals, err := d.planning.ListGoals(gCtx)
		if err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		snap.goals = goals
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// Build devolve o dashboard completo do filtro na data now.
// Anomalias são detectadas só sobre o conjunto filtrado.
func (d *DashboardService) Build(ctx context.Context, filter domain.ExpenseFilter, now time.Time) (*domain.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "DashboardService.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("filter.month", filter.Month),
		attribute.String("filter.category", filter.Category),
	)

	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.RecordRequestDuration("dashboard", time.Since(start))
		}
	}()

	key := d.cacheKey(filter, now)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			d.cacheHit()
			return cached, nil
		}
	}
	d.cacheMiss()

	snap, err := d.load(ctx)
	if err != nil {
		d.logger.Error("dashboard load failed", zap.Error(err))
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	dash := d.compute(snap, filter, now)
	if d.metrics != nil {
		d.metrics.AddAnomalies(dash.AnomalyCount)
	}
	if d.cache != nil {
		d.cache.Set(key, dash)
	}

	d.logger.Debug("dashboard built",
		zap.Int("transactions", len(dash.Transactions)),
		zap.Int("anomalies", dash.AnomalyCount),
		zap.Int("overall", dash.Health.Overall),
	)
	return dash, nil
}

func (d *DashboardService) compute(snap snapshot, filter domain.ExpenseFilter, now time.Time) *domain.Dashboard {
	filtered := analytics.FlagAnomalies(d.expenses.Filter(snap.transactions, filter))
	totals := analytics.AggregateByCategory(filtered)
	total := analytics.TotalSpent(filtered)
	// a projeção só enxerga o mês corrente, mesmo com filtro de outro mês
	monthToDate := analytics.SpentInMonth(filtered, now, d.trend.Location)
	projected := analytics.ProjectMonthlySpend(monthToDate, now.In(d.trend.Location).Day())

	return &domain.Dashboard{
		Transactions:     filtered,
		CategoryTotals:   analytics.SortedTotals(totals),
		TotalSpent:       total,
		MonthToDate:      monthToDate,
		Trend:            analytics.BuildTrendSeries(filtered, now, d.trend),
		ProjectedMonthly: projected,
		Health:           analytics.ComputeHealthScore(filtered, snap.budgets, snap.goals),
		Suggestions:      d.suggestions(snap.budgets, totals),
		Predictions:      predictions(projected, snap.budgets),
		AnomalyCount:     analytics.CountAnomalies(filtered),
		GeneratedAt:      now,
	}
}

// suggestions pré-visualiza OptimizeBudget para cada orçamento, sem salvar.
func (d *DashboardService) suggestions(budgets []domain.Budget, totals map[string]decimal.Decimal) []domain.BudgetSuggestion {
	out := make([]domain.BudgetSuggestion, 0, len(budgets))
	for _, b := range budgets {
		_, s, err := analytics.OptimizeBudget(budgets, b.Category, categorySpend(totals, b.Category), d.planning.BufferRatio())
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// predictions transforma a projeção mensal no card de previsão do dashboard.
func predictions(projected decimal.Decimal, budgets []domain.Budget) []domain.Prediction {
	limit := decimal.Zero
	for _, b := range budgets {
		limit = limit.Add(b.Limit)
	}

	suggestion := "Add budgets to compare this projection against your limits."
	switch {
	case limit.IsPositive() && projected.GreaterThan(limit):
		over := projected.Sub(limit)
		suggestion = fmt.Sprintf("On track to exceed your budgets by %s. Review your largest categories.", over.StringFixed(2))
	case limit.IsPositive():
		suggestion = fmt.Sprintf("Projected spend stays %s under your budgets.", limit.Sub(projected).StringFixed(2))
	}

	return []domain.Prediction{{
		Label:      "Projected monthly spend",
		Amount:     projected.Round(2),
		Confidence: predictionConfidence,
		Suggestion: suggestion,
	}}
}

// Trend monta só a série de tendência. windowDays/horizonDays zerados mantêm o configurado.
func (d *DashboardService) Trend(ctx context.Context, filter domain.ExpenseFilter, windowDays, horizonDays int, now time.Time) ([]domain.TrendPoint, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Trend")
	defer span.End()

	all, err := d.expenses.All(ctx)
	if err != nil {
		return nil, err
	}
	opts := d.trend
	if windowDays > 0 {
		opts.WindowDays = windowDays
	}
	if horizonDays > 0 {
		opts.HorizonDays = horizonDays
	}
	return analytics.BuildTrendSeries(d.expenses.Filter(all, filter), now, opts), nil
}

// Health devolve o score composto do filtro.
func (d *DashboardService) Health(ctx context.Context, filter domain.ExpenseFilter, now time.Time) (domain.FinancialHealthScore, error) {
	dash, err := d.Build(ctx, filter, now)
	if err != nil {
		return domain.FinancialHealthScore{}, err
	}
	return dash.Health, nil
}

// Forecast devolve a projeção e as previsões derivadas dela.
// TotalSpent é o gasto do mês corrente, a mesma base da projeção.
func (d *DashboardService) Forecast(ctx context.Context, filter domain.ExpenseFilter, now time.Time) (*domain.Forecast, error) {
	dash, err := d.Build(ctx, filter, now)
	if err != nil {
		return nil, err
	}
	return &domain.Forecast{
		TotalSpent:       dash.MonthToDate,
		DayOfMonth:       max(now.In(d.trend.Location).Day(), 1),
		ProjectedMonthly: dash.ProjectedMonthly,
		Predictions:      dash.Predictions,
	}, nil
}

func (d *DashboardService) cacheKey(f domain.ExpenseFilter, now time.Time) string {
	return strings.Join([]string{
		now.In(d.trend.Location).Format(time.DateOnly),
		f.Month,
		strings.ToLower(f.Category),
		strings.ToLower(strings.TrimSpace(f.Search)),
	}, "|")
}

func (d *DashboardService) cacheHit() {
	if d.metrics != nil {
		d.metrics.IncrCacheHit(dashboardCacheLabel)
	}
}

func (d *DashboardService) cacheMiss() {
	if d.metrics != nil {
		d.metrics.IncrCacheMiss(dashboardCacheLabel)
	}
}

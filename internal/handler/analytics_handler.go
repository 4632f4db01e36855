package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Dashboard & Análise Financeira
// ============================================================

const maxTrendDays = 365

// GET /v1/dashboard?month=&category=&q=
func dashboardHandler(svc *service.DashboardService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		dash, err := svc.Build(ctx, filter, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("dashboard.transactions", len(dash.Transactions)),
			attribute.Int("dashboard.anomalies", dash.AnomalyCount),
		)
		writeJSON(w, http.StatusOK, dash)
	}
}

// GET /v1/analytics/trend?window=&horizon= (0 = padrão configurado)
func trendHandler(svc *service.DashboardService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/trend")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		window, err := parsePositiveInt(r, "window", maxTrendDays)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		horizon, err := parsePositiveInt(r, "horizon", maxTrendDays)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		points, err := svc.Trend(ctx, filter, window, horizon, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, points)
	}
}

// GET /v1/analytics/health
func healthScoreHandler(svc *service.DashboardService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/health")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		score, err := svc.Health(ctx, filter, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("health.overall", score.Overall))
		writeJSON(w, http.StatusOK, score)
	}
}

// GET /v1/analytics/forecast
func forecastHandler(svc *service.DashboardService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/forecast")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		forecast, err := svc.Forecast(ctx, filter, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

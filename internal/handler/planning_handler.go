package handler

import (
	"net/http"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Orçamentos
// ============================================================

func listBudgetsHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets")
		defer span.End()

		budgets, err := svc.ListBudgets(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Budget]{Data: budgets, Total: len(budgets)})
	}
}

type upsertBudgetRequest struct {
	Limit    decimal.Decimal `json:"limit"`
	Rollover bool            `json:"rollover"`
	Priority domain.Priority `json:"priority"`
}

// PUT /v1/budgets/{category}: a categoria vem da rota, o resto do body.
func upsertBudgetHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budgets/{category}")
		defer span.End()

		var req upsertBudgetRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		saved, err := svc.UpsertBudget(ctx, domain.Budget{
			Category: chi.URLParam(r, "category"),
			Limit:    req.Limit,
			Rollover: req.Rollover,
			Priority: req.Priority,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func deleteBudgetHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/budgets/{category}")
		defer span.End()

		if err := svc.DeleteBudget(ctx, chi.URLParam(r, "category")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /v1/budgets/{category}/optimize?month=&category=&q=
// Grava o SmartLimit; o limite do usuário não muda.
func optimizeBudgetHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets/{category}/optimize")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		suggestion, err := svc.OptimizeBudget(ctx, chi.URLParam(r, "category"), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, suggestion)
	}
}

// ============================================================
// Metas
// ============================================================

func listGoalsHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/goals")
		defer span.End()

		goals, err := svc.ListGoals(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.FinancialGoal]{Data: goals, Total: len(goals)})
	}
}

func createGoalHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals")
		defer span.End()

		var goal domain.FinancialGoal
		if !decodeJSON(w, r, &goal) {
			return
		}

		saved, err := svc.CreateGoal(ctx, goal)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

type goalProgressRequest struct {
	Current *decimal.Decimal `json:"current"`
}

// PATCH /v1/goals/{id} {"current": 250}
func updateGoalHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/goals/{id}")
		defer span.End()

		var req goalProgressRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Current == nil {
			writeError(w, http.StatusBadRequest, "current is required")
			return
		}

		saved, err := svc.UpdateGoalProgress(ctx, chi.URLParam(r, "id"), *req.Current)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func deleteGoalHandler(svc *service.PlanningService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/goals/{id}")
		defer span.End()

		if err := svc.DeleteGoal(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

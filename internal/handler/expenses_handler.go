package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Despesas
// ============================================================

// GET /v1/expenses?month=&category=&q=
// As anomalias são marcadas sobre o conjunto já filtrado.
func listExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		txns, err := svc.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("expenses.count", len(txns)))
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Transaction]{Data: txns, Total: len(txns)})
	}
}

// POST /v1/expenses
func createExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses")
		defer span.End()

		var req domain.CreateExpenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		tx, err := svc.Create(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

// DELETE /v1/expenses/{id}
func deleteExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/expenses/{id}")
		defer span.End()

		if err := svc.Delete(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /v1/expenses/reload: recarrega da fonte remota (ou do seed).
func reloadExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses/reload")
		defer span.End()

		result, err := svc.Load(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("expenses.source", result.Source))
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Categorias
// ============================================================

func listCategoriesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		categories, err := svc.Categories(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[string]{Data: categories, Total: len(categories)})
	}
}

type suggestCategoryRequest struct {
	Title    string `json:"title"`
	Selected string `json:"selected"`
}

// POST /v1/categories/suggest {title, selected}
func suggestCategoryHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/categories/suggest")
		defer span.End()

		var req suggestCategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Selected) == "" {
			writeError(w, http.StatusBadRequest, "title or selected is required")
			return
		}
		writeJSON(w, http.StatusOK, svc.SuggestCategory(req.Title, req.Selected))
	}
}

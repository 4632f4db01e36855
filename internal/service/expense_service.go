package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/analytics"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// ExpenseService: dono da lista canônica de despesas
// ============================================================
//
// A fonte remota (quando configurada) só é lida no Load. A partir daí o
// ExpenseStore em memória é a verdade; criar e apagar nunca voltam para a rede.
// Toda mutação invalida o cache do dashboard e publica expenses.changed.

// ExpenseService carrega, filtra e altera as despesas.
type ExpenseService struct {
	source    port.ExpenseSource // nil = sem fonte remota
	store     port.ExpenseStore
	cache     port.Cache[*domain.Dashboard]
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger

	now func() time.Time
	loc *time.Location
}

// NewExpenseService cria o serviço. source, cache, publisher e metrics podem ser nil.
func NewExpenseService(
	source port.ExpenseSource,
	store port.ExpenseStore,
	cache port.Cache[*domain.Dashboard],
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ExpenseService {
	return &ExpenseService{
		source:    source,
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		loc:       time.Local,
	}
}

// WithClock troca a fonte de tempo e o fuso usado para meses e dias.
func (s *ExpenseService) WithClock(now func() time.Time, loc *time.Location) *ExpenseService {
	s.now = now
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Location é o fuso do "dia" do cliente.
func (s *ExpenseService) Location() *time.Location {
	return s.loc
}

// Load busca as despesas na fonte, normaliza e substitui o store.
// Qualquer falha da fonte é logada e trocada pelo seed: o dashboard nunca fica vazio.
func (s *ExpenseService) Load(ctx context.Context) (domain.LoadResult, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.Load")
	defer span.End()

	now := s.now()
	txns, source := s.fetch(ctx, now)

	if err := s.store.Replace(ctx, txns); err != nil {
		return domain.LoadResult{}, fmt.Errorf("replace expenses: %w", err)
	}
	span.SetAttributes(attribute.String("expenses.source", source), attribute.Int("expenses.count", len(txns)))
	s.logger.Info("expenses loaded", zap.String("source", source), zap.Int("count", len(txns)))

	s.changed("reload", len(txns))
	return domain.LoadResult{Count: len(txns), Source: source}, nil
}

func (s *ExpenseService) fetch(ctx context.Context, now time.Time) ([]domain.Transaction, string) {
	if s.source == nil {
		return analytics.SeedExpenses(now), domain.LoadSourceSeed
	}
	raw, err := s.source.FetchExpenses(ctx)
	if err != nil {
		s.logger.Warn("expense source unavailable; using seed data", zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncrExternalError("expenses")
		}
		return analytics.SeedExpenses(now), domain.LoadSourceSeed
	}
	return analytics.NormalizeExpenses(raw, now), domain.LoadSourceRemote
}

// All devolve todas as despesas, sem filtro e sem flags derivadas.
func (s *ExpenseService) All(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.List(ctx)
}

// List aplica o filtro e só então marca as anomalias, sobre o conjunto filtrado.
func (s *ExpenseService) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.List")
	defer span.End()

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.FlagAnomalies(s.Filter(all, filter)), nil
}

// Filter devolve as transações que passam pelo filtro, na ordem original.
func (s *ExpenseService) Filter(txns []domain.Transaction, filter domain.ExpenseFilter) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, tx := range txns {
		if filter.Match(tx, s.loc) {
			out = append(out, tx)
		}
	}
	return out
}

// Create registra uma despesa digitada pelo usuário.
//
// A categoria passa pela heurística de palavras-chave: quando ela decide,
// a confiança gravada cai para 70; quando vale a escolha do usuário, fica em 100.
func (s *ExpenseService) Create(ctx context.Context, req domain.CreateExpenseRequest) (domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.Create")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Transaction{}, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if req.Amount.IsZero() {
		return domain.Transaction{}, &domain.ErrValidation{Field: "amount", Message: "must be a non-zero number"}
	}

	suggestion := s.SuggestCategory(title, strings.TrimSpace(req.Category))
	if suggestion.Category == "" {
		return domain.Transaction{}, &domain.ErrValidation{Field: "category", Message: "required when the title gives no hint"}
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return domain.Transaction{}, err
	}

	mood := domain.MoodNeutral
	if req.Mood != "" {
		mood = domain.Mood(strings.ToLower(string(req.Mood)))
		if !mood.Valid() {
			return domain.Transaction{}, &domain.ErrValidation{Field: "mood", Message: "must be happy, neutral, stressed or regret"}
		}
	}

	tx, err := s.store.Add(ctx, domain.Transaction{
		Title:      title,
		Amount:     req.Amount.Abs(),
		Category:   suggestion.Category,
		Date:       date,
		Mood:       mood,
		Confidence: suggestion.Confidence,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logger.Info("expense created",
		zap.String("id", tx.ID),
		zap.String("category", tx.Category),
		zap.Bool("inferred", suggestion.Inferred),
	)
	s.changed("create", 1)
	return tx, nil
}

// Delete remove uma despesa pelo id.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ExpenseService.Delete")
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.changed("delete", 1)
	return nil
}

// SuggestCategory roda a heurística e devolve a confiança correspondente.
func (s *ExpenseService) SuggestCategory(title, selected string) domain.CategorySuggestion {
	category, inferred := analytics.SuggestCategory(title, selected)
	confidence := domain.ConfidenceExplicit
	if inferred {
		confidence = domain.ConfidenceInferred
	}
	return domain.CategorySuggestion{Category: category, Inferred: inferred, Confidence: confidence}
}

// Categories lista as categorias conhecidas: as padrão, na ordem fixa,
// seguidas das que só aparecem no store, em ordem alfabética.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	txns, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(domain.DefaultCategories)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[strings.ToLower(c)] = true
	}

	var extra []string
	for _, tx := range txns {
		key := strings.ToLower(tx.Category)
		if tx.Category == "" || seen[key] {
			continue
		}
		seen[key] = true
		extra = append(extra, tx.Category)
	}
	sort.Strings(extra)
	return append(out, extra...), nil
}

// IsKnownCategory indica se a categoria é padrão ou já existe no store.
func (s *ExpenseService) IsKnownCategory(ctx context.Context, category string) (string, bool, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return "", false, err
	}
	for _, c := range categories {
		if strings.EqualFold(c, category) {
			return c, true, nil
		}
	}
	return "", false, nil
}

func (s *ExpenseService) parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, s.loc); err == nil {
		return t, nil
	}
	return time.Time{}, &domain.ErrValidation{Field: "date", Message: "must be RFC 3339 or YYYY-MM-DD"}
}

func (s *ExpenseService) changed(action string, count int) {
	if s.cache != nil {
		s.cache.Clear()
	}
	if s.publisher != nil {
		s.publisher.Publish(domain.NewEvent(domain.EventExpensesChanged, "expense", map[string]any{
			"action": action,
			"count":  count,
		}))
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// ExpenseClient fetches raw expense records from the Expense API.
type ExpenseClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewExpenseClient creates a new ExpenseClient.
func NewExpenseClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ExpenseClient {
	return &ExpenseClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// FetchExpenses GETs {baseURL}/expenses with circuit breaker and tracing.
// The body may be a bare JSON array or an object {"expenses": [...]}.
// Records are returned as-is; normalization happens in the service.
func (c *ExpenseClient) FetchExpenses(ctx context.Context) ([]domain.RawExpense, error) {
	ctx, span := tracer.Start(ctx, "ExpenseClient.FetchExpenses")
	defer span.End()

	raw, err := resilience.Call(ctx, c.cb, c.cfg, func(ctx context.Context) ([]domain.RawExpense, error) {
		url := c.baseURL + "/expenses"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("expense API returned status %d", resp.StatusCode)
			if resp.StatusCode < 500 {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		records, err := decodeExpenses(body)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		return records, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: "expenses", Err: err}
	}

	span.SetAttributes(attribute.Int("expenses.count", len(raw)))
	return raw, nil
}

func decodeExpenses(body []byte) ([]domain.RawExpense, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty expense payload")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var records []domain.RawExpense
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode expense array: %w", err)
		}
		return records, nil
	}

	var envelope struct {
		Expenses []domain.RawExpense `json:"expenses"`
	}
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode expense envelope: %w", err)
	}
	if envelope.Expenses == nil {
		return nil, fmt.Errorf("expense payload has no expenses field")
	}
	return envelope.Expenses, nil
}

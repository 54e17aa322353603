package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/llm"
	"github.com/orbitretrieval/engine/template"
)

// fakeEstimator counts runes rather than real tokens, which is all a
// unit test needs to exercise the trim loop deterministically.
type fakeEstimator struct{ calls int }

func (f *fakeEstimator) EstimateText(_ context.Context, text string) (int, error) {
	f.calls++
	return len([]rune(text)), nil
}

type fakeLLM struct {
	response string
	err      error
	delay    time.Duration
}

func (f *fakeLLM) Generate(ctx context.Context, _, _ string, _ llm.Options) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	cfg, err := domain.Parse([]byte(`
domain_name: test
description: test domain
entities:
  customers:
    entity_type: primary
    physical_name: customers
fields:
  customers:
    id:
      data_type: integer
relationships: []
vocabulary:
  time_expressions:
    last week: 7
`))
	require.NoError(t, err)
	return cfg
}

func sampleTemplate() *template.Template {
	return &template.Template{
		ID:          "find_customer",
		Description: "Look up a customer",
		Body:        "SELECT * FROM customers WHERE id = :customer_id AND status = :status",
		NLExamples:  []string{"find customer"},
		Parameters: []*template.Parameter{
			{Name: "customer_id", DataType: domain.DataTypeInteger, Required: true},
			{Name: "status", DataType: domain.DataTypeString, Required: true, EnumValues: []string{"active", "inactive"}},
		},
	}
}

func TestExtract_HappyPath(t *testing.T) {
	model := &fakeLLM{response: `{"customer_id": "42", "status": "active"}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "find customer 42", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.EqualValues(t, int64(42), result.Values["customer_id"])
	assert.Equal(t, "active", result.Values["status"])
}

func TestExtract_StripsCodeFenceAndProse(t *testing.T) {
	model := &fakeLLM{response: "Here you go:\n```json\n{\"customer_id\": 7}\n```"}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "find customer 7", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusMissingRequired, result.Status)
	assert.EqualValues(t, int64(7), result.Values["customer_id"])
}

func TestExtract_MissingRequiredParameter(t *testing.T) {
	model := &fakeLLM{response: `{"status": "active"}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "active customers", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusMissingRequired, result.Status)
}

func TestExtract_EnumValueRejected(t *testing.T) {
	model := &fakeLLM{response: `{"customer_id": 1, "status": "deleted"}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "q", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusTypeError, result.Status)
	assert.Contains(t, result.TypeErrors[0], "status")
}

func TestExtract_TypeCoercionFailure(t *testing.T) {
	model := &fakeLLM{response: `{"customer_id": "not-a-number"}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "q", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusTypeError, result.Status)
}

func TestExtract_LLMTimeoutFallsBackGracefully(t *testing.T) {
	model := &fakeLLM{delay: 50 * time.Millisecond}
	ex := New(model, testConfig(t), 5*time.Millisecond, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "q", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusLLMParseError, result.Status)
}

func TestExtract_UnparsableJSONSurfacesParseError(t *testing.T) {
	model := &fakeLLM{response: "not json at all"}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "q", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusLLMParseError, result.Status)
}

func TestExtract_LLMErrorPropagates(t *testing.T) {
	model := &fakeLLM{err: errors.New("rate limited")}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	_, err := ex.Extract(context.Background(), "q", sampleTemplate())
	require.Error(t, err)
}

func TestExtract_TimeWindowDefaultFromVocabulary(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Parameters = append(tmpl.Parameters, &template.Parameter{Name: "days", DataType: domain.DataTypeInteger})

	model := &fakeLLM{response: `{"customer_id": 1}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "orders from last week", tmpl)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Values["days"])
}

func TestExtract_TimeWindowDefaultConvertsToDateForDateParameter(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Parameters = append(tmpl.Parameters, &template.Parameter{Name: "since", DataType: domain.DataTypeDate})

	model := &fakeLLM{response: `{"customer_id": 1}`}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "orders for customer 1 from last week", tmpl)
	require.NoError(t, err)

	since, ok := result.Values["since"].(time.Time)
	require.True(t, ok, "expected since to be a time.Time, got %T", result.Values["since"])
	assert.Equal(t, time.Now().AddDate(0, 0, -7).Format("2006-01-02"), since.Format("2006-01-02"))
}

func TestExtract_TimeWindowDefaultMatchesAliasedParameter(t *testing.T) {
	cfg, err := domain.Parse([]byte(`
domain_name: test
description: test domain
entities:
  orders:
    entity_type: primary
    physical_name: orders
fields:
  orders:
    placed_on:
      data_type: date
      aliases:
        - since
relationships: []
vocabulary:
  time_expressions:
    last week: 7
`))
	require.NoError(t, err)

	tmpl := &template.Template{
		ID:          "recent_orders",
		Description: "Recent orders",
		Body:        "SELECT * FROM orders WHERE placed_on >= :placed_on",
		NLExamples:  []string{"recent orders"},
		Parameters: []*template.Parameter{
			{Name: "placed_on", DataType: domain.DataTypeDate},
		},
	}

	model := &fakeLLM{response: `{}`}
	ex := New(model, cfg, time.Second, zerolog.Nop())

	result, err := ex.Extract(context.Background(), "orders from last week", tmpl)
	require.NoError(t, err)

	placedOn, ok := result.Values["placed_on"].(time.Time)
	require.True(t, ok, "expected placed_on to be a time.Time, got %T", result.Values["placed_on"])
	assert.Equal(t, time.Now().AddDate(0, 0, -7).Format("2006-01-02"), placedOn.Format("2006-01-02"))
}

func TestExtract_TrimsExamplesToFitTokenBudget(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.NLExamples = []string{
		"find customer 42",
		"look up customer number 7 please",
		"who is customer 99, show their full profile",
	}

	model := &fakeLLM{response: `{"customer_id": 1}`}
	estimator := &fakeEstimator{}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop()).WithTokenBudget(10, estimator)

	result, err := ex.Extract(context.Background(), "find customer 1", tmpl)
	require.NoError(t, err)
	assert.Equal(t, StatusMissingRequired, result.Status)
	assert.Greater(t, estimator.calls, 1, "expected the extractor to re-estimate after trimming at least once")
}

func TestExtract_NoTokenBudgetConfiguredSkipsEstimation(t *testing.T) {
	model := &fakeLLM{response: `{"customer_id": 1}`}
	estimator := &fakeEstimator{}
	ex := New(model, testConfig(t), time.Second, zerolog.Nop()).WithTokenBudget(0, estimator)

	result, err := ex.Extract(context.Background(), "find customer 1", sampleTemplate())
	require.NoError(t, err)
	assert.Equal(t, StatusMissingRequired, result.Status)
	assert.Zero(t, estimator.calls)
}

func TestParseJSONObject_HandlesFencedAndBareJSON(t *testing.T) {
	obj, err := parseJSONObject("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.EqualValues(t, 1, obj["a"])

	obj, err = parseJSONObject(`prefix text {"a": {"b": 2}} trailing`)
	require.NoError(t, err)
	nested, ok := obj["a"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, nested["b"])
}

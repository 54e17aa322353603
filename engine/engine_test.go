package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/executor"
	"github.com/orbitretrieval/engine/extractor"
	"github.com/orbitretrieval/engine/formatter"
	"github.com/orbitretrieval/engine/llm"
	"github.com/orbitretrieval/engine/matcher"
	"github.com/orbitretrieval/engine/template"
	"github.com/orbitretrieval/engine/vectorstore"
)

type stubEmbedder struct{ dims int }

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, s.dims), nil
}
func (s *stubEmbedder) Dimensions() int { return s.dims }

type stubStore struct {
	matches []vectorstore.Match
}

func (s *stubStore) Upsert(_ context.Context, _ vectorstore.Record) error { return nil }
func (s *stubStore) Delete(_ context.Context, _ string) error             { return nil }
func (s *stubStore) Query(_ context.Context, _ []float32, _ int) ([]vectorstore.Match, error) {
	return s.matches, nil
}
func (s *stubStore) GetAll(_ context.Context) (map[string]string, error) { return nil, nil }
func (s *stubStore) Dimensions() int                                     { return 3 }

type stubLLM struct{ response string }

func (s *stubLLM) Generate(_ context.Context, _, _ string, _ llm.Options) (string, error) {
	return s.response, nil
}

type stubSQL struct{ rows []executor.Row }

func (s *stubSQL) Execute(_ context.Context, _ string, _ map[string]any) ([]executor.Row, error) {
	return s.rows, nil
}

type stubSQLErr struct{ err error }

func (s *stubSQLErr) Execute(_ context.Context, _ string, _ map[string]any) ([]executor.Row, error) {
	return nil, s.err
}

func buildEngine(t *testing.T, llmResponse string, matches []vectorstore.Match, rows []executor.Row) *Engine {
	t.Helper()

	tmpl := &template.Template{
		ID:          "find_customer",
		Description: "Look up a customer by id",
		Body:        "SELECT id, name FROM customers WHERE id = :customer_id",
		NLExamples:  []string{"Show customer 123"},
		Parameters: []*template.Parameter{
			{Name: "customer_id", DataType: domain.DataTypeInteger, Required: true},
		},
		ResultFormat: template.ResultFormatList,
	}
	lib, problems, err := template.New([]*template.Template{tmpl})
	require.NoError(t, err)
	require.Empty(t, problems)

	cfg, err := domain.Parse([]byte(`
domain_name: test
description: test
domain_type: sql
entities:
  customers:
    entity_type: primary
    physical_name: customers
fields:
  customers:
    id:
      data_type: integer
relationships: []
vocabulary: {}
`))
	require.NoError(t, err)

	store := &stubStore{matches: matches}
	m := matcher.New(&stubEmbedder{dims: 3}, store, lib, zerolog.Nop())
	ex := extractor.New(&stubLLM{response: llmResponse}, cfg, time.Second, zerolog.Nop())
	exec := &executor.Executor{SQL: &stubSQL{rows: rows}}
	fmtr := formatter.New(cfg)

	return New(lib, cfg, m, ex, exec, fmtr, Config{MaxTemplates: 3, ConfidenceThreshold: 0.5}, zerolog.Nop())
}

func TestRetrieveContext_HappyPath(t *testing.T) {
	e := buildEngine(t, `{"customer_id": 456}`, []vectorstore.Match{{ID: "find_customer", Similarity: 0.9}}, []executor.Row{{"id": 456, "name": "Jane"}})

	items := e.RetrieveContext(context.Background(), "Show me customer 456", Options{})

	require.Len(t, items, 1)
	assert.Equal(t, "find_customer", items[0].Metadata.TemplateID)
	assert.Equal(t, 1, items[0].Metadata.ResultCount)
	assert.InDelta(t, 0.9, items[0].Confidence, 0.0001)
}

func TestRetrieveContext_EmptyLibraryYieldsNoMatch(t *testing.T) {
	cfg, err := domain.Parse([]byte(`
domain_name: test
description: test
entities: {}
fields: {}
relationships: []
vocabulary: {}
`))
	require.NoError(t, err)
	lib, _, err := template.New(nil)
	require.NoError(t, err)

	store := &stubStore{}
	m := matcher.New(&stubEmbedder{dims: 3}, store, lib, zerolog.Nop())
	ex := extractor.New(&stubLLM{}, cfg, time.Second, zerolog.Nop())
	exec := &executor.Executor{}
	fmtr := formatter.New(cfg)
	e := New(lib, cfg, m, ex, exec, fmtr, Config{MaxTemplates: 3, ConfidenceThreshold: 0.5}, zerolog.Nop())

	items := e.RetrieveContext(context.Background(), "anything", Options{})

	require.Len(t, items, 1)
	assert.Equal(t, float64(0), items[0].Confidence)
	assert.Contains(t, items[0].Metadata.Error, "no_matching_template")
}

func TestRetrieveContext_NoCandidateAboveThreshold(t *testing.T) {
	e := buildEngine(t, `{"customer_id": 1}`, []vectorstore.Match{{ID: "find_customer", Similarity: 0.1}}, nil)

	items := e.RetrieveContext(context.Background(), "query", Options{})

	require.Len(t, items, 1)
	assert.Contains(t, items[0].Metadata.Error, "no_matching_template")
}

func TestRetrieveContext_MissingRequiredParameterSurfacesExtractionFailure(t *testing.T) {
	e := buildEngine(t, `{}`, []vectorstore.Match{{ID: "find_customer", Similarity: 0.9}}, nil)

	items := e.RetrieveContext(context.Background(), "show me a customer", Options{})

	require.Len(t, items, 1)
	assert.Equal(t, string(KindParameterExtractionFailed), items[0].Metadata.Error)
}

func TestRetrieveContext_DatasourceErrorReportsDatasourceErrorKind(t *testing.T) {
	e := buildEngine(t, `{"customer_id": 1}`, []vectorstore.Match{{ID: "find_customer", Similarity: 0.9}}, nil)
	e.executor = &executor.Executor{SQL: &stubSQLErr{err: errors.New("connection refused")}}

	items := e.RetrieveContext(context.Background(), "show me customer 1", Options{})

	require.Len(t, items, 1)
	assert.Equal(t, string(KindDatasourceError), items[0].Metadata.Error)
}

func TestRetrieveContext_DatasourceTimeoutReportsDatasourceTimeoutKind(t *testing.T) {
	e := buildEngine(t, `{"customer_id": 1}`, []vectorstore.Match{{ID: "find_customer", Similarity: 0.9}}, nil)
	e.executor = &executor.Executor{SQL: &stubSQLErr{err: fmt.Errorf("query timed out: %w", context.DeadlineExceeded)}}

	items := e.RetrieveContext(context.Background(), "show me customer 1", Options{})

	require.Len(t, items, 1)
	assert.Equal(t, string(KindDatasourceTimeout), items[0].Metadata.Error)
}

type reloadStore struct {
	matches []vectorstore.Match
	hashes  map[string]string
	upserts []vectorstore.Record
	deletes []string
}

func (s *reloadStore) Upsert(_ context.Context, record vectorstore.Record) error {
	s.upserts = append(s.upserts, record)
	return nil
}
func (s *reloadStore) Delete(_ context.Context, id string) error {
	s.deletes = append(s.deletes, id)
	return nil
}
func (s *reloadStore) Query(_ context.Context, _ []float32, _ int) ([]vectorstore.Match, error) {
	return s.matches, nil
}
func (s *reloadStore) GetAll(_ context.Context) (map[string]string, error) { return s.hashes, nil }
func (s *reloadStore) Dimensions() int                                     { return 3 }

const domainDoc = `
domain_name: test
description: test
domain_type: sql
entities:
  customers:
    entity_type: primary
    physical_name: customers
fields:
  customers:
    id:
      data_type: integer
relationships: []
vocabulary: {}
`

// TestReload_MatcherUsesNewLibrary guards against a regression where
// Reload swapped the engine's own library pointer but left the
// matcher bound to the library it was constructed with, so matching
// and reconciliation kept operating on stale templates after a reload.
func TestReload_MatcherUsesNewLibrary(t *testing.T) {
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "domain.yaml")
	require.NoError(t, os.WriteFile(domainPath, []byte(domainDoc), 0o644))

	templatePath := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(templatePath, []byte(`
templates:
  - id: find_order
    description: Look up an order by id
    sql: "SELECT id FROM orders WHERE id = :order_id"
    nl_examples:
      - "Show order 123"
    parameters:
      - name: order_id
        data_type: integer
        required: true
`), 0o644))

	lib, problems, err := template.New(nil)
	require.NoError(t, err)
	require.Empty(t, problems)

	cfg, err := domain.Parse([]byte(domainDoc))
	require.NoError(t, err)

	store := &reloadStore{}
	m := matcher.New(&stubEmbedder{dims: 3}, store, lib, zerolog.Nop())
	ex := extractor.New(&stubLLM{response: `{"order_id": 123}`}, cfg, time.Second, zerolog.Nop())
	exec := &executor.Executor{SQL: &stubSQL{rows: []executor.Row{{"id": 123}}}}
	fmtr := formatter.New(cfg)
	e := New(lib, cfg, m, ex, exec, fmtr, Config{MaxTemplates: 3, ConfidenceThreshold: 0.5}, zerolog.Nop())

	// Before reload, the library is empty: nothing to match.
	items := e.RetrieveContext(context.Background(), "show order 123", Options{})
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Metadata.Error, "no_matching_template")

	store.matches = []vectorstore.Match{{ID: "find_order", Similarity: 0.9}}
	report, err := e.Reload(context.Background(), domainPath, []string{templatePath}, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"find_order"}, report.Upserted)

	items = e.RetrieveContext(context.Background(), "show order 123", Options{})
	require.Len(t, items, 1)
	assert.Equal(t, "find_order", items[0].Metadata.TemplateID)
}

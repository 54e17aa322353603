// Package executor renders a matched template's body with extracted
// parameter values and runs it against the appropriate datasource.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/template"
)

// ErrTemplateNotApproved is returned when RequireApproved is set and
// the matched template's approved flag is false.
var ErrTemplateNotApproved = errors.New("executor: template is not approved for execution")

// Result is the outcome of executing one template invocation.
type Result struct {
	Rows      []Row
	RowCount  int
	ElapsedMS int64
	Err       error
}

// Executor renders and dispatches template bodies. Exactly one of the
// *Datasource fields needs to be set per DomainConfig.Type the engine
// is configured for; calling Execute for a kind with no configured
// datasource is a programming error and returns an error rather than
// panicking.
type Executor struct {
	SQL             SQLDatasource
	GraphQL         GraphQLDatasource
	HTTP            HTTPDatasource
	RequireApproved bool
}

// Execute renders tmpl's body for kind using values, then dispatches
// to the matching datasource. It fails fast with ErrUnboundRequired
// before any dispatch if a placeholder remains unresolved, and with
// ErrTemplateNotApproved if approval gating is on and the template
// isn't approved.
func (e *Executor) Execute(ctx context.Context, kind domain.Type, tmpl *template.Template, values map[string]any) Result {
	if e.RequireApproved && !tmpl.Approved {
		return Result{Err: fmt.Errorf("%w: %s", ErrTemplateNotApproved, tmpl.ID)}
	}

	start := time.Now()

	rows, err := e.dispatch(ctx, kind, tmpl, values)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return Result{ElapsedMS: elapsed, Err: err}
	}

	return Result{Rows: rows, RowCount: len(rows), ElapsedMS: elapsed}
}

func (e *Executor) dispatch(ctx context.Context, kind domain.Type, tmpl *template.Template, values map[string]any) ([]Row, error) {
	switch kind {
	case domain.TypeGraphQL:
		return e.executeGraphQL(ctx, tmpl, values)
	case domain.TypeHTTP:
		return e.executeHTTP(ctx, tmpl, values)
	default:
		return e.executeSQL(ctx, tmpl, values)
	}
}

func (e *Executor) executeSQL(ctx context.Context, tmpl *template.Template, values map[string]any) ([]Row, error) {
	if e.SQL == nil {
		return nil, errors.New("executor: no SQL datasource configured")
	}
	query, err := renderBody(domain.TypeSQL, tmpl, values)
	if err != nil {
		return nil, err
	}
	return e.SQL.Execute(ctx, query, values)
}

func (e *Executor) executeGraphQL(ctx context.Context, tmpl *template.Template, values map[string]any) ([]Row, error) {
	if e.GraphQL == nil {
		return nil, errors.New("executor: no GraphQL datasource configured")
	}
	document, err := renderBody(domain.TypeGraphQL, tmpl, values)
	if err != nil {
		return nil, err
	}
	return e.GraphQL.Execute(ctx, document, values)
}

func (e *Executor) executeHTTP(ctx context.Context, tmpl *template.Template, values map[string]any) ([]Row, error) {
	if e.HTTP == nil {
		return nil, errors.New("executor: no HTTP datasource configured")
	}

	endpoint, err := renderBody(domain.TypeHTTP, tmpl, values)
	if err != nil {
		return nil, err
	}

	request := HTTPRequest{
		Method:   tmpl.HTTPMethod,
		Query:    map[string]string{},
		Headers:  map[string]string{},
		Body:     map[string]any{},
	}

	for _, p := range tmpl.Parameters {
		value, ok := values[p.Name]
		if !ok {
			continue
		}
		switch p.Location {
		case template.LocationQuery:
			request.Query[p.Name] = fmt.Sprintf("%v", value)
		case template.LocationHeader:
			request.Headers[p.Name] = fmt.Sprintf("%v", value)
		case template.LocationBody:
			request.Body[p.Name] = value
		default:
			// path, or unset: substituted directly into the endpoint.
			endpoint = strings.ReplaceAll(endpoint, "{"+p.Name+"}", fmt.Sprintf("%v", value))
		}
	}
	request.Endpoint = endpoint

	return e.HTTP.Execute(ctx, request)
}

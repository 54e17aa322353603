package executor

import "context"

// Row is one record returned by a datasource, keyed by column/field
// name.
type Row map[string]any

// HTTPRequest is the rendered form of an HTTP-kind template: method,
// endpoint with path placeholders already substituted, and parameters
// routed to their declared location.
type HTTPRequest struct {
	Method   string
	Endpoint string
	Query    map[string]string
	Headers  map[string]string
	Body     map[string]any
}

// SQLDatasource executes rendered SQL text with named host parameters.
// Parameters are always bound, never string-interpolated into the SQL
// text.
type SQLDatasource interface {
	Execute(ctx context.Context, query string, parameters map[string]any) ([]Row, error)
}

// GraphQLDatasource executes a GraphQL document against a configured
// endpoint with a variables map matching the template's declared
// parameter names.
type GraphQLDatasource interface {
	Execute(ctx context.Context, document string, variables map[string]any) ([]Row, error)
}

// HTTPDatasource executes a rendered HTTP request. Authentication
// headers supplied by the datasource's own configuration are merged in
// alongside any static headers declared on the template.
type HTTPDatasource interface {
	Execute(ctx context.Context, request HTTPRequest) ([]Row, error)
}

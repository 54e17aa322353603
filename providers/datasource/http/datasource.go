// Package http adapts net/http to the executor.HTTPDatasource
// capability. A bare-stdlib client is the idiomatic choice here: the
// rendered request is already a fully-formed method/endpoint/query/
// header/body tuple, and nothing beyond net/http is needed to send it.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/orbitretrieval/engine/executor"
)

var _ executor.HTTPDatasource = (*Datasource)(nil)

// Datasource is an executor.HTTPDatasource backed by net/http.
type Datasource struct {
	client      *http.Client
	baseURL     string
	authHeaders map[string]string
}

// New returns a Datasource whose requests are resolved against
// baseURL. authHeaders (e.g. an API key) are merged into every
// request alongside any headers the template declares.
func New(client *http.Client, baseURL string, authHeaders map[string]string) *Datasource {
	if client == nil {
		client = http.DefaultClient
	}
	return &Datasource{client: client, baseURL: baseURL, authHeaders: authHeaders}
}

// Execute issues request against the configured base URL and decodes a
// JSON response body into a single row, or a list of rows if the body
// is a JSON array.
func (d *Datasource) Execute(ctx context.Context, request executor.HTTPRequest) ([]executor.Row, error) {
	target, err := url.Parse(d.baseURL + request.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("http datasource: invalid endpoint: %w", err)
	}

	query := target.Query()
	for key, value := range request.Query {
		query.Set(key, value)
	}
	target.RawQuery = query.Encode()

	var bodyReader *bytes.Reader
	if len(request.Body) > 0 {
		payload, err := json.Marshal(request.Body)
		if err != nil {
			return nil, fmt.Errorf("http datasource: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http datasource: failed to build request: %w", err)
	}
	if len(request.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range request.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range d.authHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http datasource: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http datasource: endpoint returned status %d", resp.StatusCode)
	}

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("http datasource: failed to decode response: %w", err)
	}

	return toRows(decoded), nil
}

func toRows(decoded any) []executor.Row {
	switch v := decoded.(type) {
	case []any:
		rows := make([]executor.Row, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, executor.Row(m))
			}
		}
		return rows
	case map[string]any:
		return []executor.Row{v}
	default:
		return nil
	}
}

// Package sql adapts a sqlx.DB to the executor.SQLDatasource
// capability using a sqlx-based repository pattern
// (github.com/jmoiron/sqlx, NamedQueryContext, MapScan row scanning):
// named SQL parameters are bound as host parameters, never
// interpolated into the query text.
package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/orbitretrieval/engine/executor"
)

var _ executor.SQLDatasource = (*Datasource)(nil)

// Datasource is an executor.SQLDatasource backed by a sqlx.DB.
type Datasource struct {
	db *sqlx.DB
}

// New returns a Datasource backed by db. The caller owns the
// connection pool's lifecycle (opening, closing, pool sizing); this
// type only issues queries against it.
func New(db *sqlx.DB) *Datasource {
	return &Datasource{db: db}
}

// Execute runs query, a named-parameter SQL statement (":name"
// placeholders), binding parameters from parameters, and returns every
// row as a string-keyed map.
func (d *Datasource) Execute(ctx context.Context, query string, parameters map[string]any) ([]executor.Row, error) {
	rows, err := d.db.NamedQueryContext(ctx, query, parameters)
	if err != nil {
		return nil, fmt.Errorf("sql datasource: query failed: %w", err)
	}
	defer rows.Close()

	var results []executor.Row
	for rows.Next() {
		record := make(map[string]any)
		if err := rows.MapScan(record); err != nil {
			return nil, fmt.Errorf("sql datasource: failed to scan row: %w", err)
		}
		results = append(results, executor.Row(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql datasource: row iteration failed: %w", err)
	}

	return results, nil
}

package structured

import (
	"context"
	"database/sql"
	"fmt"
)

// ErrUnsafeQuery marks a query the safety gate rejected.
var ErrUnsafeQuery = fmt.Errorf("query rejected by safety gate")

// Executor runs validated SELECT queries against the relational catalog.
type Executor struct {
	DB      *sql.DB
	MaxRows int
}

// NewExecutor wraps a database handle. maxRows bounds result size; zero means
// the default of 100.
func NewExecutor(db *sql.DB, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = 100
	}
	return &Executor{DB: db, MaxRows: maxRows}
}

// Execute validates and runs the query, returning rows as column-keyed maps.
func (e *Executor) Execute(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if !IsSafeSelect(query) {
		return nil, ErrUnsafeQuery
	}
	rows, err := e.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
		if len(out) >= e.MaxRows {
			break
		}
	}
	return out, rows.Err()
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// QueryExecutor runs generated read-only SQL against the analytics database
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*QueryResult, error)
}

// QueryResult represents the tabular outcome of a query execution
type QueryResult struct {
	Columns  []string
	Rows     json.RawMessage
	RowCount int
}

// GormQueryExecutor implements QueryExecutor over a gorm connection
type GormQueryExecutor struct {
	db      *gorm.DB
	timeout time.Duration
	maxRows int
}

// NewQueryExecutor creates a new query executor instance
func NewQueryExecutor(db *gorm.DB, timeout time.Duration, maxRows int) QueryExecutor {
	return &GormQueryExecutor{
		db:      db,
		timeout: timeout,
		maxRows: maxRows,
	}
}

// Execute runs the statement and materializes the result set as a JSON array of
// objects keyed by column name. The statement is re-validated before running.
func (e *GormQueryExecutor) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	if err := ValidateReadOnlySQL(sql); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.WithContext(queryCtx).Raw(sql).Rows()
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	results := make([]map[string]interface{}, 0)
	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if e.maxRows > 0 && len(results) >= e.maxRows {
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result rows: %w", err)
	}

	return &QueryResult{
		Columns:  columns,
		Rows:     encoded,
		RowCount: len(results),
	}, nil
}

// normalizeValue converts driver-level values into JSON-friendly types
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// MockQueryExecutor implements QueryExecutor for testing
type MockQueryExecutor struct {
	Result     *QueryResult
	Err        error
	Statements []string
}

// Execute records the statement and returns the configured result
func (m *MockQueryExecutor) Execute(_ context.Context, sql string) (*QueryResult, error) {
	m.Statements = append(m.Statements, sql)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &QueryResult{Columns: []string{}, Rows: json.RawMessage("[]"), RowCount: 0}, nil
}

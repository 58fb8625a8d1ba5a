package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReadOnlySQL(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"plain select", "SELECT * FROM sales", false},
		{"select with trailing semicolon", "SELECT 1;", false},
		{"cte", "WITH top AS (SELECT * FROM sales) SELECT * FROM top", false},
		{"lowercase select", "select count(*) from orders", false},
		{"leading whitespace", "   SELECT 1", false},
		{"update statement", "UPDATE users SET role = 'admin'", true},
		{"delete statement", "DELETE FROM sales", true},
		{"drop statement", "DROP TABLE sales", true},
		{"stacked statements", "SELECT 1; DROP TABLE sales", true},
		{"select hiding an insert", "SELECT 1 FROM x; INSERT INTO y VALUES (1)", true},
		{"cte wrapping a delete", "WITH gone AS (DELETE FROM sales RETURNING *) SELECT * FROM gone", true},
		{"copy statement", "COPY sales TO '/tmp/out'", true},
		{"empty statement", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReadOnlySQL(tt.sql)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMockNL2SQLService(t *testing.T) {
	mock := &MockNL2SQLService{
		Result: &NL2SQLResult{
			SQL:         "SELECT region, SUM(amount) FROM sales GROUP BY region",
			Suggestions: []string{"total sales per region in 2025"},
		},
	}

	result, err := mock.GenerateSQL(context.Background(), "sales by region", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, SUM(amount) FROM sales GROUP BY region", result.SQL)
	assert.Equal(t, []string{"sales by region"}, mock.Questions)
}

package nl2sql

import "testing"

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare statement",
			raw:  "SELECT * FROM employees",
			want: "SELECT * FROM employees",
		},
		{
			name: "fenced with language tag",
			raw:  "```sql\nSELECT 1;\n```",
			want: "SELECT 1;",
		},
		{
			name: "fenced without language tag",
			raw:  "```\nSELECT COUNT(*) FROM employees\n```",
			want: "SELECT COUNT(*) FROM employees",
		},
		{
			name: "fence preferred over surrounding prose",
			raw:  "Here is the query you asked for:\n```sql\nSELECT name FROM employees\n```\nLet me know if you need more.",
			want: "SELECT name FROM employees",
		},
		{
			name: "leading commentary without fence",
			raw:  "Sure, here you go:\nSELECT department, COUNT(*) FROM employees GROUP BY department",
			want: "SELECT department, COUNT(*) FROM employees GROUP BY department",
		},
		{
			name: "cte statement",
			raw:  "WITH sales AS (SELECT * FROM employees WHERE department = 'Sales') SELECT COUNT(*) FROM sales",
			want: "WITH sales AS (SELECT * FROM employees WHERE department = 'Sales') SELECT COUNT(*) FROM sales",
		},
		{
			name: "multiline statement keeps trailing lines",
			raw:  "The answer:\nSELECT name\nFROM employees\nWHERE department = 'Sales'",
			want: "SELECT name\nFROM employees\nWHERE department = 'Sales'",
		},
		{
			name: "write statement extracts for the validator",
			raw:  "DROP TABLE cities",
			want: "DROP TABLE cities",
		},
		{
			name: "stacked statements extract whole",
			raw:  "DELETE FROM employees; SELECT 1",
			want: "DELETE FROM employees; SELECT 1",
		},
		{
			name: "write statement behind commentary",
			raw:  "This should clean things up:\nTRUNCATE employees",
			want: "TRUNCATE employees",
		},
		{
			name: "no statement at all",
			raw:  "I cannot answer that question from the schema.",
			want: "",
		},
		{
			name: "empty completion",
			raw:  "   \n  ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSQL(tt.raw); got != tt.want {
				t.Fatalf("ExtractSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSQLIsDeterministic(t *testing.T) {
	raw := "Some text\n```sql\nSELECT 1\n```"
	if ExtractSQL(raw) != ExtractSQL(raw) {
		t.Fatal("ExtractSQL() is not deterministic")
	}
}

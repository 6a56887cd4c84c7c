package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/askdb/askdb/internal/warehouse"
)

type Config struct {
	// Path is the DuckDB database file. Empty means in-memory.
	Path string
	// RowLimit caps the number of rows returned by Execute. Zero disables
	// the cap.
	RowLimit int
	// QueryTimeout bounds a single Execute call. Zero disables the bound.
	QueryTimeout time.Duration
}

// Store is a DuckDB-backed warehouse. It implements both
// warehouse.Introspector and warehouse.Executor.
type Store struct {
	db           *sql.DB
	rowLimit     int
	queryTimeout time.Duration
}

func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{
		db:           db,
		rowLimit:     cfg.RowLimit,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

// DescribeSchema enumerates user tables and views with their columns in
// stable order (table name, then column ordinal position).
func (s *Store) DescribeSchema(ctx context.Context) (warehouse.Description, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name ASC, ordinal_position ASC`)
	if err != nil {
		return warehouse.Description{}, fmt.Errorf("%w: %v", warehouse.ErrSchemaUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var description warehouse.Description
	index := map[string]int{}
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return warehouse.Description{}, fmt.Errorf("%w: scan column row: %v", warehouse.ErrSchemaUnavailable, err)
		}
		pos, ok := index[tableName]
		if !ok {
			pos = len(description.Tables)
			index[tableName] = pos
			description.Tables = append(description.Tables, warehouse.Table{Name: tableName})
		}
		description.Tables[pos].Columns = append(description.Tables[pos].Columns, warehouse.Column{
			Name: columnName,
			Type: dataType,
		})
	}
	if err := rows.Err(); err != nil {
		return warehouse.Description{}, fmt.Errorf("%w: iterate column rows: %v", warehouse.ErrSchemaUnavailable, err)
	}
	if len(description.Tables) == 0 {
		return warehouse.Description{}, fmt.Errorf("%w: no user tables", warehouse.ErrSchemaUnavailable)
	}
	return description, nil
}

// Execute runs a validator-accepted statement with the configured row cap and
// timeout. The connection is acquired per call and released before returning.
func (s *Store) Execute(ctx context.Context, sqlText string) (warehouse.Result, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return warehouse.Result{}, &warehouse.ExecError{Cause: warehouse.CauseOther, Err: fmt.Errorf("sql is required")}
	}
	if s.rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, s.rowLimit)
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Result{}, classify(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, classify(ctx, err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Result{}, classify(ctx, err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, classify(ctx, err)
	}

	return warehouse.Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

// RegisterParquetView exposes a set of local parquet files as a queryable
// view named after the table.
func (s *Store) RegisterParquetView(ctx context.Context, tableName string, localPaths []string) error {
	if len(localPaths) == 0 {
		return fmt.Errorf("no parquet files for table %q", tableName)
	}
	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths))
	if _, err := s.db.ExecContext(ctx, viewSQL); err != nil {
		return fmt.Errorf("create view for table %q: %w", tableName, err)
	}
	return nil
}

// LoadCSV materializes a CSV file as a warehouse table, replacing any
// existing table of the same name.
func (s *Store) LoadCSV(ctx context.Context, tableName, csvPath string) error {
	loadSQL := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s)`, quoteIdent(tableName), quoteString(csvPath))
	if _, err := s.db.ExecContext(ctx, loadSQL); err != nil {
		return fmt.Errorf("load csv into table %q: %w", tableName, err)
	}
	return nil
}

func classify(ctx context.Context, err error) *warehouse.ExecError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &warehouse.ExecError{Cause: warehouse.CauseTimeout, Err: err}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &warehouse.ExecError{Cause: warehouse.CauseUnavailable, Err: err}
	}
	message := err.Error()
	switch {
	case strings.Contains(message, "does not exist") || strings.Contains(message, "not found in FROM clause") || strings.Contains(message, "Referenced column"):
		return &warehouse.ExecError{Cause: warehouse.CauseUnknownRelation, Err: err}
	case strings.Contains(message, "Conversion Error") || strings.Contains(message, "Could not convert") || strings.Contains(message, "No function matches"):
		return &warehouse.ExecError{Cause: warehouse.CauseTypeMismatch, Err: err}
	default:
		return &warehouse.ExecError{Cause: warehouse.CauseOther, Err: err}
	}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, quoteString(value))
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

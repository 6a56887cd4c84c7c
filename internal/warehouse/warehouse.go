package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSchemaUnavailable is returned when the warehouse cannot be reached or
// contains no user tables.
var ErrSchemaUnavailable = errors.New("warehouse schema unavailable")

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Description is an ordered snapshot of the warehouse schema, taken once per
// request.
type Description struct {
	Tables []Table `json:"tables"`
}

// Text renders the schema description in the canonical form embedded into
// prompts. The rendering is deterministic for a given description.
func (d Description) Text() string {
	var b strings.Builder
	for i, table := range d.Tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Table: ")
		b.WriteString(table.Name)
		b.WriteString("\nColumns: ")
		for j, column := range table.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column.Name)
			b.WriteString(" (")
			b.WriteString(column.Type)
			b.WriteString(")")
		}
	}
	return b.String()
}

type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

type ExecCause string

const (
	CauseUnknownRelation ExecCause = "unknown_relation"
	CauseTypeMismatch    ExecCause = "type_mismatch"
	CauseTimeout         ExecCause = "timeout"
	CauseUnavailable     ExecCause = "unavailable"
	CauseOther           ExecCause = "other"
)

type ExecError struct {
	Cause ExecCause
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute query (%s): %v", e.Cause, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

type Introspector interface {
	DescribeSchema(ctx context.Context) (Description, error)
}

type Executor interface {
	Execute(ctx context.Context, sqlText string) (Result, error)
}

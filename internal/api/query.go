package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/warehouse"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type queryResponse struct {
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	Truncated  bool     `json:"truncated"`
	DurationMs int64    `json:"duration_ms"`
}

// handleQuery runs a caller-supplied statement through the same validator and
// executor the pipeline uses, skipping the model entirely.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "pipeline is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if request.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "row_limit must not be negative", false, nil)
		return
	}

	result, verdict, err := deps.Pipeline.Query(r.Context(), request.SQL)
	if err != nil {
		var execErr *warehouse.ExecError
		cause := warehouse.CauseOther
		if errors.As(err, &execErr) {
			cause = execErr.Cause
		}
		writeError(r.Context(), w, executionStatus(cause), "QUERY_EXECUTION_FAILED",
			"query execution failed", retryableCause(cause),
			map[string]any{"cause": string(cause)})
		return
	}
	if !verdict.Accepted {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED",
			"only single read-only SELECT/WITH statements are allowed", false,
			map[string]any{"reason": string(verdict.Reason)})
		return
	}

	// row_count always reports the full result size; truncation only trims
	// the returned rows.
	rows := result.Rows
	truncated := false
	if request.RowLimit > 0 && len(rows) > request.RowLimit {
		rows = rows[:request.RowLimit]
		truncated = true
	}
	writeJSON(w, http.StatusOK, queryResponse{
		SQL:        verdict.NormalizedSQL,
		Columns:    result.Columns,
		Rows:       rows,
		RowCount:   result.RowCount,
		Truncated:  truncated,
		DurationMs: result.Duration.Milliseconds(),
	})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "pipeline is not configured", false, nil)
		return
	}

	description, err := deps.Pipeline.Schema(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE",
			"the warehouse schema could not be read", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": description.Tables,
		"text":   description.Text(),
	})
}

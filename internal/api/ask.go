package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/warehouse"
)

type askRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type askResponse struct {
	RequestID      string   `json:"request_id"`
	UserID         string   `json:"user_id"`
	Question       string   `json:"question"`
	SQL            string   `json:"sql"`
	Answer         string   `json:"answer"`
	Columns        []string `json:"columns"`
	Rows           [][]any  `json:"rows"`
	RowCount       int      `json:"row_count"`
	AnswerDegraded bool     `json:"answer_degraded"`
	Persisted      bool     `json:"persisted"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	out, err := deps.Pipeline.Ask(r.Context(), request.UserID, request.Question)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "pipeline failed", true, map[string]any{"details": err.Error()})
		return
	}

	switch out.Kind {
	case pipeline.KindAnswered:
		writeJSON(w, http.StatusOK, askResponse{
			RequestID:      out.RequestID,
			UserID:         out.UserID,
			Question:       out.Question,
			SQL:            out.SQL,
			Answer:         out.Answer,
			Columns:        out.Columns,
			Rows:           out.Rows,
			RowCount:       out.RowCount,
			AnswerDegraded: out.AnswerDegraded,
			Persisted:      out.Persisted,
		})
	case pipeline.KindRejected:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SQL_REJECTED",
			"the generated statement was rejected by the safety validator", false,
			map[string]any{
				"reason":       string(out.RejectionReason),
				"rejected_sql": out.RejectedSQL,
				"question":     out.Question,
				"request_id":   out.RequestID,
			})
	case pipeline.KindSchemaUnavailable:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE",
			"the warehouse schema could not be read", true,
			map[string]any{"request_id": out.RequestID})
	case pipeline.KindStoreUnavailable:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"the conversation store could not be read", true,
			map[string]any{"request_id": out.RequestID})
	case pipeline.KindGenerationFailed:
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED",
			"no SQL statement could be generated for the question", true,
			map[string]any{"request_id": out.RequestID})
	case pipeline.KindExecutionError:
		writeError(r.Context(), w, executionStatus(out.ExecutionCause), "QUERY_EXECUTION_FAILED",
			"the generated statement failed to execute", retryableCause(out.ExecutionCause),
			map[string]any{"cause": string(out.ExecutionCause), "sql": out.SQL, "request_id": out.RequestID})
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "UNEXPECTED_OUTCOME",
			"pipeline produced an unexpected outcome", true,
			map[string]any{"kind": string(out.Kind), "request_id": out.RequestID})
	}
}

func executionStatus(cause warehouse.ExecCause) int {
	switch cause {
	case warehouse.CauseTimeout:
		return http.StatusGatewayTimeout
	case warehouse.CauseUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func retryableCause(cause warehouse.ExecCause) bool {
	return cause == warehouse.CauseTimeout || cause == warehouse.CauseUnavailable
}

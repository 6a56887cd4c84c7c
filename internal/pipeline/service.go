package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/answer"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/prompt"
	"github.com/askdb/askdb/internal/sqlcheck"
	"github.com/askdb/askdb/internal/warehouse"
)

// ErrEmptyQuestion is returned when a request carries no question text.
var ErrEmptyQuestion = errors.New("question must not be empty")

type Kind string

const (
	KindAnswered          Kind = "answered"
	KindRejected          Kind = "rejected"
	KindSchemaUnavailable Kind = "schema_unavailable"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindGenerationFailed  Kind = "generation_failed"
	KindExecutionError    Kind = "execution_error"
)

// Outcome is the result of one pipeline run. Exactly one Kind applies; the
// remaining fields are populated as far as the run got.
type Outcome struct {
	Kind      Kind
	RequestID string
	UserID    string
	Question  string

	// SQL is the normalized statement that was executed, empty until a
	// candidate passes validation.
	SQL    string
	Answer string

	Columns  []string
	Rows     [][]any
	RowCount int

	// RejectionReason and RejectedSQL are set when Kind is KindRejected.
	// The rejected statement is reported back to the caller but never
	// executed or persisted.
	RejectionReason sqlcheck.Reason
	RejectedSQL     string
	// ExecutionCause is set when Kind is KindExecutionError.
	ExecutionCause warehouse.ExecCause

	// AnswerDegraded marks an answered run whose prose synthesis failed;
	// the rows are still present and Answer is a fixed fallback.
	AnswerDegraded bool
	// Persisted reports whether the turn was recorded in history.
	Persisted bool

	Err error
}

// fallbackAnswer is returned when synthesis fails after a successful
// execution. The rows still reach the caller.
const fallbackAnswer = "The query executed successfully, but a natural-language summary could not be produced. See the returned rows."

const retryBackoff = 300 * time.Millisecond

type Dependencies struct {
	Logger       *slog.Logger
	Introspector warehouse.Introspector
	Executor     warehouse.Executor
	Store        history.Store
	Generator    *nl2sql.Generator
	Synthesizer  *answer.Synthesizer
}

// Service runs the full question-to-answer pipeline.
type Service struct {
	log          *slog.Logger
	introspector warehouse.Introspector
	executor     warehouse.Executor
	store        history.Store
	generator    *nl2sql.Generator
	synthesizer  *answer.Synthesizer
	cfg          config.PipelineConfig
	maxRetries   int
	backoff      time.Duration
}

func NewService(deps Dependencies, pipelineCfg config.PipelineConfig, maxRetries int) (*Service, error) {
	if deps.Logger == nil {
		return nil, errors.New("pipeline: logger is required")
	}
	if deps.Introspector == nil || deps.Executor == nil {
		return nil, errors.New("pipeline: warehouse is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline: history store is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("pipeline: synthesizer is required")
	}
	if maxRetries < 0 || maxRetries > 2 {
		return nil, fmt.Errorf("pipeline: max retries must be between 0 and 2, got %d", maxRetries)
	}
	if pipelineCfg.AnonymousUserID == "" {
		return nil, errors.New("pipeline: anonymous user id is required")
	}
	return &Service{
		log:          deps.Logger,
		introspector: deps.Introspector,
		executor:     deps.Executor,
		store:        deps.Store,
		generator:    deps.Generator,
		synthesizer:  deps.Synthesizer,
		cfg:          pipelineCfg,
		maxRetries:   maxRetries,
		backoff:      retryBackoff,
	}, nil
}

// Ask answers a natural-language question against the warehouse. Every run
// produces exactly one outcome; failures after execution degrade rather than
// discard the rows.
func (s *Service) Ask(ctx context.Context, userID, question string) (Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Outcome{}, ErrEmptyQuestion
	}
	userID = s.resolveUserID(userID)

	out := Outcome{
		RequestID: uuid.NewString(),
		UserID:    userID,
		Question:  question,
	}
	log := s.log.With("request_id", out.RequestID, "user_id", userID)

	description, err := s.introspector.DescribeSchema(ctx)
	if err != nil {
		log.Error("schema introspection failed", "error", err)
		return s.finish(out, KindSchemaUnavailable, err), nil
	}

	turns, err := s.store.RecentTurns(ctx, userID, s.cfg.HistoryTurns)
	if err != nil {
		log.Error("history lookup failed", "error", err)
		return s.finish(out, KindStoreUnavailable, err), nil
	}

	promptText := prompt.Build(description.Text(), turns, question)

	candidate, err := s.generateWithRetry(ctx, log, promptText)
	if err != nil {
		log.Error("sql generation failed", "error", err)
		return s.finish(out, KindGenerationFailed, err), nil
	}

	verdict := sqlcheck.Validate(candidate.SQL)
	if !verdict.Accepted {
		observability.ObserveValidationRejection(string(verdict.Reason))
		log.Warn("candidate rejected", "reason", verdict.Reason)
		out.RejectionReason = verdict.Reason
		out.RejectedSQL = candidate.SQL
		return s.finish(out, KindRejected, nil), nil
	}
	out.SQL = verdict.NormalizedSQL

	result, err := s.executor.Execute(ctx, verdict.NormalizedSQL)
	if err != nil {
		var execErr *warehouse.ExecError
		if errors.As(err, &execErr) {
			out.ExecutionCause = execErr.Cause
		} else {
			out.ExecutionCause = warehouse.CauseOther
		}
		log.Error("query execution failed", "cause", out.ExecutionCause, "error", err)
		return s.finish(out, KindExecutionError, err), nil
	}
	observability.ObserveExecutionDuration(result.Duration)
	out.Columns = result.Columns
	out.Rows = result.Rows
	out.RowCount = result.RowCount

	synthStart := time.Now()
	prose, err := s.synthesizer.Synthesize(ctx, question, verdict.NormalizedSQL, &result)
	observability.ObserveCompletionDuration("synthesis", time.Since(synthStart))
	if err != nil {
		observability.IncrementSynthesisFallback()
		log.Warn("answer synthesis failed, returning rows only", "error", err)
		out.Answer = fallbackAnswer
		out.AnswerDegraded = true
	} else {
		out.Answer = prose
	}

	s.persistTurn(ctx, log, &out)
	return s.finish(out, KindAnswered, nil), nil
}

// Query validates and executes a caller-supplied statement without touching
// the model or history. Used by the raw query endpoint.
func (s *Service) Query(ctx context.Context, sqlText string) (warehouse.Result, sqlcheck.Verdict, error) {
	verdict := sqlcheck.Validate(sqlText)
	if !verdict.Accepted {
		observability.ObserveValidationRejection(string(verdict.Reason))
		return warehouse.Result{}, verdict, nil
	}
	result, err := s.executor.Execute(ctx, verdict.NormalizedSQL)
	if err != nil {
		return warehouse.Result{}, verdict, err
	}
	observability.ObserveExecutionDuration(result.Duration)
	return result, verdict, nil
}

// Schema exposes the current warehouse description.
func (s *Service) Schema(ctx context.Context) (warehouse.Description, error) {
	return s.introspector.DescribeSchema(ctx)
}

// History returns the most recent turns for a user in chronological order.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryTurns
	}
	return s.store.RecentTurns(ctx, s.resolveUserID(userID), limit)
}

// ClearHistory removes all turns for a user and reports how many were
// deleted.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int64, error) {
	return s.store.Clear(ctx, s.resolveUserID(userID))
}

func (s *Service) resolveUserID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return s.cfg.AnonymousUserID
	}
	return userID
}

// generateWithRetry retries only completion transport failures. A completion
// that succeeds but yields no extractable SQL is a terminal generation
// failure, retrying it would just re-sample the same confusion.
func (s *Service) generateWithRetry(ctx context.Context, log *slog.Logger, promptText string) (nl2sql.CandidateQuery, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			observability.IncrementGenerationRetry()
			log.Warn("retrying sql generation", "attempt", attempt, "error", lastErr)
			if err := sleepContext(ctx, time.Duration(attempt)*s.backoff); err != nil {
				return nl2sql.CandidateQuery{}, fmt.Errorf("%w: %v", nl2sql.ErrGenerationFailed, err)
			}
		}

		start := time.Now()
		candidate, err := s.generator.GenerateSQL(ctx, promptText)
		observability.ObserveCompletionDuration("generation", time.Since(start))
		if err == nil {
			return candidate, nil
		}
		lastErr = err
		if !errors.Is(err, llm.ErrCompletion) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nl2sql.CandidateQuery{}, lastErr
}

// persistTurn records the executed turn and applies retention. Both are best
// effort: the user already has an answer and losing one history row is
// preferable to failing the request.
func (s *Service) persistTurn(ctx context.Context, log *slog.Logger, out *Outcome) {
	turn, err := s.store.AppendTurn(ctx, history.AppendTurnInput{
		UserID:   out.UserID,
		Question: out.Question,
		SQL:      out.SQL,
		Answer:   out.Answer,
	})
	if err != nil {
		log.Error("failed to persist turn", "error", err)
		return
	}
	out.Persisted = true

	if s.cfg.RetentionTurns > 0 {
		pruned, err := s.store.Prune(ctx, out.UserID, s.cfg.RetentionTurns)
		if err != nil {
			log.Warn("history pruning failed", "error", err)
		} else if pruned > 0 {
			log.Debug("pruned history", "user_id", out.UserID, "deleted", pruned, "seq", turn.Seq)
		}
	}
}

func (s *Service) finish(out Outcome, kind Kind, err error) Outcome {
	out.Kind = kind
	out.Err = err
	observability.ObservePipelineOutcome(string(kind))
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/prompt"
)

// ErrGenerationFailed covers completion failures and completions with no
// extractable SQL statement.
var ErrGenerationFailed = errors.New("sql generation failed")

// CandidateQuery is the model's SQL proposal before validation. It is
// discarded after the request.
type CandidateQuery struct {
	RawText string
	SQL     string
}

// Generator turns a built prompt into a candidate SQL statement with a
// single completion call. Retry policy belongs to the caller.
type Generator struct {
	client llm.Client
}

func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateSQL(ctx context.Context, promptText string) (CandidateQuery, error) {
	raw, err := g.client.Complete(ctx, llm.CompletionRequest{
		System: prompt.GenerationSystemPrompt,
		User:   promptText,
	})
	if err != nil {
		return CandidateQuery{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	extracted := ExtractSQL(raw)
	if strings.TrimSpace(extracted) == "" {
		return CandidateQuery{}, fmt.Errorf("%w: no extractable statement in completion", ErrGenerationFailed)
	}
	return CandidateQuery{RawText: raw, SQL: extracted}, nil
}

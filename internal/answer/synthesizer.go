package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/warehouse"
)

var ErrSynthesisFailed = errors.New("answer synthesis failed")

const synthesisSystemPrompt = "You are a data analyst assistant. You are given a user's question, " +
	"the SQL statement that answered it, and the rows the statement returned. " +
	"Write a short, direct natural-language answer grounded strictly in those rows. " +
	"Do not invent values that are not present in the result."

// NoMatchAnswer is returned for empty result sets without consulting the
// model. There is nothing for the model to summarize and letting it try
// invites fabricated values.
const NoMatchAnswer = "The query ran successfully but returned no matching rows."

// Synthesizer turns an executed result into a natural-language answer.
type Synthesizer struct {
	client  llm.Client
	maxRows int
}

func NewSynthesizer(client llm.Client, maxRows int) (*Synthesizer, error) {
	if client == nil {
		return nil, errors.New("answer: completion client is required")
	}
	if maxRows <= 0 {
		return nil, fmt.Errorf("answer: max rows must be positive, got %d", maxRows)
	}
	return &Synthesizer{client: client, maxRows: maxRows}, nil
}

// Synthesize produces an answer for the given question and result. Failures
// are wrapped in ErrSynthesisFailed so callers can degrade to returning rows
// without prose.
func (s *Synthesizer) Synthesize(ctx context.Context, question, sqlText string, result *warehouse.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("%w: no result to summarize", ErrSynthesisFailed)
	}
	if result.RowCount == 0 {
		return NoMatchAnswer, nil
	}

	reply, err := s.client.Complete(ctx, llm.CompletionRequest{
		System: synthesisSystemPrompt,
		User:   buildUserMessage(question, sqlText, result, s.maxRows),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", ErrSynthesisFailed)
	}
	return reply, nil
}

// buildUserMessage renders the prompt sent to the model. Rows beyond maxRows
// are elided and replaced with a truncation note so large results cannot
// blow the prompt budget.
func buildUserMessage(question, sqlText string, result *warehouse.Result, maxRows int) string {
	var b strings.Builder

	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSQL:\n")
	b.WriteString(sqlText)
	b.WriteString("\n\nResult columns: ")
	b.WriteString(strings.Join(result.Columns, ", "))
	b.WriteString("\nResult rows:\n")

	shown := result.RowCount
	if shown > maxRows {
		shown = maxRows
	}
	for i := 0; i < shown && i < len(result.Rows); i++ {
		b.WriteString(renderRow(result.Rows[i]))
		b.WriteString("\n")
	}
	if result.RowCount > shown {
		fmt.Fprintf(&b, "... (%d more rows not shown, %d total)\n", result.RowCount-shown, result.RowCount)
	}

	b.WriteString("\nAnswer the question using only the rows above.")
	return b.String()
}

func renderRow(row []any) string {
	parts := make([]string, len(row))
	for i, value := range row {
		if value == nil {
			parts[i] = "NULL"
			continue
		}
		parts[i] = fmt.Sprintf("%v", value)
	}
	return strings.Join(parts, " | ")
}

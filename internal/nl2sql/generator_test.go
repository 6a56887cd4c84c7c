package nl2sql

import (
	"context"
	"errors"
	"testing"

	"github.com/askdb/askdb/internal/llm"
)

type stubClient struct {
	response string
	err      error
	calls    int
}

func (s *stubClient) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestGenerateSQLExtractsStatement(t *testing.T) {
	client := &stubClient{response: "```sql\nSELECT COUNT(*) FROM employees\n```"}
	generator := NewGenerator(client)

	candidate, err := generator.GenerateSQL(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateSQL() error = %v", err)
	}
	if candidate.SQL != "SELECT COUNT(*) FROM employees" {
		t.Fatalf("SQL = %q", candidate.SQL)
	}
	if candidate.RawText != client.response {
		t.Fatalf("RawText = %q", candidate.RawText)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want exactly one completion call", client.calls)
	}
}

func TestGenerateSQLWrapsCompletionFailure(t *testing.T) {
	client := &stubClient{err: llm.ErrCompletion}
	generator := NewGenerator(client)

	_, err := generator.GenerateSQL(context.Background(), "prompt")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("GenerateSQL() error = %v, want ErrGenerationFailed", err)
	}
	if !errors.Is(err, llm.ErrCompletion) {
		t.Fatalf("GenerateSQL() error = %v, want the completion error preserved in the chain", err)
	}
}

func TestGenerateSQLFailsOnUnextractableCompletion(t *testing.T) {
	client := &stubClient{response: "I am unable to write that query."}
	generator := NewGenerator(client)

	_, err := generator.GenerateSQL(context.Background(), "prompt")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("GenerateSQL() error = %v, want ErrGenerationFailed", err)
	}
	if errors.Is(err, llm.ErrCompletion) {
		t.Fatalf("GenerateSQL() error = %v, unextractable completion must not look like a transport failure", err)
	}
}

package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/warehouse"
)

type stubClient struct {
	reply    string
	err      error
	calls    int
	lastUser string
}

func (s *stubClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	s.calls++
	s.lastUser = req.User
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func sampleResult(rowCount int) *warehouse.Result {
	rows := make([][]any, rowCount)
	for i := range rows {
		rows[i] = []any{"city", int64(i)}
	}
	return &warehouse.Result{
		Columns:  []string{"name", "population"},
		Rows:     rows,
		RowCount: rowCount,
		Duration: 5 * time.Millisecond,
	}
}

func TestSynthesizeReturnsModelAnswer(t *testing.T) {
	client := &stubClient{reply: "  Tokyo has the largest population.  "}
	synth, err := NewSynthesizer(client, 20)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	got, err := synth.Synthesize(context.Background(), "Which city is largest?", "SELECT 1", sampleResult(2))
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != "Tokyo has the largest population." {
		t.Fatalf("Synthesize() = %q", got)
	}
	if client.calls != 1 {
		t.Fatalf("completion calls = %d, want 1", client.calls)
	}
}

func TestSynthesizeEmptyResultSkipsModel(t *testing.T) {
	client := &stubClient{reply: "should not be used"}
	synth, err := NewSynthesizer(client, 20)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	got, err := synth.Synthesize(context.Background(), "any?", "SELECT 1", sampleResult(0))
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != NoMatchAnswer {
		t.Fatalf("Synthesize() = %q, want %q", got, NoMatchAnswer)
	}
	if client.calls != 0 {
		t.Fatalf("completion calls = %d, want 0", client.calls)
	}
}

func TestSynthesizeTruncatesRows(t *testing.T) {
	client := &stubClient{reply: "fine"}
	synth, err := NewSynthesizer(client, 3)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	if _, err := synth.Synthesize(context.Background(), "q", "SELECT 1", sampleResult(10)); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.Contains(client.lastUser, "(7 more rows not shown, 10 total)") {
		t.Fatalf("prompt missing truncation note:\n%s", client.lastUser)
	}
	if got := strings.Count(client.lastUser, "city | "); got != 3 {
		t.Fatalf("rendered rows = %d, want 3", got)
	}
}

func TestSynthesizeWrapsCompletionFailure(t *testing.T) {
	client := &stubClient{err: errors.New("upstream down")}
	synth, err := NewSynthesizer(client, 20)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "q", "SELECT 1", sampleResult(1))
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("Synthesize() error = %v, want ErrSynthesisFailed", err)
	}
}

func TestSynthesizeEmptyReplyFails(t *testing.T) {
	client := &stubClient{reply: "   "}
	synth, err := NewSynthesizer(client, 20)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "q", "SELECT 1", sampleResult(1))
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("Synthesize() error = %v, want ErrSynthesisFailed", err)
	}
}

func TestSynthesizeRendersNulls(t *testing.T) {
	client := &stubClient{reply: "ok"}
	synth, err := NewSynthesizer(client, 20)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	result := &warehouse.Result{
		Columns:  []string{"a", "b"},
		Rows:     [][]any{{nil, "x"}},
		RowCount: 1,
	}
	if _, err := synth.Synthesize(context.Background(), "q", "SELECT 1", result); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.Contains(client.lastUser, "NULL | x") {
		t.Fatalf("prompt missing NULL rendering:\n%s", client.lastUser)
	}
}

func TestNewSynthesizerValidation(t *testing.T) {
	if _, err := NewSynthesizer(nil, 20); err == nil {
		t.Fatal("NewSynthesizer(nil) error = nil")
	}
	if _, err := NewSynthesizer(&stubClient{}, 0); err == nil {
		t.Fatal("NewSynthesizer(maxRows=0) error = nil")
	}
}

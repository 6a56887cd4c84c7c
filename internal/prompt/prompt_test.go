package prompt

import (
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/history"
)

func TestBuildIsDeterministic(t *testing.T) {
	schemaText := "Table: employees\nColumns: id (BIGINT), department (VARCHAR)"
	turns := []history.Turn{
		{Seq: 1, Question: "List departments", SQL: "SELECT DISTINCT department FROM employees"},
		{Seq: 2, Question: "How many employees?", SQL: "SELECT COUNT(*) FROM employees"},
	}

	first := Build(schemaText, turns, "How many are in Sales?")
	second := Build(schemaText, turns, "How many are in Sales?")
	if first != second {
		t.Fatal("Build() output is not deterministic")
	}
}

func TestBuildEmbedsSchemaHistoryAndQuestion(t *testing.T) {
	schemaText := "Table: employees\nColumns: id (BIGINT), department (VARCHAR)"
	turns := []history.Turn{
		{Seq: 1, Question: "List departments", SQL: "SELECT DISTINCT department FROM employees"},
	}

	got := Build(schemaText, turns, "How many are in Sales?")
	for _, want := range []string{
		schemaText,
		"Question 1: List departments",
		"SQL 1: SELECT DISTINCT department FROM employees",
		"How many are in Sales?",
		"single read-only statement",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Build() missing %q in:\n%s", want, got)
		}
	}
}

func TestBuildLabelsTurnsInChronologicalOrder(t *testing.T) {
	turns := []history.Turn{
		{Seq: 1, Question: "first", SQL: "SELECT 1"},
		{Seq: 2, Question: "second", SQL: "SELECT 2"},
	}
	got := Build("Table: t\nColumns: a (BIGINT)", turns, "third")
	if strings.Index(got, "Question 1: first") > strings.Index(got, "Question 2: second") {
		t.Fatal("history turns are out of order")
	}
}

func TestBuildWithoutHistoryOmitsHistorySection(t *testing.T) {
	got := Build("Table: t\nColumns: a (BIGINT)", nil, "anything")
	if strings.Contains(got, "Conversation history") {
		t.Fatalf("unexpected history section in:\n%s", got)
	}
}

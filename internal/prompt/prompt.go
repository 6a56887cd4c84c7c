package prompt

import (
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/history"
)

// GenerationSystemPrompt constrains the model to a single read-only DuckDB
// statement with no surrounding prose.
const GenerationSystemPrompt = "You are an expert SQL assistant. " +
	"Given a database schema, past conversation, and a natural language request, " +
	"generate exactly one read-only SQL statement for DuckDB (PostgreSQL-like syntax). " +
	"Return ONLY SQL. No markdown, no explanation, no extra text."

// Build composes the generation prompt from the schema text, prior turns,
// and the current question. It is a pure function: identical inputs always
// produce byte-identical output.
func Build(schemaText string, turns []history.Turn, question string) string {
	var b strings.Builder

	b.WriteString("Database schema:\n")
	b.WriteString(schemaText)
	b.WriteString("\n")

	if len(turns) > 0 {
		b.WriteString("\nConversation history (oldest first):\n")
		for i, turn := range turns {
			label := strconv.Itoa(i + 1)
			b.WriteString("Question ")
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(turn.Question)
			b.WriteString("\nSQL ")
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(turn.SQL)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser request:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use only the listed tables and columns.\n")
	b.WriteString("- Prefer explicit column lists over SELECT *.\n")
	b.WriteString("- Output a single read-only statement. No INSERT, UPDATE, DELETE, or DDL.\n")
	return b.String()
}

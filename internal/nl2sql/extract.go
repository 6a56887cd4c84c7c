package nl2sql

import (
	"strings"
)

// statement-leading keywords accepted by the fallback scan. Extraction is
// deliberately permissive about statement kind: an unsafe candidate must
// surface as a validation rejection, not as a failed extraction.
var leadingKeywords = []string{
	"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "DROP", "ALTER",
	"CREATE", "TRUNCATE", "MERGE", "REPLACE", "GRANT", "REVOKE",
	"ATTACH", "DETACH", "COPY", "EXPORT", "IMPORT", "PRAGMA", "CALL",
	"SET", "INSTALL", "LOAD", "EXPLAIN", "DESCRIBE", "SHOW", "VALUES",
}

// ExtractSQL pulls a single SQL statement out of a raw completion.
// Fallback order: fenced code block, then first line starting with a
// statement-leading keyword, then failure (empty string). The function is
// deterministic for a given input.
func ExtractSQL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if fenced, ok := extractFencedBlock(trimmed); ok {
		return strings.TrimSpace(fenced)
	}

	if startsWithKeyword(trimmed) {
		return trimmed
	}

	// Models sometimes prefix the statement with commentary. Scan for the
	// first line that starts a statement and keep everything from there.
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		if startsWithKeyword(strings.TrimSpace(line)) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return ""
}

func extractFencedBlock(value string) (string, bool) {
	start := strings.Index(value, "```")
	if start < 0 {
		return "", false
	}
	rest := value[start+3:]
	// Drop an optional language tag on the fence line.
	if newline := strings.Index(rest, "\n"); newline >= 0 {
		tag := strings.TrimSpace(rest[:newline])
		if tag == "" || isLanguageTag(tag) {
			rest = rest[newline+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return rest, true
	}
	return rest[:end], true
}

func isLanguageTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "sql", "duckdb", "postgresql", "postgres":
		return true
	default:
		return false
	}
}

func startsWithKeyword(value string) bool {
	upper := strings.ToUpper(value)
	for _, keyword := range leadingKeywords {
		if strings.HasPrefix(upper, keyword+" ") || strings.HasPrefix(upper, keyword+"\n") || upper == keyword {
			return true
		}
	}
	return false
}

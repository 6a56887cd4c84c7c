package sqlcheck

import (
	"strings"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNotReadOnly        Reason = "not_read_only"
	ReasonMultipleStatements Reason = "multiple_statements"
	ReasonForbiddenKeyword   Reason = "forbidden_keyword"
)

type Verdict struct {
	Accepted      bool
	Reason        Reason
	NormalizedSQL string
}

// readOnlyHeads are the keywords a statement may begin with after comment
// stripping.
var readOnlyHeads = map[string]struct{}{
	"SELECT": {},
	"WITH":   {},
}

// forbiddenKeywords are rejected as standalone tokens anywhere in the
// statement, including subqueries. This guards against modifications
// smuggled into an otherwise read-shaped statement.
var forbiddenKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"MERGE":    {},
	"REPLACE":  {},
	"GRANT":    {},
	"REVOKE":   {},
	"ATTACH":   {},
	"DETACH":   {},
	"COPY":     {},
	"EXPORT":   {},
	"IMPORT":   {},
	"PRAGMA":   {},
	"CALL":     {},
	"SET":      {},
	"INSTALL":  {},
	"LOAD":     {},
}

// Validate applies the safety rules in order, first match wins. It is fully
// deterministic and never trusts anything the generator claims about its own
// output: every candidate passes through the same static inspection.
func Validate(candidate string) Verdict {
	stripped := stripComments(candidate)
	trimmed := strings.TrimSpace(stripped)

	head := firstToken(trimmed)
	if _, ok := readOnlyHeads[head]; !ok {
		return Verdict{Reason: ReasonNotReadOnly}
	}

	if hasMultipleStatements(trimmed) {
		return Verdict{Reason: ReasonMultipleStatements}
	}

	for _, token := range tokenize(trimmed) {
		if _, ok := forbiddenKeywords[token]; ok {
			return Verdict{Reason: ReasonForbiddenKeyword}
		}
	}

	return Verdict{
		Accepted:      true,
		NormalizedSQL: normalize(trimmed),
	}
}

// stripComments removes -- line comments and /* */ block comments, leaving
// quoted literals and identifiers intact. Removed comments become a single
// space so token boundaries survive.
func stripComments(input string) string {
	var b strings.Builder
	runes := []rune(input)

	for i := 0; i < len(runes); {
		switch {
		case runes[i] == '\'':
			j := consumeQuoted(runes, i, '\'')
			b.WriteString(string(runes[i:j]))
			i = j
		case runes[i] == '"':
			j := consumeQuoted(runes, i, '"')
			b.WriteString(string(runes[i:j]))
			i = j
		case runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			b.WriteRune(' ')
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			if i+1 < len(runes) {
				i += 2
			} else {
				i = len(runes)
			}
			b.WriteRune(' ')
		default:
			b.WriteRune(runes[i])
			i++
		}
	}
	return b.String()
}

// consumeQuoted returns the index just past a quoted region starting at
// start. Doubled quote characters escape themselves.
func consumeQuoted(runes []rune, start int, quote rune) int {
	i := start + 1
	for i < len(runes) {
		if runes[i] == quote {
			if i+1 < len(runes) && runes[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(runes)
}

func firstToken(input string) string {
	tokens := tokenize(input)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// tokenize extracts upper-cased word tokens outside quoted regions.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	runes := []rune(input)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(current.String()))
			current.Reset()
		}
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			flush()
			i = consumeQuoted(runes, i, r)
		case isWordRune(r):
			current.WriteRune(r)
			i++
		default:
			flush()
			i++
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// hasMultipleStatements reports whether a statement terminator is followed
// by further non-whitespace content outside quoted regions.
func hasMultipleStatements(input string) bool {
	runes := []rune(input)
	for i := 0; i < len(runes); {
		switch runes[i] {
		case '\'', '"':
			i = consumeQuoted(runes, i, runes[i])
		case ';':
			rest := strings.TrimSpace(string(runes[i+1:]))
			if rest != "" {
				return true
			}
			i++
		default:
			i++
		}
	}
	return false
}

// normalize collapses whitespace runs outside quoted regions into single
// spaces and removes the trailing statement terminator.
func normalize(input string) string {
	var b strings.Builder
	runes := []rune(input)
	pendingSpace := false

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			j := consumeQuoted(runes, i, r)
			b.WriteString(string(runes[i:j]))
			i = j
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pendingSpace = true
			i++
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			i++
		}
	}

	normalized := strings.TrimSpace(b.String())
	for strings.HasSuffix(normalized, ";") {
		normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))
	}
	return normalized
}

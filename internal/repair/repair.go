// Package repair recovers schema structure from malformed or JSON-like text.
// Nothing here ever fails: the worst case is a string schema flagged as
// unstructured.
package repair

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/PentesterFlow/OpenScribe/internal/schema"
)

// DecodeLenient parses text as JSON, falling back to a syntactically
// repaired copy when the strict parse fails. The second return reports
// whether any interpretation succeeded.
func DecodeLenient(text string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}
	if err := json.Unmarshal([]byte(Repair(text)), &v); err == nil {
		return v, true
	}
	return nil, false
}

// RepairText returns a repaired copy of text if the repaired form parses as
// JSON, or the input unchanged otherwise.
func RepairText(text string) (string, bool) {
	if json.Valid([]byte(text)) {
		return text, true
	}
	repaired := Repair(text)
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}
	return text, false
}

// SchemaForText infers a schema from text of unknown quality: strict parse,
// then repaired parse, then the classification heuristics of GuessNode.
func SchemaForText(text string) *schema.Node {
	if v, ok := DecodeLenient(text); ok {
		return schema.Synthesize(v)
	}
	return GuessNode(text)
}

// Repair applies light syntactic fixes to JSON-like text: comments are
// stripped, single-quoted strings become double-quoted, bare object keys are
// quoted, and trailing commas are dropped. Spans inside double-quoted
// strings are left untouched.
func Repair(text string) string {
	return strings.TrimSpace(fixCommasAndKeys(stripCommentsAndQuotes(text)))
}

// stripCommentsAndQuotes removes // and /* */ comments and rewrites
// single-quoted strings as double-quoted ones, tracking double-quoted spans
// so their contents survive verbatim.
func stripCommentsAndQuotes(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch c {
		case '"':
			j := stringEnd(text, i)
			out.WriteString(text[i:j])
			i = j
		case '\'':
			out.WriteByte('"')
			i++
			for i < len(text) && text[i] != '\'' {
				if text[i] == '\\' && i+1 < len(text) {
					if text[i+1] == '\'' {
						out.WriteByte('\'')
					} else {
						out.WriteByte(text[i])
						out.WriteByte(text[i+1])
					}
					i += 2
					continue
				}
				if text[i] == '"' {
					out.WriteString(`\"`)
				} else {
					out.WriteByte(text[i])
				}
				i++
			}
			out.WriteByte('"')
			i++ // closing quote
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
				continue
			}
			if i+1 < len(text) && text[i+1] == '*' {
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					i = len(text)
					continue
				}
				i += end + 4
				continue
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String()
}

// fixCommasAndKeys quotes bare object keys and drops trailing commas,
// skipping double-quoted spans.
func fixCommasAndKeys(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"':
			j := stringEnd(text, i)
			out.WriteString(text[i:j])
			i = j
		case c == ',':
			j := skipSpace(text, i+1)
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				i++ // trailing comma
				continue
			}
			out.WriteByte(c)
			i++
		case isIdentStart(rune(c)):
			j := i
			for j < len(text) && isIdentPart(rune(text[j])) {
				j++
			}
			word := text[i:j]
			k := skipSpace(text, j)
			if k < len(text) && text[k] == ':' {
				out.WriteByte('"')
				out.WriteString(word)
				out.WriteByte('"')
			} else {
				out.WriteString(word)
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String()
}

// stringEnd returns the index just past the double-quoted string starting at
// i, honoring backslash escapes.
func stringEnd(text string, i int) int {
	j := i + 1
	for j < len(text) {
		if text[j] == '\\' {
			j += 2
			continue
		}
		if text[j] == '"' {
			return j + 1
		}
		j++
	}
	return j
}

func skipSpace(text string, i int) int {
	for i < len(text) && unicode.IsSpace(rune(text[i])) {
		i++
	}
	return i
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '-' || unicode.IsDigit(r)
}

package repair

import (
	"strings"
	"unicode"

	"github.com/PentesterFlow/OpenScribe/internal/schema"
)

// GuessNode classifies text that resisted repair. Delimiters decide between
// array-like, object-like, and unstructured; object-like text gets its
// top-level property names extracted by pattern matching, with each
// property's primitive kind guessed from the text after its colon.
func GuessNode(text string) *schema.Node {
	trimmed := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return &schema.Node{Kind: schema.Array, Items: schema.NewObject()}
	case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"):
		if props := guessProps(trimmed); len(props) > 0 {
			return &schema.Node{Kind: schema.Object, Props: props}
		}
		return schema.NewObject()
	default:
		return &schema.Node{Kind: schema.String, Unstructured: true}
	}
}

// guessProps walks object-like text at brace depth one, collecting
// name/colon pairs. Names may be bare, single-quoted, or double-quoted.
func guessProps(text string) []schema.Prop {
	var props []schema.Prop
	seen := make(map[string]bool)
	depth := 0

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '{' || c == '[':
			depth++
			i++
		case c == '}' || c == ']':
			depth--
			i++
		case depth == 1 && (c == '"' || c == '\''):
			name, j := quotedSpan(text, i)
			k := skipSpace(text, j)
			if k < len(text) && text[k] == ':' && name != "" && !seen[name] {
				seen[name] = true
				props = append(props, schema.Prop{
					Name:     name,
					Node:     guessValueKind(text[k+1:]),
					Required: true,
				})
			}
			i = j
		case depth == 1 && isIdentStart(rune(c)):
			j := i
			for j < len(text) && isIdentPart(rune(text[j])) {
				j++
			}
			name := text[i:j]
			k := skipSpace(text, j)
			if k < len(text) && text[k] == ':' && !seen[name] {
				seen[name] = true
				props = append(props, schema.Prop{
					Name:     name,
					Node:     guessValueKind(text[k+1:]),
					Required: true,
				})
			}
			i = j
		default:
			i++
		}
	}

	return props
}

// quotedSpan returns the unquoted content starting at i and the index just
// past the closing quote.
func quotedSpan(text string, i int) (string, int) {
	quote := text[i]
	j := i + 1
	var b strings.Builder
	for j < len(text) && text[j] != quote {
		if text[j] == '\\' && j+1 < len(text) {
			b.WriteByte(text[j+1])
			j += 2
			continue
		}
		b.WriteByte(text[j])
		j++
	}
	return b.String(), j + 1
}

// guessValueKind inspects the text following a colon and picks a primitive
// schema for it.
func guessValueKind(rest string) *schema.Node {
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if rest == "" {
		return &schema.Node{Kind: schema.String}
	}

	switch c := rest[0]; {
	case c == '{':
		return schema.NewObject()
	case c == '[':
		return &schema.Node{Kind: schema.Array, Items: schema.NewObject()}
	case c == '"' || c == '\'':
		return &schema.Node{Kind: schema.String}
	case c == '-' || (c >= '0' && c <= '9'):
		return guessNumberKind(rest)
	case strings.HasPrefix(rest, "true") || strings.HasPrefix(rest, "false"):
		return &schema.Node{Kind: schema.Boolean}
	case strings.HasPrefix(rest, "null"):
		return &schema.Node{Kind: schema.Null}
	default:
		return &schema.Node{Kind: schema.String}
	}
}

func guessNumberKind(rest string) *schema.Node {
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '.' {
			return &schema.Node{Kind: schema.Number}
		}
		if c != '-' && (c < '0' || c > '9') {
			break
		}
	}
	return &schema.Node{Kind: schema.Integer}
}

package input

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?$`)

// Parse splits stdin into one argument per non-blank line. It never fails:
// anything that is not recognisable structured data degrades to a string.
func Parse(stdin string) []Value {
	lines := strings.Split(strings.ReplaceAll(stdin, "\r\n", "\n"), "\n")
	out := make([]Value, 0, len(lines))
	for _, line := range lines {
		tok := strings.TrimSpace(line)
		if tok == "" {
			continue
		}
		out = append(out, ParseToken(tok))
	}
	return out
}

// ParseToken applies the value rules to a single token, in priority order:
// array literal, boolean/null keyword, number, JSON document, bare string.
func ParseToken(tok string) Value {
	tok = strings.TrimSpace(tok)

	if isArrayLiteral(tok) {
		if elems, ok := splitElements(tok[1 : len(tok)-1]); ok {
			items := make([]Value, 0, len(elems))
			for _, elem := range elems {
				items = append(items, ParseToken(elem))
			}
			return List(items...)
		}
	}

	switch strings.ToLower(tok) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null()
	}

	if numberPattern.MatchString(tok) {
		if v, ok := parseNumber(tok); ok {
			return v
		}
	}

	if v, ok := DecodeJSON(tok); ok {
		return v
	}

	return String(stripQuotes(tok))
}

// isArrayLiteral reports whether tok is one bracketed list whose opening
// bracket closes at the final character.
func isArrayLiteral(tok string) bool {
	if len(tok) < 2 || tok[0] != '[' || tok[len(tok)-1] != ']' {
		return false
	}
	end, ok := matchingClose(tok)
	return ok && end == len(tok)-1
}

// matchingClose finds the index closing the bracket at tok[0].
func matchingClose(tok string) (int, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

// splitElements splits the inside of a list literal on top-level commas.
// It fails on unbalanced brackets or an unterminated quote.
func splitElements(inner string) ([]string, bool) {
	if strings.TrimSpace(inner) == "" {
		return nil, true
	}
	var (
		elems []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, false
			}
		case ',':
			if depth == 0 {
				elems = append(elems, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 || quote != 0 {
		return nil, false
	}
	last := strings.TrimSpace(inner[start:])
	// A trailing comma does not introduce an element.
	if last != "" || len(elems) == 0 {
		elems = append(elems, last)
	}
	return elems, true
}

func parseNumber(tok string) (Value, bool) {
	if !strings.ContainsAny(tok, ".eE") {
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Int(i), true
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return Value{}, false
	}
	return Float(f), true
}

func stripQuotes(tok string) string {
	if len(tok) >= 2 {
		first, last := tok[0], tok[len(tok)-1]
		if (first == '"' || first == '\'') && first == last {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

// DecodeJSON decodes a complete JSON document into a Value.
func DecodeJSON(text string) (Value, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, false
	}
	return FromAny(raw)
}

// FromAny converts a value produced by encoding/json (with UseNumber) into a Value.
func FromAny(raw interface{}) (Value, bool) {
	switch v := raw.(type) {
	case nil:
		return Null(), true
	case bool:
		return Bool(v), true
	case json.Number:
		return parseNumber(v.String())
	case float64:
		return Float(v), true
	case string:
		return String(v), true
	case []interface{}:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			iv, ok := FromAny(item)
			if !ok {
				return Value{}, false
			}
			items = append(items, iv)
		}
		return List(items...), true
	case map[string]interface{}:
		fields := make([]Field, 0, len(v))
		for k, item := range v {
			iv, ok := FromAny(item)
			if !ok {
				return Value{}, false
			}
			fields = append(fields, Field{Key: k, Value: iv})
		}
		return Object(fields...), true
	default:
		return Value{}, false
	}
}

// Canonical re-serializes text when it is a JSON document. The boolean
// reports whether text was structured.
func Canonical(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	v, ok := DecodeJSON(trimmed)
	if !ok {
		return trimmed, false
	}
	return Serialize(v), true
}

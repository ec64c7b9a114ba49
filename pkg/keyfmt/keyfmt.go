// Package keyfmt normalizes JSON object keys at the system boundary.
// Persisted payloads use snake_case keys; everything that crosses the
// wire is camelCase. Both transforms are idempotent so a payload can be
// passed through the boundary any number of times without drift.
package keyfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// ToCamel converts a snake_case key to camelCase. Keys without
// underscores are returned unchanged.
func ToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}

	return b.String()
}

// ToSnake converts a camelCase key to snake_case. Keys without upper
// case letters are returned unchanged.
func ToSnake(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// CamelizeKeys walks a decoded JSON tree and converts every object key
// to camelCase. Values other than objects and arrays pass through.
func CamelizeKeys(v any) any {
	return convertKeys(v, ToCamel)
}

// SnakeizeKeys walks a decoded JSON tree and converts every object key
// to snake_case.
func SnakeizeKeys(v any) any {
	return convertKeys(v, ToSnake)
}

func convertKeys(v any, fn func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		converted := make(map[string]any, len(t))
		for k, val := range t {
			converted[fn(k)] = convertKeys(val, fn)
		}
		return converted
	case []any:
		converted := make([]any, len(t))
		for i, val := range t {
			converted[i] = convertKeys(val, fn)
		}
		return converted
	default:
		return v
	}
}

// CamelizeJSON re-encodes raw JSON with camelCase keys.
func CamelizeJSON(raw []byte) ([]byte, error) {
	return convertJSON(raw, ToCamel)
}

// SnakeizeJSON re-encodes raw JSON with snake_case keys.
func SnakeizeJSON(raw []byte) ([]byte, error) {
	return convertJSON(raw, ToSnake)
}

// convertJSON decodes numbers as json.Number so re-encoding keeps
// int64 timestamps exact.
func convertJSON(raw []byte, fn func(string) string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return json.Marshal(convertKeys(v, fn))
}

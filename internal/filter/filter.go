// Package filter evaluates jq expressions (via gojq) against JSON-shaped
// values. It backs both the --jq output option and ticket predicates.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(strings.TrimSpace(expr), `\!`, `!`)
}

// Query is a parsed jq expression.
type Query struct {
	expr  string
	query *gojq.Query
}

// Compile parses expression once for repeated evaluation.
func Compile(expression string) (*Query, error) {
	expression = NormalizeExpression(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty filter expression")
	}
	q, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return &Query{expr: expression, query: q}, nil
}

// String returns the normalized expression.
func (q *Query) String() string { return q.expr }

// Run evaluates the query and collects every result.
func (q *Query) Run(data any) ([]any, error) {
	return runQuery(q.query, data)
}

// Match reports whether the query's first result is truthy in jq terms
// (anything except false and null). No results counts as no match.
func (q *Query) Match(data any) (bool, error) {
	iter := q.query.Run(data)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, fmt.Errorf("filter error: %w", err)
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	default:
		return true, nil
	}
}

// MatchValue converts v to its JSON shape and matches it.
func (q *Query) MatchValue(v any) (bool, error) {
	data, err := toJSONValue(v)
	if err != nil {
		return false, err
	}
	return q.Match(data)
}

func runQuery(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func collapseQueryResults(results []any) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}

// Apply applies a jq expression to data. An empty expression returns data unchanged.
func Apply(data any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return data, nil
	}
	q, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	jsonData, err := toJSONValue(data)
	if err != nil {
		return nil, err
	}
	results, err := q.Run(jsonData)
	if err != nil {
		return nil, err
	}
	return collapseQueryResults(results), nil
}

// ApplyToJSON applies a filter to JSON bytes and returns pretty-printed JSON.
func ApplyToJSON(jsonData []byte, expression string) ([]byte, error) {
	if strings.TrimSpace(expression) == "" {
		return jsonData, nil
	}
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	result, err := Apply(data, expression)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}

// toJSONValue round-trips typed Go values (structs, typed slices) into the
// map/slice/float64 shapes gojq understands. Values already in that shape
// pass through untouched.
func toJSONValue(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, float64, int, map[string]any, []any:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode filter input: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode filter input: %w", err)
	}
	return out, nil
}

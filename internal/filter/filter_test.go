package filter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_EmptyExpression(t *testing.T) {
	data := map[string]any{"name": "test"}
	result, err := Apply(data, "")
	require.NoError(t, err)
	assert.Equal(t, "test", result.(map[string]any)["name"])
}

func TestApply_SelectField(t *testing.T) {
	data := map[string]any{"workflow": "new", "id": 123}
	result, err := Apply(data, ".workflow")
	require.NoError(t, err)
	assert.Equal(t, "new", result)
}

func TestApply_FilterArray(t *testing.T) {
	data := []any{
		map[string]any{"workflow": "new"},
		map[string]any{"workflow": "closed"},
	}
	result, err := Apply(data, `.[] | select(.workflow == "new")`)
	require.NoError(t, err)
	assert.Equal(t, "new", result.(map[string]any)["workflow"])
}

func TestApply_TypedValues(t *testing.T) {
	type row struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	}
	result, err := Apply([]row{{1, "a"}, {2, "b"}}, `map(.id)`)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, result)
}

func TestApply_InvalidExpression(t *testing.T) {
	_, err := Apply(map[string]any{}, "invalid[[[")
	assert.Error(t, err)
}

func TestApply_ShellEscapedNotEqual(t *testing.T) {
	data := []any{
		map[string]any{"workflow": "new"},
		map[string]any{"workflow": "won"},
	}
	result, err := Apply(data, `[.[] | select(.workflow \!= "new")] | length`)
	require.NoError(t, err)
	assert.Equal(t, 1, result)
}

func TestApplyToJSON(t *testing.T) {
	out, err := ApplyToJSON([]byte(`{"name": "test", "id": 123}`), ".name")
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, []byte(`"test"`)))

	_, err = ApplyToJSON([]byte(`{invalid}`), ".name")
	assert.Error(t, err)

	in := []byte(`{"a":1}`)
	out, err = ApplyToJSON(in, "")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCompileAndMatch(t *testing.T) {
	q, err := Compile(`.unseen_count > 2`)
	require.NoError(t, err)

	ok, err := q.Match(map[string]any{"unseen_count": float64(3)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Match(map[string]any{"unseen_count": float64(1)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchTruthiness(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{expr: `null`, want: false},
		{expr: `false`, want: false},
		{expr: `0`, want: true},
		{expr: `"x"`, want: true},
		{expr: `empty`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			q, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := q.Match(map[string]any{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchValueStruct(t *testing.T) {
	q, err := Compile(`.group_title == "sales"`)
	require.NoError(t, err)
	ok, err := q.MatchValue(struct {
		GroupTitle string `json:"group_title"`
	}{GroupTitle: "sales"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileEmpty(t *testing.T) {
	_, err := Compile("  ")
	assert.Error(t, err)
}

func TestMatchRuntimeError(t *testing.T) {
	q, err := Compile(`.a.b`)
	require.NoError(t, err)
	_, err = q.Match(map[string]any{"a": "string"})
	assert.Error(t, err)
}

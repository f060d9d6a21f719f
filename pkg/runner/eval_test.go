package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

func evalString(
	t *testing.T, src string, vars api.Args, tasks registry.TaskMap,
) any {
	t.Helper()
	ev := &evaluator{ctx: NewContext(vars), tasks: tasks}
	v, err := ev.evaluate(src)
	require.NoError(t, err, "evaluating %q", src)
	return v
}

func TestEvaluateLiterals(t *testing.T) {
	tests := []struct {
		expected any
		src      string
	}{
		{42, "42"},
		{-3, "-3"},
		{2.5, "2.5"},
		{true, "true"},
		{true, "True"},
		{false, "False"},
		{nil, "null"},
		{nil, "None"},
		{nil, ""},
		{"hello", `"hello"`},
		{"world", "'world'"},
		{[]any{1, 2, 3}, "[1, 2, 3]"},
		{[]any{1, 2}, "(1, 2)"},
		{map[string]any{"a": 1}, `{"a": 1}`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, nil, nil))
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		expected any
		src      string
	}{
		{7, "1 + 2 * 3"},
		{9, "(1 + 2) * 3"},
		{2.5, "10 / 4"},
		{3, "7 // 2"},
		{-4, "-7 // 2"},
		{1, "7 % 3"},
		{2, "-7 % 3"},
		{512, "2 ** 3 ** 2"},
		{-8, "-2 ** 3"},
		{"ab" + "cd", "'ab' + 'cd'"},
		{"ababab", "'ab' * 3"},
		{[]any{1, 2, 3, 4}, "[1, 2] + [3, 4]"},
		{6, "1 << 2 | 2"},
		{4, "12 & 6 ^ 0"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, nil, nil))
	}
}

func TestEvaluateComparisons(t *testing.T) {
	tests := []struct {
		expected any
		src      string
	}{
		{true, "1 < 2"},
		{false, "2 <= 1"},
		{true, "1 == 1.0"},
		{true, "2 != 3"},
		{true, "'abc' < 'abd'"},
		{true, "2 in [1, 2, 3]"},
		{true, "'bc' in 'abcd'"},
		{false, "'a' not in 'abc'"},
		{true, "'x' not in [1, 2]"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, nil, nil))
	}
}

// Boolean operators short-circuit and yield the deciding operand, not a
// coerced boolean
func TestEvaluateBooleanOperators(t *testing.T) {
	tests := []struct {
		expected any
		src      string
	}{
		{"x", "0 or 'x'"},
		{1, "1 or missing_var"},
		{"", "'' and missing_var"},
		{2, "1 and 2"},
		{true, "not 0"},
		{false, "not [1]"},
		{true, "not 1 == 2"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, nil, nil))
	}
}

func TestEvaluateVariables(t *testing.T) {
	vars := api.Args{
		"count": 3,
		"items": []any{"a", "b", "c"},
		"user":  map[string]any{"name": "ada"},
	}
	tests := []struct {
		expected any
		src      string
	}{
		{3, "count"},
		{4, "count + 1"},
		{"c", "items[-1]"},
		{"b", "items[1]"},
		{"ada", "user['name']"},
		{3, "len(items)"},
		{true, "'a' in items"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, vars, nil))
	}
}

// Names that fail to parse as expressions fall back to a direct variable
// lookup, so bindings with spaces in their names remain reachable
func TestEvaluateRawLookupFallback(t *testing.T) {
	vars := api.Args{"first name": "grace"}
	assert.Equal(t, "grace", evalString(t, "first name", vars, nil))
}

func TestEvaluateUndefinedName(t *testing.T) {
	ev := &evaluator{ctx: NewContext(nil)}
	_, err := ev.evaluate("missing_var")
	assert.ErrorIs(t, err, ErrCantEvaluate)
}

func TestEvaluateDivisionByZero(t *testing.T) {
	ev := &evaluator{ctx: NewContext(nil)}
	_, err := ev.evaluate("1 / 0")
	assert.ErrorIs(t, err, ErrCantEvaluate)
}

func TestEvaluateBuiltins(t *testing.T) {
	tests := []struct {
		expected any
		src      string
	}{
		{3, "len('abc')"},
		{[]any{0, 1, 2}, "range(3)"},
		{[]any{2, 4, 6}, "range(2, 8, 2)"},
		{[]any{1, 2, 3}, "sorted([3, 1, 2])"},
		{[]any{3, 2, 1}, "reversed([1, 2, 3])"},
		{5, "max(1, 5, 2)"},
		{1, "min([3, 1, 2])"},
		{6, "sum([1, 2, 3])"},
		{"42", "str(42)"},
		{42, "int('42')"},
		{2.5, "float('2.5')"},
		{3, "round(2.7)"},
		{3.14, "round(3.14159, 2)"},
		{true, "all([1, 2, 3])"},
		{false, "any([0, '', None])"},
		{[]any{[]any{0, "a"}, []any{1, "b"}}, "enumerate(['a', 'b'])"},
		{[]any{[]any{1, "x"}, []any{2, "y"}}, "zip([1, 2, 3], ['x', 'y'])"},
		{[]any{1, 2, 3}, "set([1, 2, 1, 3, 2])"},
		{1024, "pow(2, 10)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, evalString(t, tc.src, nil, nil))
	}
}

func TestEvaluateHigherOrderBuiltins(t *testing.T) {
	assert.Equal(t, []any{"1", "2"},
		evalString(t, "map(str, [1, 2])", nil, nil))
	assert.Equal(t, []any{1, 2},
		evalString(t, "filter(bool, [0, 1, '', 2])", nil, nil))
}

// Registered tasks are callable from expressions with positional arguments
// mapped onto their declared parameter order
func TestEvaluateTaskCall(t *testing.T) {
	tasks := registry.TaskMap{
		"combine": {
			Fn: func(args api.Args) (any, error) {
				left := args.GetString("left", "")
				right := args.GetString("right", "")
				return left + right, nil
			},
			Params: []string{"left", "right"},
		},
	}
	assert.Equal(t, "ab", evalString(t, "combine('a', 'b')", nil, tasks))

	ev := &evaluator{ctx: NewContext(nil), tasks: tasks}
	_, err := ev.evaluate("combine('a', 'b', 'c')")
	assert.ErrorIs(t, err, ErrCantEvaluate)
}

func TestEvaluateNotCallable(t *testing.T) {
	ev := &evaluator{ctx: NewContext(api.Args{"n": 5})}
	_, err := ev.evaluate("n(1)")
	assert.ErrorIs(t, err, ErrCantEvaluate)
}

func TestEvaluateInputLiteralPassthrough(t *testing.T) {
	ev := &evaluator{ctx: NewContext(nil)}

	v, err := ev.evaluateInput(float64(5))
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ev.evaluateInput([]any{float64(1), 2.5})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2.5}, v)
}

package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdate(t *testing.T) {
	tests := []struct {
		current  any
		value    any
		expected any
		operator string
	}{
		{10, 3, 13, "+="},
		{10, 3, 7, "-="},
		{10, 3, 30, "*="},
		{10, 4, 2.5, "/="},
		{10, 3, 3, "//="},
		{10, 3, 1, "%="},
		{2, 10, 1024, "**="},
		{12, 10, 8, "&="},
		{12, 3, 15, "|="},
		{12, 10, 6, "^="},
		{1, 4, 16, "<<="},
		{16, 2, 4, ">>="},
		{"ab", "cd", "abcd", "+="},
		{[]any{1}, []any{2}, []any{1, 2}, "+="},
	}
	for _, tc := range tests {
		v, err := ApplyUpdate(tc.current, tc.operator, tc.value)
		require.NoError(t, err, "%v %s %v", tc.current, tc.operator, tc.value)
		assert.Equal(t, tc.expected, v)
	}
}

func TestApplyUpdateUnsupportedOperator(t *testing.T) {
	_, err := ApplyUpdate(1, "=", 2)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = ApplyUpdate(1, "??", 2)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestApplyUpdateOperandErrors(t *testing.T) {
	_, err := ApplyUpdate(1, "/=", 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = ApplyUpdate("abc", "-=", "c")
	assert.ErrorIs(t, err, ErrBadOperand)
}

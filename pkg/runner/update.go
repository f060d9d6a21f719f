package runner

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOperator is returned when an update node names an operator
// outside the fixed compound-assignment set
var ErrUnsupportedOperator = errors.New("unsupported operator")

// ApplyUpdate applies a compound-assignment operator to an existing value
// and returns the result. It is a pure function over the twelve supported
// operators; any other operator string fails
func ApplyUpdate(current any, operator string, value any) (any, error) {
	switch operator {
	case "+=":
		return add(current, value)
	case "-=":
		return sub(current, value)
	case "*=":
		return mul(current, value)
	case "/=":
		return div(current, value)
	case "//=":
		return floorDiv(current, value)
	case "%=":
		return mod(current, value)
	case "**=":
		return pow(current, value)
	case "&=":
		return bitwise("&", current, value)
	case "|=":
		return bitwise("|", current, value)
	case "^=":
		return bitwise("^", current, value)
	case "<<=":
		return bitwise("<<", current, value)
	case ">>=":
		return bitwise(">>", current, value)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, operator)
}

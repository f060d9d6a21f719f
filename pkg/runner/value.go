package runner

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Runtime values are the plain decoded-JSON shapes: nil, bool, int, float64,
// string, []any, and map[string]any. Callables appear only through the
// builtin allow-list and the task map

var (
	ErrBadOperand     = errors.New("unsupported operand type")
	ErrDivisionByZero = errors.New("division by zero")
	ErrNotIterable    = errors.New("value is not iterable")
	ErrNotIndexable   = errors.New("value is not indexable")
	ErrIndexRange     = errors.New("index out of range")
	ErrBadIndex       = errors.New("invalid index")
	ErrNoLength       = errors.New("value has no length")
	ErrNotComparable  = errors.New("values are not comparable")
)

func intVal(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func numVal(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

// truthy follows the conventions of the plan language: zero, empty strings,
// empty containers, and nil are false
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func add(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		return x + y, nil
	}
	if x, ok := numVal(a); ok {
		if y, ok := numVal(b); ok {
			return x + y, nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	}
	if x, ok := a.([]any); ok {
		if y, ok := b.([]any); ok {
			res := make([]any, 0, len(x)+len(y))
			res = append(res, x...)
			return append(res, y...), nil
		}
	}
	return nil, fmt.Errorf("%w: %T + %T", ErrBadOperand, a, b)
}

func sub(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		return x - y, nil
	}
	if x, ok := numVal(a); ok {
		if y, ok := numVal(b); ok {
			return x - y, nil
		}
	}
	return nil, fmt.Errorf("%w: %T - %T", ErrBadOperand, a, b)
}

func mul(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		return x * y, nil
	}
	if x, ok := numVal(a); ok {
		if y, ok := numVal(b); ok {
			return x * y, nil
		}
	}
	if s, ok := a.(string); ok {
		if n, ok := intVal(b); ok && n >= 0 {
			return strings.Repeat(s, n), nil
		}
	}
	if xs, ok := a.([]any); ok {
		if n, ok := intVal(b); ok && n >= 0 {
			res := make([]any, 0, len(xs)*n)
			for range n {
				res = append(res, xs...)
			}
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %T * %T", ErrBadOperand, a, b)
}

func div(a, b any) (any, error) {
	x, ok := numVal(a)
	if !ok {
		return nil, fmt.Errorf("%w: %T / %T", ErrBadOperand, a, b)
	}
	y, ok := numVal(b)
	if !ok {
		return nil, fmt.Errorf("%w: %T / %T", ErrBadOperand, a, b)
	}
	if y == 0 {
		return nil, ErrDivisionByZero
	}
	return x / y, nil
}

func floorDiv(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		if y == 0 {
			return nil, ErrDivisionByZero
		}
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		return q, nil
	}
	res, err := div(a, b)
	if err != nil {
		return nil, err
	}
	return math.Floor(res.(float64)), nil
}

func mod(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		if y == 0 {
			return nil, ErrDivisionByZero
		}
		m := x % y
		if m != 0 && ((m < 0) != (y < 0)) {
			m += y
		}
		return m, nil
	}
	x, ok := numVal(a)
	if !ok {
		return nil, fmt.Errorf("%w: %T %% %T", ErrBadOperand, a, b)
	}
	y, ok := numVal(b)
	if !ok {
		return nil, fmt.Errorf("%w: %T %% %T", ErrBadOperand, a, b)
	}
	if y == 0 {
		return nil, ErrDivisionByZero
	}
	m := math.Mod(x, y)
	if m != 0 && ((m < 0) != (y < 0)) {
		m += y
	}
	return m, nil
}

func pow(a, b any) (any, error) {
	if isInt(a) && isInt(b) {
		x, _ := intVal(a)
		y, _ := intVal(b)
		if y >= 0 {
			res := 1
			for range y {
				res *= x
			}
			return res, nil
		}
	}
	x, ok := numVal(a)
	if !ok {
		return nil, fmt.Errorf("%w: %T ** %T", ErrBadOperand, a, b)
	}
	y, ok := numVal(b)
	if !ok {
		return nil, fmt.Errorf("%w: %T ** %T", ErrBadOperand, a, b)
	}
	return math.Pow(x, y), nil
}

func bitwise(op string, a, b any) (any, error) {
	x, okX := intVal(a)
	y, okY := intVal(b)
	if !okX || !okY {
		return nil, fmt.Errorf("%w: %T %s %T", ErrBadOperand, a, op, b)
	}
	switch op {
	case "&":
		return x & y, nil
	case "|":
		return x | y, nil
	case "^":
		return x ^ y, nil
	case "<<":
		if y < 0 {
			return nil, fmt.Errorf("%w: negative shift", ErrBadOperand)
		}
		return x << y, nil
	case ">>":
		if y < 0 {
			return nil, fmt.Errorf("%w: negative shift", ErrBadOperand)
		}
		return x >> y, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBadOperand, op)
}

func negate(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return -n, nil
	case int64:
		return -int(n), nil
	case float64:
		return -n, nil
	}
	return nil, fmt.Errorf("%w: -%T", ErrBadOperand, v)
}

// equalValues compares with numeric coercion, then structurally
func equalValues(a, b any) bool {
	if x, ok := numVal(a); ok {
		if y, ok := numVal(b); ok {
			return x == y
		}
		return false
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equalValues(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !equalValues(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

// compareValues orders two numbers or two strings
func compareValues(a, b any) (int, error) {
	if x, ok := numVal(a); ok {
		if y, ok := numVal(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrNotComparable, a, b)
}

// contains implements the "in" operator over strings, lists, and maps
func contains(item, container any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("%w: %T in string", ErrBadOperand, item)
		}
		return strings.Contains(c, s), nil
	case []any:
		return slices.ContainsFunc(c, func(v any) bool {
			return equalValues(item, v)
		}), nil
	case map[string]any:
		key, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := c[key]
		return found, nil
	}
	return false, fmt.Errorf("%w: in %T", ErrBadOperand, container)
}

// indexValue subscripts a list, map, or string. Negative list and string
// indexes count from the end
func indexValue(container, idx any) (any, error) {
	switch c := container.(type) {
	case []any:
		i, ok := intVal(idx)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBadIndex, idx)
		}
		if i < 0 {
			i += len(c)
		}
		if i < 0 || i >= len(c) {
			return nil, fmt.Errorf("%w: %v", ErrIndexRange, idx)
		}
		return c[i], nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBadIndex, idx)
		}
		v, found := c[key]
		if !found {
			return nil, fmt.Errorf("%w: key %q", ErrIndexRange, key)
		}
		return v, nil
	case string:
		i, ok := intVal(idx)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBadIndex, idx)
		}
		runes := []rune(c)
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return nil, fmt.Errorf("%w: %v", ErrIndexRange, idx)
		}
		return string(runes[i]), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotIndexable, container)
}

// lengthOf returns the element count of a string, list, or map
func lengthOf(v any) (int, error) {
	switch c := v.(type) {
	case string:
		return len([]rune(c)), nil
	case []any:
		return len(c), nil
	case map[string]any:
		return len(c), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrNoLength, v)
}

// iterate flattens an iterable into an element slice. Maps iterate over
// their keys in sorted order so runs stay deterministic
func iterate(v any) ([]any, error) {
	switch c := v.(type) {
	case []any:
		return c, nil
	case string:
		runes := []rune(c)
		res := make([]any, len(runes))
		for i, r := range runes {
			res[i] = string(r)
		}
		return res, nil
	case map[string]any:
		keys := sortedKeys(c)
		res := make([]any, len(keys))
		for i, k := range keys {
			res[i] = k
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotIterable, v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

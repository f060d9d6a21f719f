package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

type (
	// callable is a function value reachable from the expression namespace:
	// a builtin from the allow-list or a registered task
	callable struct {
		call func([]any) (any, error)
		name string
	}

	builtinFunc func([]any) (any, error)
)

var (
	ErrArity       = errors.New("wrong number of arguments")
	ErrNotCallable = errors.New("value is not callable")
	ErrBadArgument = errors.New("invalid argument")
)

// builtins is the closed allow-list of functions reachable from plan
// expressions. Nothing outside this set and the task map is callable
var builtins = map[string]builtinFunc{
	"abs":       builtinAbs,
	"all":       builtinAll,
	"any":       builtinAny,
	"bool":      builtinBool,
	"dict":      builtinDict,
	"enumerate": builtinEnumerate,
	"filter":    builtinFilter,
	"float":     builtinFloat,
	"int":       builtinInt,
	"len":       builtinLen,
	"list":      builtinList,
	"map":       builtinMap,
	"max":       builtinMax,
	"min":       builtinMin,
	"pow":       builtinPow,
	"range":     builtinRange,
	"reversed":  builtinReversed,
	"round":     builtinRound,
	"set":       builtinSet,
	"sorted":    builtinSorted,
	"str":       builtinStr,
	"sum":       builtinSum,
	"tuple":     builtinList,
	"zip":       builtinZip,
}

func arity(name string, args []any, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		return fmt.Errorf("%w: %s takes %d to %d arguments, got %d",
			ErrArity, name, minArgs, maxArgs, len(args))
	}
	return nil
}

func builtinAbs(args []any) (any, error) {
	if err := arity("abs", args, 1, 1); err != nil {
		return nil, err
	}
	switch n := args[0].(type) {
	case int:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case float64:
		return math.Abs(n), nil
	}
	return nil, fmt.Errorf("%w: abs of %T", ErrBadArgument, args[0])
}

func builtinAll(args []any) (any, error) {
	if err := arity("all", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range elems {
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func builtinAny(args []any) (any, error) {
	if err := arity("any", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range elems {
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func builtinBool(args []any) (any, error) {
	if err := arity("bool", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return truthy(args[0]), nil
}

func builtinDict(args []any) (any, error) {
	if err := arity("dict", args, 0, 1); err != nil {
		return nil, err
	}
	res := map[string]any{}
	if len(args) == 1 {
		m, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: dict of %T", ErrBadArgument, args[0])
		}
		for k, v := range m {
			res[k] = v
		}
	}
	return res, nil
}

func builtinEnumerate(args []any) (any, error) {
	if err := arity("enumerate", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	res := make([]any, len(elems))
	for i, v := range elems {
		res[i] = []any{i, v}
	}
	return res, nil
}

func builtinFilter(args []any) (any, error) {
	if err := arity("filter", args, 2, 2); err != nil {
		return nil, err
	}
	fn, ok := args[0].(callable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, args[0])
	}
	elems, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	var res []any
	for _, v := range elems {
		keep, err := fn.call([]any{v})
		if err != nil {
			return nil, err
		}
		if truthy(keep) {
			res = append(res, v)
		}
	}
	if res == nil {
		res = []any{}
	}
	return res, nil
}

func builtinFloat(args []any) (any, error) {
	if err := arity("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if n, ok := numVal(args[0]); ok {
		return n, nil
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: float of %q", ErrBadArgument, s)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: float of %T", ErrBadArgument, args[0])
}

func builtinInt(args []any) (any, error) {
	if err := arity("int", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0, nil
	}
	switch v := args[0].(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int:
		return v, nil
	case float64:
		return int(math.Trunc(v)), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: int of %q", ErrBadArgument, v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: int of %T", ErrBadArgument, args[0])
}

func builtinLen(args []any) (any, error) {
	if err := arity("len", args, 1, 1); err != nil {
		return nil, err
	}
	return lengthOf(args[0])
}

func builtinList(args []any) (any, error) {
	if err := arity("list", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return []any{}, nil
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	res := make([]any, len(elems))
	copy(res, elems)
	return res, nil
}

func builtinMap(args []any) (any, error) {
	if err := arity("map", args, 2, 2); err != nil {
		return nil, err
	}
	fn, ok := args[0].(callable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, args[0])
	}
	elems, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	res := make([]any, len(elems))
	for i, v := range elems {
		mapped, err := fn.call([]any{v})
		if err != nil {
			return nil, err
		}
		res[i] = mapped
	}
	return res, nil
}

func builtinMax(args []any) (any, error) {
	return extreme("max", args, 1)
}

func builtinMin(args []any) (any, error) {
	return extreme("min", args, -1)
}

// extreme implements max and min over either a single iterable or a
// variadic argument list
func extreme(name string, args []any, sign int) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: %s of no arguments", ErrArity, name)
	}
	elems := args
	if len(args) == 1 {
		var err error
		if elems, err = iterate(args[0]); err != nil {
			return nil, err
		}
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s of empty sequence", ErrBadArgument, name)
	}
	best := elems[0]
	for _, v := range elems[1:] {
		cmp, err := compareValues(v, best)
		if err != nil {
			return nil, err
		}
		if cmp*sign > 0 {
			best = v
		}
	}
	return best, nil
}

func builtinPow(args []any) (any, error) {
	if err := arity("pow", args, 2, 2); err != nil {
		return nil, err
	}
	return pow(args[0], args[1])
}

func builtinRange(args []any) (any, error) {
	if err := arity("range", args, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int, len(args))
	for i, a := range args {
		n, ok := intVal(a)
		if !ok {
			return nil, fmt.Errorf("%w: range of %T", ErrBadArgument, a)
		}
		bounds[i] = n
	}

	start, stop, step := 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	}
	if step == 0 {
		return nil, fmt.Errorf("%w: range step cannot be zero", ErrBadArgument)
	}

	var res []any
	if step > 0 {
		for i := start; i < stop; i += step {
			res = append(res, i)
		}
	} else {
		for i := start; i > stop; i += step {
			res = append(res, i)
		}
	}
	if res == nil {
		res = []any{}
	}
	return res, nil
}

func builtinReversed(args []any) (any, error) {
	if err := arity("reversed", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	res := make([]any, len(elems))
	for i, v := range elems {
		res[len(elems)-1-i] = v
	}
	return res, nil
}

func builtinRound(args []any) (any, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return nil, err
	}
	n, ok := numVal(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: round of %T", ErrBadArgument, args[0])
	}
	if len(args) == 1 {
		return int(math.Round(n)), nil
	}
	digits, ok := intVal(args[1])
	if !ok {
		return nil, fmt.Errorf("%w: round digits %T", ErrBadArgument, args[1])
	}
	shift := math.Pow(10, float64(digits))
	return math.Round(n*shift) / shift, nil
}

// builtinSet deduplicates while preserving first-occurrence order, keeping
// results deterministic
func builtinSet(args []any) (any, error) {
	if err := arity("set", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return []any{}, nil
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	res := []any{}
	for _, v := range elems {
		if !slices.ContainsFunc(res, func(existing any) bool {
			return equalValues(existing, v)
		}) {
			res = append(res, v)
		}
	}
	return res, nil
}

func builtinSorted(args []any) (any, error) {
	if err := arity("sorted", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	res := make([]any, len(elems))
	copy(res, elems)
	var sortErr error
	slices.SortStableFunc(res, func(a, b any) int {
		cmp, err := compareValues(a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return cmp
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return res, nil
}

func builtinStr(args []any) (any, error) {
	if err := arity("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return formatValue(args[0]), nil
}

func builtinSum(args []any) (any, error) {
	if err := arity("sum", args, 1, 1); err != nil {
		return nil, err
	}
	elems, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	var total any = 0
	for _, v := range elems {
		if total, err = add(total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func builtinZip(args []any) (any, error) {
	if len(args) == 0 {
		return []any{}, nil
	}
	seqs := make([][]any, len(args))
	shortest := -1
	for i, a := range args {
		elems, err := iterate(a)
		if err != nil {
			return nil, err
		}
		seqs[i] = elems
		if shortest < 0 || len(elems) < shortest {
			shortest = len(elems)
		}
	}
	res := make([]any, shortest)
	for i := range shortest {
		row := make([]any, len(seqs))
		for j, seq := range seqs {
			row[j] = seq[i]
		}
		res[i] = row
	}
	return res, nil
}

// formatValue renders a value as a plain string: strings pass through,
// numbers and booleans use their canonical form, containers use JSON
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

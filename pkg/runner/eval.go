package runner

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

// evaluator resolves expressions against one execution's variable context,
// the builtin allow-list, and the resolved task map. No other names are
// reachable from expressions; this is the engine's sole security boundary
type evaluator struct {
	ctx   *Context
	tasks registry.TaskMap
}

var (
	ErrCantEvaluate   = errors.New("can't evaluate")
	ErrNameNotDefined = errors.New("name is not defined")
	ErrTooManyArgs    = errors.New("too many positional arguments")
)

// evaluateInput handles a raw node input: string inputs are treated as
// expressions, anything else is a literal carried through as-is
func (e *evaluator) evaluateInput(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		return e.evaluate(s)
	}
	return normalizeNumbers(raw), nil
}

// evaluate resolves a textual expression to a value. An empty expression
// yields nil. The literal fast path is attempted first with no name
// resolution and no side effects; failing that, the text is evaluated as an
// expression; failing that, the raw text is tried as a direct variable
// lookup before the evaluation error is reported
func (e *evaluator) evaluate(input string) (any, error) {
	if input == "" {
		return nil, nil
	}
	if gjson.Valid(input) {
		return normalizeNumbers(gjson.Parse(input).Value()), nil
	}

	ast, err := parseExpr(input)
	if err == nil {
		var value any
		if value, err = e.eval(ast); err == nil {
			return value, nil
		}
	}

	if v, ok := e.ctx.Get(input); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCantEvaluate, input)
}

func (e *evaluator) eval(node expr) (any, error) {
	switch n := node.(type) {
	case litExpr:
		return n.value, nil
	case nameExpr:
		return e.resolveName(n.name)
	case listExpr:
		return e.evalList(n)
	case mapExpr:
		return e.evalMap(n)
	case unaryExpr:
		return e.evalUnary(n)
	case boolExpr:
		return e.evalBool(n)
	case binaryExpr:
		return e.evalBinary(n)
	case callExpr:
		return e.evalCall(n)
	case indexExpr:
		return e.evalIndex(n)
	}
	return nil, fmt.Errorf("%w: unknown expression form", ErrCantEvaluate)
}

// resolveName looks a bare name up in the variable context, then the
// builtin allow-list, then the task map
func (e *evaluator) resolveName(name string) (any, error) {
	if v, ok := e.ctx.Get(name); ok {
		return v, nil
	}
	if fn, ok := builtins[name]; ok {
		return callable{name: name, call: fn}, nil
	}
	if task, ok := e.tasks[name]; ok {
		return taskCallable(name, task), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNameNotDefined, name)
}

func (e *evaluator) evalList(n listExpr) (any, error) {
	res := make([]any, len(n.elems))
	for i, elem := range n.elems {
		v, err := e.eval(elem)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func (e *evaluator) evalMap(n mapExpr) (any, error) {
	res := make(map[string]any, len(n.keys))
	for i := range n.keys {
		key, err := e.eval(n.keys[i])
		if err != nil {
			return nil, err
		}
		value, err := e.eval(n.values[i])
		if err != nil {
			return nil, err
		}
		res[formatValue(key)] = value
	}
	return res, nil
}

func (e *evaluator) evalUnary(n unaryExpr) (any, error) {
	operand, err := e.eval(n.operand)
	if err != nil {
		return nil, err
	}
	if n.op == "not" {
		return !truthy(operand), nil
	}
	return negate(operand)
}

// evalBool short-circuits and returns the deciding operand's value
func (e *evaluator) evalBool(n boolExpr) (any, error) {
	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	if n.op == "and" {
		if !truthy(left) {
			return left, nil
		}
		return e.eval(n.right)
	}
	if truthy(left) {
		return left, nil
	}
	return e.eval(n.right)
}

func (e *evaluator) evalBinary(n binaryExpr) (any, error) {
	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+":
		return add(left, right)
	case "-":
		return sub(left, right)
	case "*":
		return mul(left, right)
	case "/":
		return div(left, right)
	case "//":
		return floorDiv(left, right)
	case "%":
		return mod(left, right)
	case "**":
		return pow(left, right)
	case "&", "|", "^", "<<", ">>":
		return bitwise(n.op, left, right)
	case "==":
		return equalValues(left, right), nil
	case "!=":
		return !equalValues(left, right), nil
	case "<", "<=", ">", ">=":
		cmp, err := compareValues(left, right)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "in":
		return contains(left, right)
	case "not in":
		found, err := contains(left, right)
		if err != nil {
			return nil, err
		}
		return !found, nil
	}
	return nil, fmt.Errorf("%w: operator %s", ErrCantEvaluate, n.op)
}

func (e *evaluator) evalCall(n callExpr) (any, error) {
	fn, err := e.eval(n.fn)
	if err != nil {
		return nil, err
	}
	target, ok := fn.(callable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, fn)
	}
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		if args[i], err = e.eval(arg); err != nil {
			return nil, err
		}
	}
	return target.call(args)
}

func (e *evaluator) evalIndex(n indexExpr) (any, error) {
	container, err := e.eval(n.container)
	if err != nil {
		return nil, err
	}
	idx, err := e.eval(n.index)
	if err != nil {
		return nil, err
	}
	return indexValue(container, idx)
}

// taskCallable exposes a registered task to the expression namespace,
// mapping positional arguments onto the task's declared parameter names
func taskCallable(name string, task registry.Task) callable {
	return callable{
		name: name,
		call: func(args []any) (any, error) {
			if len(args) > len(task.Params) {
				return nil, fmt.Errorf("%w: %s takes %d, got %d",
					ErrTooManyArgs, name, len(task.Params), len(args))
			}
			kwargs := make(api.Args, len(args))
			for i, arg := range args {
				kwargs[task.Params[i]] = arg
			}
			return task.Fn(kwargs)
		},
	}
}

// normalizeNumbers rewrites integral JSON numbers as ints so literal values
// round-trip the way plans expect
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return int(t)
		}
		return t
	case []any:
		for i, elem := range t {
			t[i] = normalizeNumbers(elem)
		}
		return t
	case map[string]any:
		for k, elem := range t {
			t[k] = normalizeNumbers(elem)
		}
		return t
	}
	return v
}

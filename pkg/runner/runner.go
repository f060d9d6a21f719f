// Package runner implements the plan execution engine: a single-threaded,
// depth-first interpreter over a sub-plan's node sequence. It maintains one
// Context per run, resolves task invocations against an immutable task-map
// snapshot, and emits a strictly ordered stream of lifecycle events around
// every node it touches
package runner

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

// Runner executes sub-plans against a fixed task-map snapshot. A Runner is
// safe to share across concurrent runs; each run's Context is not
type Runner struct {
	tasks registry.TaskMap
}

var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrVarNotDefined    = errors.New("variable not defined for update")
	ErrAppendTarget     = errors.New("append target is not a list")
)

// RaisedError carries the literal exception text of a _raise node
type RaisedError struct {
	Text string
}

func (e *RaisedError) Error() string {
	return e.Text
}

// New creates a Runner bound to the given task-map snapshot
func New(tasks registry.TaskMap) *Runner {
	if tasks == nil {
		tasks = registry.TaskMap{}
	}
	return &Runner{tasks: tasks}
}

// RunSubPlan walks the sub-plan's node sequence to completion, a recorded
// return, or a failure. The context is mutated in place and remains
// available to the caller afterwards for displayed outputs. Failures abort
// the remainder of the sub-plan and are reported to the caller after an
// error event has been emitted for the offending node
func (r *Runner) RunSubPlan(
	ctx *Context, sub *api.SubPlan, pub publish.Publisher,
) (any, error) {
	if pub == nil {
		pub = publish.Discard
	}
	ev := &evaluator{ctx: ctx, tasks: r.tasks}
	if err := r.executeNodes(sub.ID, sub.Nodes, ev, pub); err != nil {
		return nil, err
	}
	if value, ok := ctx.ReturnValue(); ok {
		return value, nil
	}
	return nil, nil
}

// executeNodes walks one node sequence in list order. Contiguous
// conditional nodes are collected into a single chain before evaluation. A
// recorded return stops the walk of the current sequence immediately
func (r *Runner) executeNodes(
	id api.SubPlanID, nodes []api.Node, ev *evaluator, pub publish.Publisher,
) error {
	idx := 0
	for idx < len(nodes) {
		if nodes[idx].IsConditional() {
			start := idx
			for idx < len(nodes) && nodes[idx].IsConditional() {
				idx++
			}
			if err := r.executeIfChain(
				id, nodes[start:idx], ev, pub,
			); err != nil {
				return err
			}
		} else {
			if err := r.executeNode(id, &nodes[idx], ev, pub); err != nil {
				return err
			}
			idx++
		}
		if ev.ctx.returning() {
			return nil
		}
	}
	return nil
}

// executeIfChain evaluates each condition in order and executes at most one
// branch's children
func (r *Runner) executeIfChain(
	id api.SubPlanID, chain []api.Node, ev *evaluator, pub publish.Publisher,
) error {
	for i := range chain {
		node := &chain[i]
		switch node.Kind() {
		case api.KindIf, api.KindElif:
			cond, err := ev.evaluateInput(node.Inputs[api.InputCondition])
			if err != nil {
				return err
			}
			if truthy(cond) {
				return r.executeChildren(id, node, ev, pub)
			}
		case api.KindElse:
			return r.executeChildren(id, node, ev, pub)
		}
	}
	return nil
}

func (r *Runner) executeChildren(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	children, err := node.Children()
	if err != nil {
		return err
	}
	return r.executeNodes(id, children, ev, pub)
}

// executeNode dispatches one non-conditional node, bracketing it with a
// node_start event and exactly one of node_finish or error. Failures are
// reported against the node and re-raised to unwind the whole run
func (r *Runner) executeNode(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) (err error) {
	pub.Publish(id, api.EventNodeStart, node, nil)
	defer func() {
		if err != nil {
			pub.Publish(id, api.EventError, node, map[string]any{
				"error": err.Error(),
			})
		}
	}()

	switch node.Kind() {
	case api.KindAssign:
		return r.execAssign(id, node, ev, pub)
	case api.KindAppend:
		return r.execAppend(id, node, ev, pub)
	case api.KindReturn:
		return r.execReturn(id, node, ev, pub)
	case api.KindBreak:
		ev.ctx.setBreak()
		pub.Publish(id, api.EventNodeFinish, node, nil)
		return nil
	case api.KindRaise:
		text, err := node.InputString(api.InputException)
		if err != nil {
			return err
		}
		return &RaisedError{Text: text}
	case api.KindUpdate:
		return r.execUpdate(id, node, ev, pub)
	case api.KindFor:
		return r.execFor(id, node, ev, pub)
	case api.KindWhile:
		return r.execWhile(id, node, ev, pub)
	default:
		return r.execCall(id, node, ev, pub)
	}
}

func (r *Runner) execAssign(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	value, err := ev.evaluateInput(node.Inputs[api.InputValue])
	if err != nil {
		return err
	}
	if err := ev.assign(node.Output, value); err != nil {
		return err
	}
	if node.Options.DisplayOutput {
		ev.ctx.Display(node.Index, value)
	}
	pub.Publish(id, api.EventNodeFinish, node, map[string]any{"value": value})
	return nil
}

func (r *Runner) execAppend(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	value, err := ev.evaluateInput(node.Inputs[api.InputValue])
	if err != nil {
		return err
	}
	current, ok := ev.ctx.Get(node.Output)
	if !ok {
		current = []any{}
	}
	list, ok := current.([]any)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAppendTarget, node.Output)
	}
	ev.ctx.Set(node.Output, append(list, value))
	pub.Publish(id, api.EventNodeFinish, node, map[string]any{"item": value})
	return nil
}

func (r *Runner) execReturn(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	value, err := ev.evaluateInput(node.Inputs[api.InputValue])
	if err != nil {
		return err
	}
	ev.ctx.setReturn(value)
	pub.Publish(id, api.EventNodeFinish, node, map[string]any{"output": value})
	return nil
}

func (r *Runner) execUpdate(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	operator, err := node.InputString(api.InputOperator)
	if err != nil {
		return err
	}
	value, err := ev.evaluateInput(node.Inputs[api.InputValue])
	if err != nil {
		return err
	}
	current, ok := ev.ctx.Get(node.Output)
	if !ok {
		return fmt.Errorf("%w: %q", ErrVarNotDefined, node.Output)
	}
	updated, err := ApplyUpdate(current, operator, value)
	if err != nil {
		return err
	}
	ev.ctx.Set(node.Output, updated)
	pub.Publish(id, api.EventNodeFinish, node, map[string]any{
		"output": updated,
	})
	return nil
}

// execFor iterates in value mode (item plus optional positional index) or,
// when a key variable is named, in key/value mode over a mapping's entries.
// Loop variables persist in the shared context after the loop ends
func (r *Runner) execFor(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	iterable, err := ev.evaluateInput(node.Inputs[api.InputIterable])
	if err != nil {
		return err
	}
	itemVar, err := node.InputString(api.InputItem)
	if err != nil {
		return err
	}
	keyVar, err := node.InputString(api.InputKey)
	if err != nil {
		return err
	}
	indexVar, err := node.InputString(api.InputIndex)
	if err != nil {
		return err
	}
	children, err := node.Children()
	if err != nil {
		return err
	}

	var binders []func(i int)
	if keyVar != "" {
		mapping, ok := iterable.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %T", ErrNotIterable, iterable)
		}
		for _, k := range sortedKeys(mapping) {
			binders = append(binders, func(int) {
				ev.ctx.Set(keyVar, k)
				ev.ctx.Set(itemVar, mapping[k])
			})
		}
	} else {
		elems, err := iterate(iterable)
		if err != nil {
			return err
		}
		for _, item := range elems {
			binders = append(binders, func(i int) {
				ev.ctx.Set(itemVar, item)
				if indexVar != "" {
					ev.ctx.Set(indexVar, i)
				}
			})
		}
	}

	for i, bind := range binders {
		bind(i)
		pub.Publish(id, api.EventForIterationStart, node, map[string]any{
			"iteration_index": i,
			"iterable_length": len(binders),
		})
		if err := r.executeNodes(id, children, ev, pub); err != nil {
			return err
		}
		if ev.ctx.breaking() {
			ev.ctx.clearBreak()
			break
		}
		if ev.ctx.returning() {
			break
		}
	}
	pub.Publish(id, api.EventNodeFinish, node, nil)
	return nil
}

// execWhile re-evaluates the condition before every round and tracks
// iteration count and elapsed time for the loop's finish event
func (r *Runner) execWhile(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	children, err := node.Children()
	if err != nil {
		return err
	}

	counter := 0
	start := time.Now()
	finish := func() map[string]any {
		return map[string]any{
			"iterations": counter,
			"duration":   time.Since(start).Seconds(),
		}
	}

	for {
		cond, err := ev.evaluateInput(node.Inputs[api.InputCondition])
		if err != nil {
			return err
		}
		if !truthy(cond) {
			break
		}
		pub.Publish(id, api.EventWhileIterationStart, node, map[string]any{
			"iteration_index": counter,
		})
		if err := r.executeNodes(id, children, ev, pub); err != nil {
			return err
		}
		if ev.ctx.breaking() {
			ev.ctx.clearBreak()
			break
		}
		if ev.ctx.returning() {
			break
		}
		counter++
	}
	pub.Publish(id, api.EventNodeFinish, node, finish())
	return nil
}

// execCall resolves the node's name in the task map, then the builtin
// allow-list, evaluates every input as a keyword argument, and invokes the
// callable. Builtins receive their arguments in sorted input-name order
func (r *Runner) execCall(
	id api.SubPlanID, node *api.Node, ev *evaluator, pub publish.Publisher,
) error {
	result, err := r.invoke(node, ev)
	if err != nil {
		return err
	}
	if node.Output != "" {
		if err := ev.assign(node.Output, result); err != nil {
			return err
		}
	}
	if node.Options.DisplayOutput {
		ev.ctx.Display(node.Index, result)
	}
	pub.Publish(id, api.EventNodeFinish, node, map[string]any{
		"output": result,
	})
	return nil
}

func (r *Runner) invoke(node *api.Node, ev *evaluator) (any, error) {
	if task, ok := r.tasks[node.Name]; ok {
		kwargs := make(api.Args, len(node.Inputs))
		for name, raw := range node.Inputs {
			value, err := ev.evaluateInput(raw)
			if err != nil {
				return nil, err
			}
			kwargs[name] = value
		}
		return task.Fn(kwargs)
	}

	if fn, ok := builtins[node.Name]; ok {
		names := make([]string, 0, len(node.Inputs))
		for name := range node.Inputs {
			names = append(names, name)
		}
		slices.Sort(names)
		args := make([]any, len(names))
		for i, name := range names {
			value, err := ev.evaluateInput(node.Inputs[name])
			if err != nil {
				return nil, err
			}
			args[i] = value
		}
		return fn(args)
	}

	return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, node.Name)
}

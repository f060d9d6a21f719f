package api

import (
	"errors"
	"fmt"

	"github.com/brixel-ai/brixel-client/pkg/util"
)

type (
	// NodeKind discriminates control-flow nodes from task invocations
	NodeKind string

	// Node is one instruction in a sub-plan: either a control-flow construct
	// (its Name is one of the reserved keywords) or a task invocation
	Node struct {
		Inputs  Inputs  `json:"inputs,omitempty"`
		Name    string  `json:"name"`
		Output  string  `json:"output,omitempty"`
		Index   int     `json:"index"`
		Options Options `json:"options,omitempty"`
	}

	// Inputs maps a parameter name to a literal or an expression string. For
	// control nodes the reserved keys of InputKeys apply
	Inputs map[string]any

	// Options carries node-local flags
	Options struct {
		DisplayOutput bool `json:"display_output,omitempty"`
	}
)

const (
	KindAssign NodeKind = "_assign"
	KindAppend NodeKind = "_append"
	KindReturn NodeKind = "_return"
	KindBreak  NodeKind = "_break"
	KindRaise  NodeKind = "_raise"
	KindUpdate NodeKind = "_update"
	KindFor    NodeKind = "_for"
	KindWhile  NodeKind = "_while"
	KindIf     NodeKind = "_if"
	KindElif   NodeKind = "_elif"
	KindElse   NodeKind = "_else"

	// KindCall marks any node whose name is not a reserved keyword; it must
	// resolve in the task map or the builtin allow-list at execution time
	KindCall NodeKind = "_call"
)

// Reserved input keys for control nodes
const (
	InputCondition = "condition"
	InputIterable  = "iterable"
	InputItem      = "item"
	InputIndex     = "index"
	InputKey       = "key"
	InputOperator  = "operator"
	InputValue     = "value"
	InputException = "exception"
	InputChildren  = "children"
)

var (
	ErrNodeNameEmpty    = errors.New("node name empty")
	ErrMissingInput     = errors.New("node missing required input")
	ErrMissingOutput    = errors.New("node missing output")
	ErrInvalidChildren  = errors.New("invalid children input")
	ErrInputNotString   = errors.New("node input must be a string")
	ErrBadConditionNode = errors.New("conditional node out of place")
)

var controlKinds = util.SetOf(
	KindAssign, KindAppend, KindReturn, KindBreak, KindRaise,
	KindUpdate, KindFor, KindWhile, KindIf, KindElif, KindElse,
)

// Kind returns the node's dispatch kind, decided from its name
func (n *Node) Kind() NodeKind {
	k := NodeKind(n.Name)
	if controlKinds.Contains(k) {
		return k
	}
	return KindCall
}

// IsConditional reports whether the node belongs to an if/elif/else chain
func (n *Node) IsConditional() bool {
	switch n.Kind() {
	case KindIf, KindElif, KindElse:
		return true
	}
	return false
}

// Children returns the node's nested child sequence. A plan decoded from
// JSON carries children as []any of maps; a plan built in-process carries
// []Node directly. Both forms are accepted
func (n *Node) Children() ([]Node, error) {
	raw, ok := n.Inputs[InputChildren]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []Node:
		return v, nil
	case []any:
		children := make([]Node, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d", ErrInvalidChildren, i)
			}
			child, err := NodeFromMap(m)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return children, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidChildren, raw)
	}
}

// NodeFromMap builds a Node from its decoded map form
func NodeFromMap(m map[string]any) (Node, error) {
	var n Node
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return n, ErrNodeNameEmpty
	}
	n.Name = name
	if inputs, ok := m["inputs"].(map[string]any); ok {
		n.Inputs = inputs
	}
	if output, ok := m["output"].(string); ok {
		n.Output = output
	}
	switch idx := m["index"].(type) {
	case float64:
		n.Index = int(idx)
	case int:
		n.Index = idx
	}
	if opts, ok := m["options"].(map[string]any); ok {
		if display, ok := opts["display_output"].(bool); ok {
			n.Options.DisplayOutput = display
		}
	}
	return n, nil
}

// InputString returns the named input coerced to a string expression. Nil or
// absent inputs yield the empty string
func (n *Node) InputString(key string) (string, error) {
	raw, ok := n.Inputs[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInputNotString, key)
	}
	return s, nil
}

// Validate checks that the node carries the inputs its kind requires, and
// recursively validates any child sequence
func (n *Node) Validate() error {
	if n.Name == "" {
		return ErrNodeNameEmpty
	}
	if err := n.validateKind(); err != nil {
		return err
	}
	children, err := n.Children()
	if err != nil {
		return err
	}
	for i := range children {
		if err := children[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) validateKind() error {
	switch n.Kind() {
	case KindAssign, KindAppend:
		if err := n.requireInputs(InputValue); err != nil {
			return err
		}
		if n.Output == "" {
			return fmt.Errorf("%w: %s", ErrMissingOutput, n.Name)
		}
	case KindUpdate:
		if err := n.requireInputs(InputOperator, InputValue); err != nil {
			return err
		}
		if n.Output == "" {
			return fmt.Errorf("%w: %s", ErrMissingOutput, n.Name)
		}
	case KindReturn:
		return n.requireInputs(InputValue)
	case KindRaise:
		return n.requireInputs(InputException)
	case KindFor:
		return n.requireInputs(InputItem, InputIterable)
	case KindWhile, KindIf, KindElif:
		return n.requireInputs(InputCondition)
	}
	return nil
}

func (n *Node) requireInputs(keys ...string) error {
	for _, key := range keys {
		if _, ok := n.Inputs[key]; !ok {
			return fmt.Errorf("%w: %s requires %q", ErrMissingInput, n.Name, key)
		}
	}
	return nil
}

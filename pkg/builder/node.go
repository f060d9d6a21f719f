package builder

import (
	"maps"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

// Node builds one plan instruction. Use the constructors for control-flow
// nodes and Call for task invocations
type Node struct {
	inputs   map[string]any
	name     string
	output   string
	children []*Node
	display  bool
}

func newNode(name string) *Node {
	return &Node{
		name:   name,
		inputs: map[string]any{},
	}
}

// Assign binds the result of an expression to a variable
func Assign(output string, value any) *Node {
	n := newNode(string(api.KindAssign))
	n.output = output
	n.inputs[api.InputValue] = value
	return n
}

// Append appends the result of an expression to a list variable, creating
// the list when it is not yet bound
func Append(output string, value any) *Node {
	n := newNode(string(api.KindAppend))
	n.output = output
	n.inputs[api.InputValue] = value
	return n
}

// Return records the sub-plan's result and stops execution
func Return(value any) *Node {
	n := newNode(string(api.KindReturn))
	n.inputs[api.InputValue] = value
	return n
}

// Break exits the innermost enclosing loop
func Break() *Node {
	return newNode(string(api.KindBreak))
}

// Raise fails the sub-plan with the given message
func Raise(message string) *Node {
	n := newNode(string(api.KindRaise))
	n.inputs[api.InputException] = message
	return n
}

// Update applies a compound assignment operator to an existing variable
func Update(output, operator string, value any) *Node {
	n := newNode(string(api.KindUpdate))
	n.output = output
	n.inputs[api.InputOperator] = operator
	n.inputs[api.InputValue] = value
	return n
}

// For iterates an iterable expression, binding each element to item
func For(item, iterable string, children ...*Node) *Node {
	n := newNode(string(api.KindFor))
	n.inputs[api.InputItem] = item
	n.inputs[api.InputIterable] = iterable
	n.children = children
	return n
}

// While repeats its children as long as the condition holds
func While(condition string, children ...*Node) *Node {
	n := newNode(string(api.KindWhile))
	n.inputs[api.InputCondition] = condition
	n.children = children
	return n
}

// If opens a conditional chain
func If(condition string, children ...*Node) *Node {
	n := newNode(string(api.KindIf))
	n.inputs[api.InputCondition] = condition
	n.children = children
	return n
}

// Elif continues a conditional chain
func Elif(condition string, children ...*Node) *Node {
	n := newNode(string(api.KindElif))
	n.inputs[api.InputCondition] = condition
	n.children = children
	return n
}

// Else closes a conditional chain
func Else(children ...*Node) *Node {
	n := newNode(string(api.KindElse))
	n.children = children
	return n
}

// Call invokes a registered task or an allow-listed builtin by name
func Call(name string) *Node {
	return newNode(name)
}

// WithInput adds one named argument to a task invocation
func (n *Node) WithInput(name string, value any) *Node {
	res := n.clone()
	res.inputs[name] = value
	return res
}

// WithInputs merges a set of named arguments into a task invocation
func (n *Node) WithInputs(inputs map[string]any) *Node {
	res := n.clone()
	maps.Copy(res.inputs, inputs)
	return res
}

// WithOutput binds the node's result to a variable
func (n *Node) WithOutput(output string) *Node {
	res := n.clone()
	res.output = output
	return res
}

// WithIndexVar binds the loop counter of a value-mode for loop
func (n *Node) WithIndexVar(name string) *Node {
	res := n.clone()
	res.inputs[api.InputIndex] = name
	return res
}

// WithKeyVar switches a for loop to key/value mode over a mapping
func (n *Node) WithKeyVar(name string) *Node {
	res := n.clone()
	res.inputs[api.InputKey] = name
	return res
}

// WithDisplay marks the node's result for the displayed-output log
func (n *Node) WithDisplay() *Node {
	res := n.clone()
	res.display = true
	return res
}

func (n *Node) clone() *Node {
	res := *n
	res.inputs = maps.Clone(n.inputs)
	res.children = make([]*Node, len(n.children))
	copy(res.children, n.children)
	return &res
}

// build materializes the node tree, assigning indexes in execution order
// from the shared counter
func (n *Node) build(next *int) api.Node {
	res := api.Node{
		Name:   n.name,
		Output: n.output,
		Index:  *next,
		Options: api.Options{
			DisplayOutput: n.display,
		},
	}
	*next++

	inputs := maps.Clone(n.inputs)
	if len(n.children) > 0 {
		children := make([]api.Node, len(n.children))
		for i, child := range n.children {
			children[i] = child.build(next)
		}
		inputs[api.InputChildren] = children
	}
	if len(inputs) > 0 {
		res.Inputs = inputs
	}
	return res
}

package runner

import (
	"maps"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Context holds the mutable variable bindings for one sub-plan
	// execution, along with the control signal steering sequence traversal
	// and the ordered log of displayed outputs. A Context is exclusively
	// owned by one in-flight execution and is never shared
	Context struct {
		vars      map[string]any
		returned  any
		displayed []api.DisplayedOutput
		signal    signal
	}

	// signal marks a pending control-flow transition. Loops and sequence
	// walks check it explicitly after executing child nodes
	signal int
)

const (
	sigNone signal = iota
	sigBreak
	sigReturn
)

// NewContext creates a context seeded with the provided initial bindings
func NewContext(initial api.Args) *Context {
	vars := make(map[string]any, len(initial))
	maps.Copy(vars, initial)
	return &Context{vars: vars}
}

// Get returns the value bound to name
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Set binds a value to name, replacing any prior binding
func (c *Context) Set(name string, value any) {
	c.vars[name] = value
}

// Has reports whether name is bound
func (c *Context) Has(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Vars exposes the underlying variable bindings. Loop and conditional
// bodies share this flat namespace; there is no lexical block scoping
func (c *Context) Vars() map[string]any {
	return c.vars
}

// Display appends a node's displayable value to the output log
func (c *Context) Display(index int, output any) {
	c.displayed = append(c.displayed, api.DisplayedOutput{
		Index:  index,
		Output: output,
	})
}

// DisplayedOutputs returns the accumulated display records in node order
func (c *Context) DisplayedOutputs() []api.DisplayedOutput {
	return c.displayed
}

// ReturnValue reports whether a return has been recorded, and its value
func (c *Context) ReturnValue() (any, bool) {
	if c.signal == sigReturn {
		return c.returned, true
	}
	return nil, false
}

func (c *Context) setReturn(value any) {
	c.signal = sigReturn
	c.returned = value
}

func (c *Context) returning() bool {
	return c.signal == sigReturn
}

func (c *Context) setBreak() {
	if c.signal == sigNone {
		c.signal = sigBreak
	}
}

func (c *Context) breaking() bool {
	return c.signal == sigBreak
}

func (c *Context) clearBreak() {
	if c.signal == sigBreak {
		c.signal = sigNone
	}
}

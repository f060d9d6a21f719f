package api

import "errors"

type (
	// Args is the set of named arguments passed to a task invocation
	Args map[string]any

	// TaskFunc is a callable registered with the engine. Inputs arrive as
	// evaluated keyword arguments
	TaskFunc func(Args) (any, error)

	// InputSpec describes one parameter of a registered task
	InputSpec struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
		Required    bool   `json:"required"`
	}

	// OutputSpec describes a task's return value
	OutputSpec struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}

	// TaskConfig groups a task's declared inputs and output
	TaskConfig struct {
		Inputs []InputSpec `json:"inputs"`
		Output *OutputSpec `json:"output,omitempty"`
	}

	// TaskOptions carries task-level flags forwarded to the planner
	TaskOptions struct {
		DisplayOutput bool `json:"display_output"`
	}

	// TaskSpec is the schema a registered task advertises to the planning
	// service
	TaskSpec struct {
		Name          string      `json:"name"`
		Description   string      `json:"description"`
		Configuration TaskConfig  `json:"configuration"`
		Options       TaskOptions `json:"options"`
		AgentID       AgentID     `json:"-"`
	}

	// AgentSpec is the metadata a registered agent advertises to the
	// planning service
	AgentSpec struct {
		ID          AgentID `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Context     string  `json:"context,omitempty"`
	}

	// AgentConfig is an agent's full planner-facing description, including
	// its task schemas
	AgentConfig struct {
		ID          AgentID        `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Context     string         `json:"context,omitempty"`
		Tasks       []TaskSpec     `json:"tasks"`
		Options     map[string]any `json:"options,omitempty"`
	}
)

// DefaultAgentID groups tasks registered without an explicit agent
const DefaultAgentID AgentID = "default"

var (
	ErrTaskNameEmpty = errors.New("task name empty")
	ErrTaskFuncNil   = errors.New("task callable nil")
)

// Validate checks the task schema's identity
func (t *TaskSpec) Validate() error {
	if t.Name == "" {
		return ErrTaskNameEmpty
	}
	return nil
}

// GetString retrieves a string argument, returning defaultValue if absent or
// of the wrong type
func (a Args) GetString(name, defaultValue string) string {
	if s, ok := a[name].(string); ok {
		return s
	}
	return defaultValue
}

// GetInt retrieves an integer argument, converting from float64 when the
// value arrived through JSON decoding
func (a Args) GetInt(name string, defaultValue int) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return defaultValue
}

// GetBool retrieves a boolean argument, returning defaultValue if absent or
// of the wrong type
func (a Args) GetBool(name string, defaultValue bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return defaultValue
}

package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

// Task pairs a parsed task schema with its compiled body
type Task struct {
	Spec api.TaskSpec
	Fn   api.TaskFunc
}

var (
	ErrBadDirective = errors.New("invalid task directive")
	ErrEmptyBody    = errors.New("task body empty")
)

// Task files open with a directive header in Lua comments, followed by the
// body. Directives:
//
//	-- name: word_count
//	-- description: Count the words in a text
//	-- input: text string The text to scan
//	-- optional: limit int Stop counting after this many words
//	-- output: int The number of words
//	-- display
//
// The body is an ordinary Lua chunk whose return value is the task result.
// Declared inputs are in scope as locals
const directivePrefix = "--"

// LoadSource parses a task definition and compiles its body. The name
// directive may be omitted when a fallback name is supplied
func (e *Env) LoadSource(fallbackName, source string) (*Task, error) {
	spec, body, err := parseHeader(fallbackName, source)
	if err != nil {
		return nil, err
	}

	params := make([]string, len(spec.Configuration.Inputs))
	for i, input := range spec.Configuration.Inputs {
		params[i] = input.Name
	}

	compiled, err := e.Compile(body, params)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", spec.Name, err)
	}

	return &Task{
		Spec: spec,
		Fn: func(args api.Args) (any, error) {
			return e.Execute(compiled, args)
		},
	}, nil
}

// LoadFile loads a task definition from a .lua file. The file's base name
// is the fallback task name
func (e *Env) LoadFile(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	task, err := e.LoadSource(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return task, nil
}

// RegisterFile loads one task file into the registry
func (e *Env) RegisterFile(reg *registry.Registry, path string) error {
	task, err := e.LoadFile(path)
	if err != nil {
		return err
	}
	return reg.Register(task.Spec, task.Fn)
}

// RegisterDir loads every .lua file in dir, in lexical order, and returns
// the names of the registered tasks
func (e *Env) RegisterDir(
	reg *registry.Registry, dir string,
) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, path := range paths {
		task, err := e.LoadFile(path)
		if err != nil {
			return names, err
		}
		if err := reg.Register(task.Spec, task.Fn); err != nil {
			return names, err
		}
		names = append(names, task.Spec.Name)
	}
	return names, nil
}

// parseHeader splits source into its directive header and body, returning
// the task schema the header declares
func parseHeader(fallbackName, source string) (api.TaskSpec, string, error) {
	spec := api.TaskSpec{Name: fallbackName}

	lines := strings.Split(source, "\n")
	bodyStart := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, directivePrefix) {
			bodyStart = i
			break
		}
		bodyStart = i + 1
		directive := strings.TrimSpace(
			strings.TrimPrefix(trimmed, directivePrefix))
		if err := applyDirective(&spec, directive); err != nil {
			return spec, "", err
		}
	}

	body := strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	if body == "" {
		return spec, "", fmt.Errorf("%w: %s", ErrEmptyBody, spec.Name)
	}
	return spec, body, nil
}

func applyDirective(spec *api.TaskSpec, directive string) error {
	if directive == "display" {
		spec.Options.DisplayOutput = true
		return nil
	}

	key, rest, ok := strings.Cut(directive, ":")
	if !ok {
		// ordinary comment, not a directive
		return nil
	}
	key = strings.TrimSpace(key)
	rest = strings.TrimSpace(rest)

	switch key {
	case "name":
		if rest != "" {
			spec.Name = rest
		}
	case "description":
		spec.Description = rest
	case "agent":
		spec.AgentID = api.AgentID(rest)
	case "input", "optional":
		input, err := parseInput(rest)
		if err != nil {
			return err
		}
		input.Required = key == "input"
		spec.Configuration.Inputs = append(spec.Configuration.Inputs, input)
	case "output":
		outType, desc, _ := strings.Cut(rest, " ")
		spec.Configuration.Output = &api.OutputSpec{
			Type:        outType,
			Description: strings.TrimSpace(desc),
		}
	}
	return nil
}

func parseInput(rest string) (api.InputSpec, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return api.InputSpec{}, fmt.Errorf(
			"%w: input needs name and type: %q", ErrBadDirective, rest)
	}
	return api.InputSpec{
		Name:        fields[0],
		Type:        fields[1],
		Description: strings.Join(fields[2:], " "),
	}, nil
}

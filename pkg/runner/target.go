package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Assignment destinations are either a plain identifier or a single
// subscript such as "arr[0]" or "scores[name]". Anything else is rejected
// outright rather than silently treated as a variable name, so malformed
// plans surface immediately

var (
	ErrBadAssignTarget = errors.New("invalid assignment target")
	ErrTargetNotBound  = errors.New("assignment target is not bound")
)

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// assign binds value at the destination named by target: either a context
// variable or a key/index inside an already-bound container
func (e *evaluator) assign(target string, value any) error {
	if isIdentifier(target) {
		e.ctx.Set(target, value)
		return nil
	}

	name, subscript, err := splitSubscript(target)
	if err != nil {
		return err
	}
	container, ok := e.ctx.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotBound, name)
	}
	key, err := e.evaluate(subscript)
	if err != nil {
		return err
	}
	return setIndex(container, key, value)
}

// splitSubscript decomposes "name[expr]" into its variable name and index
// expression
func splitSubscript(target string) (string, string, error) {
	open := strings.IndexByte(target, '[')
	if open < 0 || !strings.HasSuffix(target, "]") {
		return "", "", fmt.Errorf("%w: %q", ErrBadAssignTarget, target)
	}
	name := target[:open]
	subscript := target[open+1 : len(target)-1]
	if !isIdentifier(name) || subscript == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadAssignTarget, target)
	}
	return name, subscript, nil
}

// setIndex writes into an existing container in place
func setIndex(container, key, value any) error {
	switch c := container.(type) {
	case []any:
		i, ok := intVal(key)
		if !ok {
			return fmt.Errorf("%w: %v", ErrBadIndex, key)
		}
		if i < 0 {
			i += len(c)
		}
		if i < 0 || i >= len(c) {
			return fmt.Errorf("%w: %v", ErrIndexRange, key)
		}
		c[i] = value
		return nil
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return fmt.Errorf("%w: %v", ErrBadIndex, key)
		}
		c[k] = value
		return nil
	}
	return fmt.Errorf("%w: %T", ErrNotIndexable, container)
}

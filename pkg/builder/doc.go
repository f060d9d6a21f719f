// Package builder provides a fluent API for composing plans in Go code
//
// Builders are immutable: every With method returns a copy, so partially
// configured builders can be reused as templates. Build assigns node
// indexes in execution order and validates the result
package builder

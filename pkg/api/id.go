package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// PlanID is a unique identifier for a generated plan
	PlanID string

	// SubPlanID is a unique identifier for one sub-plan within a plan
	SubPlanID string

	// AgentID identifies a registered agent
	AgentID string
)

// InvalidIDChars matches characters not permitted in plan and sub-plan IDs.
// Valid characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// NewPlanID generates a random plan identifier
func NewPlanID() PlanID {
	return PlanID(uuid.NewString())
}

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}

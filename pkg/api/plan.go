package api

import (
	"errors"
	"fmt"
)

type (
	// AgentType distinguishes sub-plans executed by the local engine from
	// those delegated to a remote agent
	AgentType string

	// AgentRef names the agent responsible for executing a sub-plan
	AgentRef struct {
		ID   AgentID   `json:"id,omitempty"`
		Type AgentType `json:"type"`
	}

	// SubPlanInput forwards a prior sub-plan's output into this sub-plan's
	// initial context under a new name
	SubPlanInput struct {
		Name string    `json:"name"`
		From SubPlanID `json:"from"`
	}

	// SubPlan is a named, ordered sequence of nodes executed against one
	// fresh context
	SubPlan struct {
		ID     SubPlanID      `json:"id"`
		Agent  AgentRef       `json:"agent"`
		Inputs []SubPlanInput `json:"inputs,omitempty"`
		Nodes  []Node         `json:"plan"`
	}

	// Plan is the full output of the planning service: an ordered list of
	// sub-plans sharing one plan identifier
	Plan struct {
		PlanID   PlanID    `json:"plan_id"`
		SubPlans []SubPlan `json:"sub_plans"`
	}
)

const (
	AgentTypeLocal    AgentType = "local"
	AgentTypeExternal AgentType = "external"
)

var (
	ErrSubPlanIDEmpty   = errors.New("sub-plan ID empty")
	ErrPlanIDEmpty      = errors.New("plan ID empty")
	ErrInvalidAgentType = errors.New("invalid agent type")
)

// Validate checks the sub-plan's identity and every node in its sequence
func (sp *SubPlan) Validate() error {
	if sp.ID == "" {
		return ErrSubPlanIDEmpty
	}
	switch sp.Agent.Type {
	case AgentTypeLocal, AgentTypeExternal, "":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidAgentType, sp.Agent.Type)
	}
	for i := range sp.Nodes {
		if err := sp.Nodes[i].Validate(); err != nil {
			return fmt.Errorf("sub-plan %s node %d: %w", sp.ID, i, err)
		}
	}
	return nil
}

// IsLocal reports whether the sub-plan runs on the local engine. An absent
// agent type defaults to local
func (sp *SubPlan) IsLocal() bool {
	return sp.Agent.Type == AgentTypeLocal || sp.Agent.Type == ""
}

// Validate checks the plan and all of its sub-plans
func (p *Plan) Validate() error {
	if p.PlanID == "" {
		return ErrPlanIDEmpty
	}
	for i := range p.SubPlans {
		if err := p.SubPlans[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

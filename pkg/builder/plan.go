package builder

import (
	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// SubPlan builds one executable sub-plan
	SubPlan struct {
		id     api.SubPlanID
		agent  api.AgentRef
		inputs []api.SubPlanInput
		nodes  []*Node
	}

	// Plan builds a full multi-sub-plan execution
	Plan struct {
		id       api.PlanID
		subPlans []*SubPlan
	}
)

// NewSubPlan creates a sub-plan builder executed by the local engine
func NewSubPlan(id api.SubPlanID) *SubPlan {
	return &SubPlan{
		id:    id,
		agent: api.AgentRef{Type: api.AgentTypeLocal},
	}
}

// WithAgent delegates the sub-plan to the named agent
func (s *SubPlan) WithAgent(id api.AgentID, agentType api.AgentType) *SubPlan {
	res := s.clone()
	res.agent = api.AgentRef{ID: id, Type: agentType}
	return res
}

// WithInput seeds the sub-plan's context with a prior sub-plan's result
func (s *SubPlan) WithInput(name string, from api.SubPlanID) *SubPlan {
	res := s.clone()
	res.inputs = append(res.inputs, api.SubPlanInput{Name: name, From: from})
	return res
}

// WithNodes appends instructions to the sub-plan's sequence
func (s *SubPlan) WithNodes(nodes ...*Node) *SubPlan {
	res := s.clone()
	res.nodes = append(res.nodes, nodes...)
	return res
}

func (s *SubPlan) clone() *SubPlan {
	res := *s
	res.inputs = make([]api.SubPlanInput, len(s.inputs))
	copy(res.inputs, s.inputs)
	res.nodes = make([]*Node, len(s.nodes))
	copy(res.nodes, s.nodes)
	return &res
}

// Build materializes and validates the sub-plan
func (s *SubPlan) Build() (*api.SubPlan, error) {
	next := 0
	nodes := make([]api.Node, len(s.nodes))
	for i, n := range s.nodes {
		nodes[i] = n.build(&next)
	}
	res := &api.SubPlan{
		ID:     s.id,
		Agent:  s.agent,
		Inputs: s.inputs,
		Nodes:  nodes,
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// NewPlan creates a plan builder with a fresh plan identifier
func NewPlan() *Plan {
	return &Plan{id: api.NewPlanID()}
}

// WithID replaces the generated plan identifier
func (p *Plan) WithID(id api.PlanID) *Plan {
	res := p.clone()
	res.id = id
	return res
}

// WithSubPlans appends sub-plans in execution order
func (p *Plan) WithSubPlans(subPlans ...*SubPlan) *Plan {
	res := p.clone()
	res.subPlans = append(res.subPlans, subPlans...)
	return res
}

func (p *Plan) clone() *Plan {
	res := *p
	res.subPlans = make([]*SubPlan, len(p.subPlans))
	copy(res.subPlans, p.subPlans)
	return &res
}

// Build materializes and validates the plan
func (p *Plan) Build() (*api.Plan, error) {
	res := &api.Plan{
		PlanID:   p.id,
		SubPlans: make([]api.SubPlan, len(p.subPlans)),
	}
	for i, sp := range p.subPlans {
		built, err := sp.Build()
		if err != nil {
			return nil, err
		}
		res.SubPlans[i] = *built
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

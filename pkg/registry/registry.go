// Package registry holds the process-wide catalog of callable tasks and the
// agents that group them. The engine never consumes a Registry directly; it
// receives an immutable TaskMap snapshot built for one execution
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Registry is an explicit task and agent catalog constructed at startup
	// and shared by reference between the client, server, and engine wiring
	Registry struct {
		agents   map[api.AgentID]api.AgentSpec
		tasks    []taskEntry
		agentIDs []api.AgentID
		mu       sync.RWMutex
	}

	// TaskMap is a read-only name-to-callable snapshot handed to one
	// sub-plan execution
	TaskMap map[string]Task

	// Task pairs a callable with its declared parameter order, so that
	// expression-level calls can map positional arguments onto names
	Task struct {
		Fn     api.TaskFunc
		Params []string
	}

	taskEntry struct {
		fn   api.TaskFunc
		spec api.TaskSpec
	}
)

var (
	ErrTaskExists   = errors.New("task already registered")
	ErrAgentExists  = errors.New("agent already registered")
	ErrNoAgents     = errors.New("no agents registered")
	ErrAgentUnknown = errors.New("agent not registered")
)

// New creates an empty task and agent registry
func New() *Registry {
	return &Registry{
		agents: map[api.AgentID]api.AgentSpec{},
	}
}

// Register adds a task callable with its planner-facing schema. Tasks
// without an agent ID are grouped under the default agent
func (r *Registry) Register(spec api.TaskSpec, fn api.TaskFunc) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %s", api.ErrTaskFuncNil, spec.Name)
	}
	if spec.AgentID == "" {
		spec.AgentID = api.DefaultAgentID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.spec.Name == spec.Name {
			return fmt.Errorf("%w: %s", ErrTaskExists, spec.Name)
		}
	}
	r.tasks = append(r.tasks, taskEntry{spec: spec, fn: fn})
	return nil
}

// RegisterAgent declares an agent's identity and planner context
func (r *Registry) RegisterAgent(spec api.AgentSpec) error {
	if spec.ID == "" {
		return ErrAgentUnknown
	}
	if spec.Name == "" {
		spec.Name = string(spec.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[spec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAgentExists, spec.ID)
	}
	r.agents[spec.ID] = spec
	r.agentIDs = append(r.agentIDs, spec.ID)
	return nil
}

// Tasks builds a task-map snapshot for one execution. A non-empty agent ID
// selects only that agent's tasks; otherwise every registered task is
// included. The snapshot never aliases registry state
func (r *Registry) Tasks(agentID api.AgentID) TaskMap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tm := make(TaskMap, len(r.tasks))
	for _, t := range r.tasks {
		if agentID != "" && t.spec.AgentID != agentID {
			continue
		}
		params := make([]string, len(t.spec.Configuration.Inputs))
		for i, input := range t.spec.Configuration.Inputs {
			params[i] = input.Name
		}
		tm[t.spec.Name] = Task{Fn: t.fn, Params: params}
	}
	return tm
}

// TaskNames lists registered task names in registration order, optionally
// filtered to one agent
func (r *Registry) TaskNames(agentID api.AgentID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, t := range r.tasks {
		if agentID != "" && t.spec.AgentID != agentID {
			continue
		}
		names = append(names, t.spec.Name)
	}
	return names
}

// Describe returns the task schemas grouped by agent, in registration order
func (r *Registry) Describe() map[api.AgentID][]api.TaskSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byAgent := map[api.AgentID][]api.TaskSpec{}
	for _, t := range r.tasks {
		byAgent[t.spec.AgentID] = append(byAgent[t.spec.AgentID], t.spec)
	}
	return byAgent
}

// Agents lists registered agent specs in registration order
func (r *Registry) Agents() []api.AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]api.AgentSpec, 0, len(r.agentIDs))
	for _, id := range r.agentIDs {
		specs = append(specs, r.agents[id])
	}
	return specs
}

// AgentConfigs returns the planner-facing description of every agent that
// has at least one registered task. Tasks grouped under an undeclared agent
// are reported with minimal metadata
func (r *Registry) AgentConfigs() []api.AgentConfig {
	byAgent := r.Describe()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var seen []api.AgentID
	for _, id := range r.agentIDs {
		if _, ok := byAgent[id]; ok {
			seen = append(seen, id)
		}
	}
	for _, t := range r.tasks {
		if _, ok := r.agents[t.spec.AgentID]; !ok {
			if !contains(seen, t.spec.AgentID) {
				seen = append(seen, t.spec.AgentID)
			}
		}
	}

	configs := make([]api.AgentConfig, 0, len(seen))
	for _, id := range seen {
		configs = append(configs, r.agentConfigLocked(id, byAgent[id]))
	}
	return configs
}

// AgentConfig returns one agent's planner-facing description. An empty
// agent ID selects the first registered agent
func (r *Registry) AgentConfig(agentID api.AgentID) (*api.AgentConfig, error) {
	byAgent := r.Describe()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if agentID == "" {
		if len(r.agentIDs) == 0 {
			return nil, ErrNoAgents
		}
		agentID = r.agentIDs[0]
	}
	cfg := r.agentConfigLocked(agentID, byAgent[agentID])
	return &cfg, nil
}

func (r *Registry) agentConfigLocked(
	id api.AgentID, tasks []api.TaskSpec,
) api.AgentConfig {
	info, ok := r.agents[id]
	if !ok {
		info = api.AgentSpec{ID: id, Name: string(id)}
	}
	if tasks == nil {
		tasks = []api.TaskSpec{}
	}
	return api.AgentConfig{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		Context:     info.Context,
		Tasks:       tasks,
	}
}

func contains(ids []api.AgentID, id api.AgentID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

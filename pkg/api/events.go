package api

import "time"

type (
	// EventName identifies a lifecycle transition during plan execution
	EventName string

	// Event is an immutable record of one lifecycle transition. Events are
	// append-only and strictly ordered by emission time
	Event struct {
		Details   map[string]any `json:"details,omitempty"`
		PlanID    SubPlanID      `json:"plan_id"`
		Event     EventName      `json:"event"`
		Timestamp time.Time      `json:"timestamp"`
		NodeIndex *int           `json:"node_index,omitempty"`
		NodeName  string         `json:"node_name,omitempty"`
	}

	// DisplayedOutput records the value produced by a node whose
	// display_output option is set
	DisplayedOutput struct {
		Output any `json:"output"`
		Index  int `json:"index"`
	}
)

const (
	EventSubPlanStart         EventName = "sub_plan_start"
	EventNodeStart            EventName = "node_start"
	EventNodeFinish           EventName = "node_finish"
	EventForIterationStart    EventName = "for_iteration_start"
	EventWhileIterationStart  EventName = "while_iteration_start"
	EventError                EventName = "error"
	EventExecutionInterrupted EventName = "execution_interrupted"
	EventSubPlanDone          EventName = "sub_plan_done"
	EventDone                 EventName = "done"
)

// NewEvent stamps a lifecycle event for the given sub-plan, optionally
// correlated to a node
func NewEvent(
	id SubPlanID, name EventName, node *Node, details map[string]any,
) *Event {
	ev := &Event{
		PlanID:    id,
		Event:     name,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
	if node != nil {
		idx := node.Index
		ev.NodeIndex = &idx
		ev.NodeName = node.Name
	}
	return ev
}

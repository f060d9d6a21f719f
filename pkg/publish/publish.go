// Package publish defines the event sink contract the engine emits to, and
// the sink implementations shipped with the client: an asynchronous ordered
// queue, a Redis pub/sub publisher, and in-memory sinks for tests and
// output harvesting
package publish

import (
	"sync"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Publisher receives lifecycle events from the engine. Publish is
	// fire-and-forget: it must not block the interpreter indefinitely and
	// must not reorder events relative to the call sequence
	Publisher interface {
		Publish(
			id api.SubPlanID, name api.EventName,
			node *api.Node, details map[string]any,
		)
	}

	// Func adapts a plain function to the Publisher interface
	Func func(*api.Event)

	// Collector is a synchronous, ordered in-memory sink used by tests and
	// by callers harvesting a run's event stream
	Collector struct {
		events []*api.Event
		mu     sync.Mutex
	}

	// Multi fans every event out to each of its publishers in order
	Multi []Publisher

	discard struct{}
)

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

func (f Func) Publish(
	id api.SubPlanID, name api.EventName, node *api.Node, details map[string]any,
) {
	f(api.NewEvent(id, name, node, details))
}

func (discard) Publish(
	api.SubPlanID, api.EventName, *api.Node, map[string]any,
) {
}

// NewCollector creates an empty event collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Publish(
	id api.SubPlanID, name api.EventName, node *api.Node, details map[string]any,
) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, api.NewEvent(id, name, node, details))
}

// Events returns a snapshot of the collected events in emission order
func (c *Collector) Events() []*api.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]*api.Event, len(c.events))
	copy(res, c.events)
	return res
}

// Named returns the collected events matching the given name, in order
func (c *Collector) Named(name api.EventName) []*api.Event {
	var res []*api.Event
	for _, ev := range c.Events() {
		if ev.Event == name {
			res = append(res, ev)
		}
	}
	return res
}

func (m Multi) Publish(
	id api.SubPlanID, name api.EventName, node *api.Node, details map[string]any,
) {
	for _, p := range m {
		p.Publish(id, name, node, details)
	}
}

package publish

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Queue delivers events to a downstream sink asynchronously while
	// preserving emission order, so a slow consumer cannot stall plan
	// execution
	Queue struct {
		prod        topic.Producer[*api.Event]
		cons        topic.Consumer[*api.Event]
		sink        Sink
		stop        chan struct{}
		batchSize   int
		wg          sync.WaitGroup
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Sink processes a batch of events in a single delivery
	Sink func([]*api.Event) error
)

var ErrSinkPanicked = errors.New("event sink panicked")

const defaultBatchSize = 64

// NewQueue creates an event queue delivering to the provided sink
func NewQueue(sink Sink) *Queue {
	q := caravan.NewTopic[*api.Event]()
	res := &Queue{
		prod:      q.NewProducer(),
		cons:      q.NewConsumer(),
		sink:      sink,
		stop:      make(chan struct{}),
		batchSize: defaultBatchSize,
	}
	res.start()
	return res
}

// Publish enqueues a lifecycle event for asynchronous delivery
func (q *Queue) Publish(
	id api.SubPlanID, name api.EventName, node *api.Node, details map[string]any,
) {
	q.prod.Send() <- api.NewEvent(id, name, node, details)
}

// Flush waits for queued events to be delivered and stops the queue
func (q *Queue) Flush() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.drain)
}

// Cancel immediately stops the queue without delivering remaining events
func (q *Queue) Cancel() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue) start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case ev, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.deliver(q.collectBatch(ev))
				}
			}
		})
	})
}

func (q *Queue) collectBatch(first *api.Event) []*api.Event {
	batch := []*api.Event{first}
	for len(batch) < q.batchSize {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) drain() {
	for {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.deliver(q.collectBatch(ev))
		default:
			q.close()
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) deliver(batch []*api.Event) {
	if err := q.tryDeliver(batch); err != nil {
		slog.Error("Event batch delivery failed",
			slog.Int("batch_size", len(batch)),
			slog.Any("error", err))
	}
}

func (q *Queue) tryDeliver(batch []*api.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanicked, r)
		}
	}()
	return q.sink(batch)
}

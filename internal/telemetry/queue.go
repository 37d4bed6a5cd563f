package telemetry

import "context"

// DefaultQueueCapacity bounds each delivery queue. It caps worst-case memory
// on small hosts.
const DefaultQueueCapacity = 128

// Queue is a fixed-capacity FIFO of envelopes between the ingestion loop and
// one sink loop.
//
// Push blocks while the queue is full: a slow sink throttles ingestion
// rather than dropping data. A sink that is disabled or failing must keep
// the queue moving with Discard.
type Queue struct {
	name string
	ch   chan Envelope
}

// NewQueue creates a queue for the named sink.
func NewQueue(name string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		name: name,
		ch:   make(chan Envelope, capacity),
	}
}

// Name returns the sink name the queue feeds.
func (q *Queue) Name() string {
	return q.name
}

// Push appends env, blocking while the queue is full.
// It returns ctx.Err() if ctx ends first.
func (q *Queue) Push(ctx context.Context, env Envelope) error {
	select {
	case q.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPop removes the oldest envelope without blocking.
func (q *Queue) TryPop() (Envelope, bool) {
	select {
	case env := <-q.ch:
		return env, true
	default:
		return Envelope{}, false
	}
}

// C exposes the receive side for select loops.
func (q *Queue) C() <-chan Envelope {
	return q.ch
}

// Discard drops everything currently queued and returns how many envelopes
// were dropped.
func (q *Queue) Discard() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the current occupancy.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Fanout pushes every envelope onto each of a fixed set of queues.
type Fanout []*Queue

// Push sends env to every queue in order, blocking on each full queue.
func (f Fanout) Push(ctx context.Context, env Envelope) error {
	for _, q := range f {
		if err := q.Push(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

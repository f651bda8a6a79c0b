package scheduler

import (
	"sync"

	"github.com/argmaster/cssfinder/internal/model"
)

// subscriberBufferSize is the channel buffer for each measurement subscriber.
// Measurements are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker fans checkpoint measurements out to per-task subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a task finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for the
// expected task volume. A new run reopens a task's topic with Open before
// publishing again.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	subs   map[int]chan model.Measurement
	nextID int
	closed bool
}

// NewBroker creates a new measurement broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Open clears the closed marker left by a prior run of the task, so that
// Publish delivers again and new subscribers get a live channel. Subscribers
// of the finished run already had their channels closed and are unaffected.
func (b *Broker) Open(taskName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskName]
	if !ok {
		b.topics[taskName] = &topic{subs: make(map[int]chan model.Measurement)}
		return
	}
	t.closed = false
}

// Subscribe returns a channel that receives measurements for the given task
// and an unsubscribe function. If the task has already finished (Close was
// called), the returned channel is immediately closed.
func (b *Broker) Subscribe(taskName string) (<-chan model.Measurement, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskName]
	if !ok {
		t = &topic{subs: make(map[int]chan model.Measurement)}
		b.topics[taskName] = t
	}

	ch := make(chan model.Measurement, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a measurement to all subscribers of the given task.
// Measurements are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(taskName string, m model.Measurement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskName]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- m:
		default:
			// Drop for slow subscribers to avoid blocking the worker.
		}
	}
}

// Close signals that no more measurements will be published for the given
// task. All subscriber channels are closed and future Subscribe calls return
// a closed channel.
func (b *Broker) Close(taskName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskName]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[taskName] = &topic{subs: make(map[int]chan model.Measurement), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

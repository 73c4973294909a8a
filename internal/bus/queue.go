package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// EventType is the category of a strategy runtime event.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventTick
	EventBars
	EventTrade
	EventOrder
)

// Event is the unit passed through the in-memory dispatch queue. Exactly one
// payload field is set, selected by Type.
type Event struct {
	Type  EventType
	Tick  schema.TickData
	Bars  map[schema.VTSymbol]schema.BarData
	Trade schema.TradeData
	Order schema.OrderData
}

// Queue is a bounded, non-blocking event queue. A single consumer draining it
// via Run is what serializes strategy callbacks.
//
// The event channel itself is never closed, so TryPublish stays safe against
// producers racing Close; shutdown is signalled through a separate done
// channel instead.
type Queue struct {
	ch     chan Event
	done   chan struct{}
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.done)
	}
}

// Run consumes events until the context is done or the queue is closed.
// Events already enqueued at close time are still drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(e)
				default:
					return
				}
			}
		case e := <-q.ch:
			handler(e)
		}
	}
}

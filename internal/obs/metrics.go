package obs

import (
	"sync/atomic"
	"time"

	"main/internal/bus"
)

const maxEventType = int(bus.EventOrder)

// Metrics collects lightweight counters and latency stats for the strategy
// dispatch path.
type Metrics struct {
	eventCounts [maxEventType + 1]uint64
	queueDrops  uint64
	queueClosed uint64

	ordersSent       uint64
	ordersCancelled  uint64
	stopOrdersPlaced uint64
	stopOrdersFired  uint64
	droppedCallbacks uint64

	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds. min is stored as
// nanos+1 so a genuine zero-duration sample is distinguishable from unset.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[bus.EventType]uint64
	QueueDrops       uint64
	QueueClosed      uint64
	OrdersSent       uint64
	OrdersCancelled  uint64
	StopOrdersPlaced uint64
	StopOrdersFired  uint64
	DroppedCallbacks uint64
	DispatchLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one dispatched event.
func (m *Metrics) ObserveEvent(eventType bus.EventType) {
	if m == nil {
		return
	}
	idx := int(eventType)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncOrdersSent counts ids returned from order routing.
func (m *Metrics) IncOrdersSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.ordersSent, uint64(n))
}

// IncOrderCancelled counts one cancel request.
func (m *Metrics) IncOrderCancelled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersCancelled, 1)
}

// IncStopOrderPlaced counts one registered stop order.
func (m *Metrics) IncStopOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stopOrdersPlaced, 1)
}

// IncStopOrderFired counts one triggered stop order.
func (m *Metrics) IncStopOrderFired() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stopOrdersFired, 1)
}

// IncDroppedCallback counts a callback with no owning strategy.
func (m *Metrics) IncDroppedCallback() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.droppedCallbacks, 1)
}

// ObserveDispatch measures the handling time of one event.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[bus.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[bus.EventType(i)] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		OrdersSent:       atomic.LoadUint64(&m.ordersSent),
		OrdersCancelled:  atomic.LoadUint64(&m.ordersCancelled),
		StopOrdersPlaced: atomic.LoadUint64(&m.stopOrdersPlaced),
		StopOrdersFired:  atomic.LoadUint64(&m.stopOrdersFired),
		DroppedCallbacks: atomic.LoadUint64(&m.droppedCallbacks),
		DispatchLatency:  m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos+1 >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos+1) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min - 1),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}

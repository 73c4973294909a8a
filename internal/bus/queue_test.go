package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestQueuePublishAndDrain(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{Type: EventTick, Tick: schema.TickData{LastPrice: 1}}))
	require.NoError(t, q.TryPublish(Event{Type: EventTick, Tick: schema.TickData{LastPrice: 2}}))
	q.Close()

	var prices []float64
	q.Run(context.Background(), func(e Event) {
		prices = append(prices, e.Tick.LastPrice)
	})
	assert.Equal(t, []float64{1, 2}, prices)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{Type: EventTick}))
	assert.ErrorIs(t, q.TryPublish(Event{Type: EventTick}), ErrQueueFull)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent
	assert.ErrorIs(t, q.TryPublish(Event{Type: EventTick}), ErrQueueClosed)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(Event) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestQueuePublishRacesClose(t *testing.T) {
	q := NewQueue(8)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 10000; j++ {
				_ = q.TryPublish(Event{Type: EventTick})
			}
		}()
	}

	close(start)
	q.Close()
	wg.Wait()

	assert.ErrorIs(t, q.TryPublish(Event{Type: EventTick}), ErrQueueClosed)

	// Whatever made it in before the close is still drained.
	done := make(chan struct{})
	go func() {
		q.Run(context.Background(), func(Event) {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not drain and return after Close")
	}
}

func TestQueueZeroCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.NoError(t, q.TryPublish(Event{Type: EventTick}))
}

package eventbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningBus(t *testing.T) *EventBus {
	t.Helper()
	bus := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		bus.Wait()
	})
	bus.Start(ctx)
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEventBus_TickDelivery(t *testing.T) {
	bus := newRunningBus(t)

	var got atomic.Value
	bus.SubscribeTimerTick(func(p TimerTickPayload) {
		got.Store(p)
	})

	bus.PublishTimerTick(TimerTickPayload{Task: "deep work", ElapsedMs: 61_000, Display: "0h 1m 1s"})

	waitFor(t, func() bool { return got.Load() != nil })
	p := got.Load().(TimerTickPayload)
	assert.Equal(t, "deep work", p.Task)
	assert.Equal(t, "0h 1m 1s", p.Display)
}

func TestEventBus_DropWhenFull(t *testing.T) {
	bus := New(1) // never started: ch fills immediately

	var dropped atomic.Int32
	bus.OnDrop(func(Event, any) { dropped.Add(1) })

	bus.PublishTimerTick(TimerTickPayload{})
	bus.PublishTimerTick(TimerTickPayload{})

	assert.Equal(t, int32(1), dropped.Load())
}

func TestEventBus_PanicContained(t *testing.T) {
	bus := newRunningBus(t)

	var panicked atomic.Int32
	bus.OnPanic(func(Event, any, any) { panicked.Add(1) })

	var delivered atomic.Int32
	bus.SubscribeTimerStarted(func(TimerStartedPayload) { panic("boom") })
	bus.SubscribeTimerStarted(func(TimerStartedPayload) { delivered.Add(1) })

	bus.PublishTimerStarted(TimerStartedPayload{Task: "t"})

	waitFor(t, func() bool { return delivered.Load() == 1 })
	require.Equal(t, int32(1), panicked.Load())
}

func TestEventBus_TypedIsolation(t *testing.T) {
	bus := newRunningBus(t)

	var ticks atomic.Int32
	bus.SubscribeTimerTick(func(TimerTickPayload) { ticks.Add(1) })

	bus.PublishTimerFinished(TimerFinishedPayload{Task: "other"})
	bus.PublishTimerTick(TimerTickPayload{})

	waitFor(t, func() bool { return ticks.Load() == 1 })
	assert.Equal(t, int32(1), ticks.Load())
}

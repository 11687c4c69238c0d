// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within tempo. The timer engine publishes a
// tick once per active second; display collaborators subscribe without the
// engine knowing about them.
package eventbus

import (
	"context"
	"sync"

	"github.com/colonyops/tempo/internal/core/timeblock"
)

// Event identifies an event type on the bus.
type Event string

// All event types.
const (
	// Keep list sorted A-Z
	EventLookupsRefreshed Event = "sn.lookups-refreshed"
	EventSyncProgress     Event = "sn.sync-progress"
	EventTimerFinished    Event = "timer.finished"
	EventTimerStarted     Event = "timer.started"
	EventTimerStopped     Event = "timer.stopped"
	EventTimerTick        Event = "timer.tick"
)

// TimerTickPayload is emitted once per active second while a timer runs,
// and once more with the final value when it stops. Display is the
// pre-formatted elapsed-time string shown to observers.
type TimerTickPayload struct {
	Task      string
	ElapsedMs int64
	Display   string
}

// TimerStartedPayload is emitted when a timer transitions to running.
type TimerStartedPayload struct {
	Task string
}

// TimerStoppedPayload is emitted when a run segment is closed into a block.
type TimerStoppedPayload struct {
	Task  string
	Block timeblock.TimeBlock
}

// TimerFinishedPayload is emitted when a task is finished and the runtime reset.
type TimerFinishedPayload struct {
	Task      string
	ElapsedMs int64
}

// SyncProgressPayload reports per-group sync outcomes as they happen.
type SyncProgressPayload struct {
	GroupKey string
	Outcome  string
	Message  string
}

// LookupsRefreshedPayload is emitted when the lookup cache is replaced.
type LookupsRefreshedPayload struct {
	Tasks      int
	Categories int
	TimeCodes  int
}

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers from a single dispatch
// goroutine. Publishing never blocks: events are dropped (with an OnDrop
// hook) when the buffer is full.
type EventBus struct {
	ch    chan envelope
	done  chan struct{}
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates an event bus with the given buffer size (64 if <= 0).
func New(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{
		ch:   make(chan envelope, buffer),
		done: make(chan struct{}),
		subs: make(map[Event][]func(any)),
	}
}

// Start runs the dispatch loop until ctx is cancelled. Each subscriber
// callback runs to completion before the next event is dispatched;
// subscriber panics are contained and reported through OnPanic.
func (bus *EventBus) Start(ctx context.Context) {
	go func() {
		defer close(bus.done)
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-bus.ch:
				bus.dispatch(env)
			}
		}
	}()
}

// Wait blocks until the dispatch loop has exited.
func (bus *EventBus) Wait() {
	<-bus.done
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	handlers := make([]func(any), len(bus.subs[env.event]))
	copy(handlers, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

// PublishTimerTick publishes a timer.tick event.
func (bus *EventBus) PublishTimerTick(p TimerTickPayload) { bus.send(EventTimerTick, p) }

// SubscribeTimerTick registers a handler for timer.tick events.
func (bus *EventBus) SubscribeTimerTick(fn func(TimerTickPayload)) {
	bus.subscribe(EventTimerTick, func(v any) {
		if p, ok := v.(TimerTickPayload); ok {
			fn(p)
		}
	})
}

// PublishTimerStarted publishes a timer.started event.
func (bus *EventBus) PublishTimerStarted(p TimerStartedPayload) { bus.send(EventTimerStarted, p) }

// SubscribeTimerStarted registers a handler for timer.started events.
func (bus *EventBus) SubscribeTimerStarted(fn func(TimerStartedPayload)) {
	bus.subscribe(EventTimerStarted, func(v any) {
		if p, ok := v.(TimerStartedPayload); ok {
			fn(p)
		}
	})
}

// PublishTimerStopped publishes a timer.stopped event.
func (bus *EventBus) PublishTimerStopped(p TimerStoppedPayload) { bus.send(EventTimerStopped, p) }

// SubscribeTimerStopped registers a handler for timer.stopped events.
func (bus *EventBus) SubscribeTimerStopped(fn func(TimerStoppedPayload)) {
	bus.subscribe(EventTimerStopped, func(v any) {
		if p, ok := v.(TimerStoppedPayload); ok {
			fn(p)
		}
	})
}

// PublishTimerFinished publishes a timer.finished event.
func (bus *EventBus) PublishTimerFinished(p TimerFinishedPayload) { bus.send(EventTimerFinished, p) }

// SubscribeTimerFinished registers a handler for timer.finished events.
func (bus *EventBus) SubscribeTimerFinished(fn func(TimerFinishedPayload)) {
	bus.subscribe(EventTimerFinished, func(v any) {
		if p, ok := v.(TimerFinishedPayload); ok {
			fn(p)
		}
	})
}

// PublishSyncProgress publishes a sn.sync-progress event.
func (bus *EventBus) PublishSyncProgress(p SyncProgressPayload) { bus.send(EventSyncProgress, p) }

// SubscribeSyncProgress registers a handler for sn.sync-progress events.
func (bus *EventBus) SubscribeSyncProgress(fn func(SyncProgressPayload)) {
	bus.subscribe(EventSyncProgress, func(v any) {
		if p, ok := v.(SyncProgressPayload); ok {
			fn(p)
		}
	})
}

// PublishLookupsRefreshed publishes a sn.lookups-refreshed event.
func (bus *EventBus) PublishLookupsRefreshed(p LookupsRefreshedPayload) {
	bus.send(EventLookupsRefreshed, p)
}

// SubscribeLookupsRefreshed registers a handler for sn.lookups-refreshed events.
func (bus *EventBus) SubscribeLookupsRefreshed(fn func(LookupsRefreshedPayload)) {
	bus.subscribe(EventLookupsRefreshed, func(v any) {
		if p, ok := v.(LookupsRefreshedPayload); ok {
			fn(p)
		}
	})
}

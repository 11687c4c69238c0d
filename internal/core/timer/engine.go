package timer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/pkg/timeutil"
)

// Snapshot is the read-only view returned by Status.
type Snapshot struct {
	Runtime   Runtime `json:"runtime"`
	ElapsedMs int64   `json:"elapsedMs"`
	Display   string  `json:"display"`
}

// Engine owns the single live timer. It persists the runtime snapshot on
// every transition and arms a periodic recompute that broadcasts the
// elapsed time once per second while running.
//
// The live flag guards against double-arming the tick after a process
// restart: IsRunning survives in the snapshot, the tick goroutine does not.
type Engine struct {
	store  Store
	blocks timeblock.Store
	bus    *eventbus.EventBus
	log    zerolog.Logger
	now    func() time.Time
	tick   time.Duration

	mu     sync.Mutex
	rt     Runtime
	live   bool
	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTickInterval overrides the periodic recompute interval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// NewEngine creates a timer engine. Call Restore before first use so a
// timer left running by a previous process resumes ticking.
func NewEngine(store Store, blocks timeblock.Store, bus *eventbus.EventBus, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		blocks: blocks,
		bus:    bus,
		log:    log,
		now:    time.Now,
		tick:   time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore reloads the persisted snapshot. If it shows a running timer, the
// periodic recompute is re-armed against the original start instant, so
// elapsed time includes the gap the process was down for. Restoring twice
// is a no-op for an already-live tick.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt, ok, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load timer snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	e.rt = rt
	if rt.IsRunning && rt.ActiveBlockStartMs != nil && !e.live {
		e.arm()
		e.log.Info().
			Str("task", rt.SavedTaskName).
			Int64("start_ms", *rt.ActiveBlockStartMs).
			Msg("resumed running timer from snapshot")
	}
	return nil
}

// Start begins (or resumes) the timer. The effective task name is the
// explicit argument, falling back to the previously saved name. When
// validateAssignment is set the assignment metadata must satisfy the sync
// rules. Starting an already-running timer is a no-op.
func (e *Engine) Start(ctx context.Context, taskName string, asgn timeblock.Assignment, validateAssignment bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rt.IsRunning || e.live {
		// Already has a live timer; keep the snapshot flag and tick aligned.
		if e.rt.IsRunning && !e.live {
			e.arm()
		}
		return nil
	}

	task := strings.TrimSpace(taskName)
	if task == "" {
		task = e.rt.SavedTaskName
	}
	if task == "" {
		return &timeblock.ValidationError{Field: "task", Message: "task name is required"}
	}

	if validateAssignment {
		if err := asgn.Validate(); err != nil {
			return err
		}
	}

	baseElapsed, err := e.taskTotal(ctx, task)
	if err != nil {
		return err
	}

	e.rt = withStart(e.rt, task, asgn, baseElapsed, e.now().UnixMilli())
	if err := e.store.Save(ctx, e.rt); err != nil {
		return fmt.Errorf("persist timer snapshot: %w", err)
	}

	e.arm()
	e.bus.PublishTimerStarted(eventbus.TimerStartedPayload{Task: task})
	e.log.Info().Str("task", task).Msg("timer started")
	return nil
}

// Stop closes the live segment into a new immutable block and pauses the
// timer. Stopping a non-running timer is a no-op. The tick is disarmed
// synchronously before anything else so a tick can never race the close.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(ctx)
}

func (e *Engine) stopLocked(ctx context.Context) error {
	if !e.rt.IsRunning {
		return nil
	}

	e.disarm()

	nowMs := e.now().UnixMilli()
	next, segmentStart, hasSegment := withStop(e.rt, nowMs, timeutil.FormatTimestamp(nowMs))
	if !hasSegment {
		e.rt = next
		if err := e.store.Save(ctx, e.rt); err != nil {
			return fmt.Errorf("persist timer snapshot: %w", err)
		}
		return nil
	}

	block, err := timeblock.New(e.rt.SavedTaskName, segmentStart, nowMs, timeblock.SourceTimer, e.rt.Assignment)
	if err != nil {
		return err
	}
	if err := e.blocks.Append(ctx, block); err != nil {
		return fmt.Errorf("append timer block: %w", err)
	}

	e.rt = next
	if err := e.store.Save(ctx, e.rt); err != nil {
		return fmt.Errorf("persist timer snapshot: %w", err)
	}

	e.bus.PublishTimerStopped(eventbus.TimerStoppedPayload{Task: e.rt.SavedTaskName, Block: block})
	e.publishTick()
	e.log.Info().
		Str("task", e.rt.SavedTaskName).
		Int64("duration_ms", block.DurationMs).
		Msg("timer stopped, block recorded")
	return nil
}

// Finish stops the timer if running, returns the final elapsed value, and
// resets the runtime to idle, clearing the persisted snapshot.
func (e *Engine) Finish(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rt.IsRunning {
		if err := e.stopLocked(ctx); err != nil {
			return 0, err
		}
	}

	task := e.rt.SavedTaskName
	elapsed := e.rt.ElapsedBeforeActiveMs

	e.rt = Runtime{}
	if err := e.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear timer snapshot: %w", err)
	}

	if task != "" {
		e.bus.PublishTimerFinished(eventbus.TimerFinishedPayload{Task: task, ElapsedMs: elapsed})
	}
	e.log.Info().Str("task", task).Int64("elapsed_ms", elapsed).Msg("timer finished")
	return elapsed, nil
}

// Status returns the current runtime with elapsed time recomputed from the
// wall clock. It never mutates persisted state.
func (e *Engine) Status(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.rt.ElapsedAt(e.now().UnixMilli())
	return Snapshot{
		Runtime:   e.rt,
		ElapsedMs: elapsed,
		Display:   timeutil.FormatHMS(elapsed),
	}, nil
}

// Close disarms the periodic recompute without touching persisted state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disarm()
}

// arm starts the periodic recompute. Caller holds the mutex.
func (e *Engine) arm() {
	if e.live {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.live = true

	go func() {
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.rt.IsRunning {
					e.publishTick()
				}
				e.mu.Unlock()
			}
		}
	}()
}

// disarm cancels the periodic recompute. Caller holds the mutex.
func (e *Engine) disarm() {
	if !e.live {
		return
	}
	e.cancel()
	e.cancel = nil
	e.live = false
}

// publishTick broadcasts the current elapsed time. Caller holds the mutex.
func (e *Engine) publishTick() {
	elapsed := e.rt.ElapsedAt(e.now().UnixMilli())
	e.bus.PublishTimerTick(eventbus.TimerTickPayload{
		Task:      e.rt.SavedTaskName,
		ElapsedMs: elapsed,
		Display:   timeutil.FormatHMS(elapsed),
	})
}

// taskTotal sums the stored block durations for a task so the displayed
// elapsed time reflects the task's full logged history.
func (e *Engine) taskTotal(ctx context.Context, task string) (int64, error) {
	blocks, err := e.blocks.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blocks: %w", err)
	}

	var total int64
	for _, b := range blocks {
		if b.Task == task {
			total += b.DurationMs
		}
	}
	return total, nil
}

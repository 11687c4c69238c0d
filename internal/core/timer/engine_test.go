package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/core/timeblock"
)

type memRuntimeStore struct {
	mu  sync.Mutex
	rt  Runtime
	has bool
}

func (s *memRuntimeStore) Load(_ context.Context) (Runtime, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rt, s.has, nil
}

func (s *memRuntimeStore) Save(_ context.Context, rt Runtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rt = rt
	s.has = true
	return nil
}

func (s *memRuntimeStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rt = Runtime{}
	s.has = false
	return nil
}

type memBlockStore struct {
	mu     sync.Mutex
	blocks []timeblock.TimeBlock
}

func (s *memBlockStore) List(_ context.Context) ([]timeblock.TimeBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]timeblock.TimeBlock, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}

func (s *memBlockStore) Get(_ context.Context, id string) (timeblock.TimeBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blocks {
		if b.ID == id {
			return b, nil
		}
	}
	return timeblock.TimeBlock{}, errors.New("not found")
}

func (s *memBlockStore) Append(_ context.Context, block timeblock.TimeBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	return nil
}

func (s *memBlockStore) Update(_ context.Context, _ string, _ timeblock.Update) (timeblock.TimeBlock, error) {
	return timeblock.TimeBlock{}, nil
}

func (s *memBlockStore) Delete(_ context.Context, _ string) error { return nil }
func (s *memBlockStore) Clear(_ context.Context) error            { return nil }

func (s *memBlockStore) ListLegacySessions(_ context.Context) ([]timeblock.LegacySession, error) {
	return nil, nil
}

// fakeClock is a settable wall clock for deterministic elapsed values.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *memRuntimeStore, *memBlockStore, *fakeClock) {
	t.Helper()

	clock := newFakeClock(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	rts := &memRuntimeStore{}
	bks := &memBlockStore{}

	bus := eventbus.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Start(ctx)

	e := NewEngine(rts, bks, bus, zerolog.Nop(),
		WithClock(clock.Now),
		WithTickInterval(time.Hour), // never fires during tests
	)
	t.Cleanup(e.Close)
	return e, rts, bks, clock
}

func TestEngineStartRequiresTask(t *testing.T) {
	e, rts, _, _ := newTestEngine(t)

	err := e.Start(context.Background(), "   ", timeblock.Assignment{}, false)
	require.Error(t, err)
	assert.True(t, timeblock.IsValidation(err))
	assert.False(t, rts.has, "failed start must not persist a snapshot")
}

func TestEngineStartStop(t *testing.T) {
	e, rts, bks, clock := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, "INC0012345", timeblock.Assignment{}, false))
	require.True(t, rts.rt.IsRunning)

	clock.Advance(90 * time.Second)

	snap, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(90_000), snap.ElapsedMs)
	assert.Equal(t, "0h 1m 30s", snap.Display)

	require.NoError(t, e.Stop(ctx))

	require.Len(t, bks.blocks, 1)
	b := bks.blocks[0]
	assert.Equal(t, "INC0012345", b.Task)
	assert.Equal(t, int64(90_000), b.DurationMs)
	assert.Equal(t, timeblock.SourceTimer, b.Source)

	require.False(t, rts.rt.IsRunning)
	assert.Equal(t, int64(90_000), rts.rt.ElapsedBeforeActiveMs)
	assert.Nil(t, rts.rt.ActiveBlockStartMs)
}

func TestEngineStopWhenIdleIsNoop(t *testing.T) {
	e, _, bks, _ := newTestEngine(t)

	require.NoError(t, e.Stop(context.Background()))
	assert.Empty(t, bks.blocks)
}

func TestEngineStartIsIdempotentWhileRunning(t *testing.T) {
	e, _, bks, clock := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, "INC0012345", timeblock.Assignment{}, false))
	clock.Advance(10 * time.Second)

	// Second start must not reset the live segment or open another one.
	require.NoError(t, e.Start(ctx, "something-else", timeblock.Assignment{}, false))
	clock.Advance(10 * time.Second)

	require.NoError(t, e.Stop(ctx))
	require.Len(t, bks.blocks, 1)
	assert.Equal(t, "INC0012345", bks.blocks[0].Task)
	assert.Equal(t, int64(20_000), bks.blocks[0].DurationMs)
}

func TestEngineStartFallsBackToSavedTask(t *testing.T) {
	e, _, bks, clock := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, "CHG0042", timeblock.Assignment{}, false))
	clock.Advance(5 * time.Second)
	require.NoError(t, e.Stop(ctx))

	// Resume with no explicit name; the saved one carries over.
	require.NoError(t, e.Start(ctx, "", timeblock.Assignment{}, false))
	clock.Advance(7 * time.Second)
	require.NoError(t, e.Stop(ctx))

	require.Len(t, bks.blocks, 2)
	assert.Equal(t, "CHG0042", bks.blocks[1].Task)
}

func TestEngineElapsedIncludesPriorBlocks(t *testing.T) {
	e, _, bks, clock := newTestEngine(t)
	ctx := context.Background()

	start := clock.Now().Add(-time.Hour).UnixMilli()
	prior, err := timeblock.New("CHG0042", start, start+300_000, timeblock.SourceManual, timeblock.Assignment{})
	require.NoError(t, err)
	require.NoError(t, bks.Append(ctx, prior))

	require.NoError(t, e.Start(ctx, "CHG0042", timeblock.Assignment{}, false))
	clock.Advance(60 * time.Second)

	snap, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(360_000), snap.ElapsedMs, "elapsed folds in previously logged blocks")
}

func TestEngineFinishReturnsElapsedAndResets(t *testing.T) {
	e, rts, bks, clock := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, "INC0012345", timeblock.Assignment{}, false))
	clock.Advance(45 * time.Second)

	elapsed, err := e.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(45_000), elapsed)

	require.Len(t, bks.blocks, 1, "finish closes the live segment first")
	assert.False(t, rts.has, "finish clears the persisted snapshot")

	snap, err := e.Status(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Runtime.IsRunning)
	assert.Empty(t, snap.Runtime.SavedTaskName)
	assert.Equal(t, int64(0), snap.ElapsedMs)
}

func TestEngineRestoreResumesRunningTimer(t *testing.T) {
	e, rts, bks, clock := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, "INC0012345", timeblock.Assignment{}, false))
	clock.Advance(30 * time.Second)
	e.Close()

	// Simulate the process gap: a fresh engine over the same stores.
	bus := eventbus.New(16)
	busCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Start(busCtx)

	clock.Advance(2 * time.Minute)

	e2 := NewEngine(rts, bks, bus, zerolog.Nop(), WithClock(clock.Now), WithTickInterval(time.Hour))
	t.Cleanup(e2.Close)
	require.NoError(t, e2.Restore(ctx))

	snap, err := e2.Status(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Runtime.IsRunning)
	assert.Equal(t, int64(150_000), snap.ElapsedMs, "elapsed spans the process gap")

	require.NoError(t, e2.Stop(ctx))
	require.Len(t, bks.blocks, 1)
	assert.Equal(t, int64(150_000), bks.blocks[0].DurationMs)
}

func TestEngineStartValidatesAssignment(t *testing.T) {
	e, rts, _, _ := newTestEngine(t)

	asgn := timeblock.Assignment{SelectionType: timeblock.SelectionCategory}
	err := e.Start(context.Background(), "INC0012345", asgn, true)
	require.Error(t, err)
	assert.False(t, rts.has)
}

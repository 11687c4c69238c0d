package tempo

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tempo/internal/core/config"
	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/core/servicenow"
	"github.com/colonyops/tempo/internal/core/timeblock"
)

type yesPrompter struct{}

func (yesPrompter) Confirm(_, _ string) (bool, error) { return true, nil }

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	bus := eventbus.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Start(ctx)

	app := New(&cfg, yesPrompter{}, bus, zerolog.Nop())
	t.Cleanup(app.Close)
	require.NoError(t, app.Restore(context.Background()))
	return app
}

func TestAppTimerLifecycle(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, app.Start(ctx, "INC0012345", timeblock.Assignment{}))

	snap, err := app.Status(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Runtime.IsRunning)
	assert.Equal(t, "INC0012345", snap.Runtime.SavedTaskName)

	require.NoError(t, app.Stop(ctx))

	blocks, err := app.GetTimeBlocks(ctx, Window{})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, timeblock.SourceTimer, blocks[0].Source)

	elapsed, err := app.Finish(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, blocks[0].DurationMs)
}

func TestAppManualSession(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local).UnixMilli()
	block, err := app.SaveManualSession(ctx, "CHG0042", start, start+3_600_000, timeblock.Assignment{})
	require.NoError(t, err)
	assert.Equal(t, int64(3_600_000), block.DurationMs)
	assert.Equal(t, timeblock.SourceManual, block.Source)

	_, err = app.SaveManualSession(ctx, "CHG0042", start, start, timeblock.Assignment{})
	require.Error(t, err, "zero-length blocks are rejected")
}

func TestAppManualSessionValidatesAssignmentWhenEnabled(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, err := app.SaveSNConfig(ctx, true, "https://acme.service-now.com")
	require.NoError(t, err)

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local).UnixMilli()
	incomplete := timeblock.Assignment{SelectionType: timeblock.SelectionTask}
	_, err = app.SaveManualSession(ctx, "CHG0042", start, start+1000, incomplete)
	require.Error(t, err)
	assert.True(t, timeblock.IsValidation(err))

	// An empty assignment is just as incomplete as a half-filled one.
	_, err = app.SaveManualSession(ctx, "CHG0042", start, start+1000, timeblock.Assignment{})
	require.Error(t, err)
	assert.True(t, timeblock.IsValidation(err))
}

func TestAppStartRequiresAssignmentWhenEnabled(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	// With the integration off the timer takes anything.
	require.NoError(t, app.Start(ctx, "INC0000001", timeblock.Assignment{}))
	_, err := app.Finish(ctx)
	require.NoError(t, err)

	_, err = app.SaveSNConfig(ctx, true, "https://acme.service-now.com")
	require.NoError(t, err)

	err = app.Start(ctx, "INC0000001", timeblock.Assignment{})
	require.Error(t, err)
	assert.True(t, timeblock.IsValidation(err))

	full := timeblock.Assignment{
		SelectionType: timeblock.SelectionTask,
		TaskSysID:     "t1",
		CodeSysID:     "code1",
	}
	require.NoError(t, app.Start(ctx, "INC0000001", full))
}

func TestAppUpdateAndDeleteBlock(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local).UnixMilli()
	block, err := app.SaveManualSession(ctx, "CHG0042", start, start+1000, timeblock.Assignment{})
	require.NoError(t, err)

	updated, err := app.UpdateTimeBlock(ctx, block.ID, timeblock.Update{
		Task:    "CHG0042",
		StartMs: start,
		EndMs:   start + 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.DurationMs)

	require.NoError(t, app.DeleteTimeBlock(ctx, block.ID))

	blocks, err := app.GetTimeBlocks(ctx, Window{})
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestAppAggregatedSessions(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local).UnixMilli()
	_, err := app.SaveManualSession(ctx, "a", start, start+2000, timeblock.Assignment{})
	require.NoError(t, err)
	_, err = app.SaveManualSession(ctx, "b", start, start+5000, timeblock.Assignment{})
	require.NoError(t, err)

	rows, err := app.AggregatedSessions(ctx, Window{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Task)
}

func TestAppClearSessions(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local).UnixMilli()
	_, err := app.SaveManualSession(ctx, "a", start, start+2000, timeblock.Assignment{})
	require.NoError(t, err)

	require.NoError(t, app.ClearSessions(ctx))

	blocks, err := app.GetTimeBlocks(ctx, Window{})
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestAppSyncRefusesUnboundedRange(t *testing.T) {
	app := newTestApp(t)

	_, err := app.SyncVisibleBlocks(context.Background(), Window{}, nil)
	require.Error(t, err)
	assert.True(t, servicenow.IsCode(err, servicenow.CodeInvalidGroup))
}

func TestAppSyncNoGroupsSkipsBridge(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	// Nothing recorded: the sync resolves locally without any configured
	// instance, proving no bridge call is attempted.
	result, err := app.SyncVisibleBlocks(ctx, Window{StartMs: 1, EndMs: 2}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Grouping.Groups)
	assert.Empty(t, result.Report.Results)
}

func TestAppSNOpsWithoutConfig(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, err := app.CheckSession(ctx)
	require.Error(t, err)
	assert.True(t, servicenow.IsCode(err, servicenow.CodeNoConfig))

	_, _, err = app.Connect(ctx, "work laptop", "")
	require.Error(t, err)
	assert.True(t, servicenow.IsCode(err, servicenow.CodeNoConfig))
}

func TestAppSaveSNConfigRejectsBadURL(t *testing.T) {
	app := newTestApp(t)

	_, err := app.SaveSNConfig(context.Background(), true, "http://insecure.example.com")
	require.Error(t, err)
	assert.True(t, servicenow.IsCode(err, servicenow.CodeNoConfig))
}

func TestAppWatchRefreshComesFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Watch.RefreshMs = 250

	bus := eventbus.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Start(ctx)

	app := New(&cfg, yesPrompter{}, bus, zerolog.Nop())
	t.Cleanup(app.Close)
	assert.Equal(t, 250*time.Millisecond, app.WatchRefresh())

	cfg.Watch.RefreshMs = 0
	assert.Equal(t, time.Second, app.WatchRefresh(), "non-positive values fall back to one second")
}

func TestAppTimerSurvivesRestart(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	bus := eventbus.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Start(ctx)

	app := New(&cfg, yesPrompter{}, bus, zerolog.Nop())
	require.NoError(t, app.Restore(context.Background()))
	require.NoError(t, app.Start(context.Background(), "INC0012345", timeblock.Assignment{}))
	app.Close()

	// A second app over the same data dir picks the running timer back up.
	app2 := New(&cfg, yesPrompter{}, bus, zerolog.Nop())
	t.Cleanup(app2.Close)
	require.NoError(t, app2.Restore(context.Background()))

	snap, err := app2.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Runtime.IsRunning)
	assert.Equal(t, "INC0012345", snap.Runtime.SavedTaskName)
}

package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/colonyops/tempo/internal/core/timeblock"
)

// localMs builds an epoch-ms instant in the local zone, matching the
// calendar math the aggregators use.
func localMs(year int, month time.Month, day, hour, minute int) int64 {
	return time.Date(year, month, day, hour, minute, 0, 0, time.Local).UnixMilli()
}

func block(id, task string, startMs, endMs int64) timeblock.TimeBlock {
	return timeblock.TimeBlock{
		ID:         id,
		Task:       task,
		StartMs:    startMs,
		EndMs:      endMs,
		DurationMs: endMs - startMs,
		Source:     timeblock.SourceManual,
	}
}

func TestByTask(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		block("1", "INC0001", localMs(2024, 3, 11, 9, 0), localMs(2024, 3, 11, 9, 30)),
		block("2", "CHG0042", localMs(2024, 3, 11, 10, 0), localMs(2024, 3, 11, 12, 0)),
		block("3", "INC0001", localMs(2024, 3, 12, 9, 0), localMs(2024, 3, 12, 9, 15)),
	}

	rows := ByTask(blocks, nil)
	require.Len(t, rows, 2)

	assert.Equal(t, "CHG0042", rows[0].Task, "longest total first")
	assert.Equal(t, int64(2*60*60*1000), rows[0].DurationMs)
	assert.Equal(t, 1, rows[0].BlockCount)

	assert.Equal(t, "INC0001", rows[1].Task)
	assert.Equal(t, int64(45*60*1000), rows[1].DurationMs)
	assert.Equal(t, 2, rows[1].BlockCount)
	assert.Equal(t, localMs(2024, 3, 12, 9, 15), rows[1].LastEndMs)
	assert.NotEmpty(t, rows[1].LastSaved)
}

func TestByTask_CaseSensitive(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		block("1", "inc0001", 1000, 2000),
		block("2", "INC0001", 3000, 4000),
	}

	rows := ByTask(blocks, nil)
	assert.Len(t, rows, 2, "task names match exactly, not case-folded")
}

func TestByTask_TiesKeepDiscoveryOrder(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		block("1", "first", 1000, 2000),
		block("2", "second", 3000, 4000),
		block("3", "third", 5000, 6000),
	}

	rows := ByTask(blocks, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, "first", rows[0].Task)
	assert.Equal(t, "second", rows[1].Task)
	assert.Equal(t, "third", rows[2].Task)
}

func TestByTask_MergesLegacySessions(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		block("1", "INC0001", 1000, 61_000),
	}
	legacy := []timeblock.LegacySession{
		{Task: "INC0001", Duration: 120_000, LastSaved: "01/02/2023 10:00:00"},
		{Task: "OLD0001", Duration: 30_000, LastSaved: "01/01/2023 09:00:00"},
	}

	rows := ByTask(blocks, legacy)
	require.Len(t, rows, 2)

	assert.Equal(t, "INC0001", rows[0].Task)
	assert.Equal(t, int64(180_000), rows[0].DurationMs, "legacy duration folds into the block total")
	assert.Equal(t, 1, rows[0].BlockCount, "legacy rows carry no block count")

	assert.Equal(t, "OLD0001", rows[1].Task)
	assert.Equal(t, int64(30_000), rows[1].DurationMs)
	assert.Equal(t, "01/01/2023 09:00:00", rows[1].LastSaved, "legacy-only rows keep the recorded timestamp")
}

func TestByPeriod_Day(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		block("1", "a", localMs(2024, 3, 12, 9, 0), localMs(2024, 3, 12, 10, 0)),
		block("2", "b", localMs(2024, 3, 11, 9, 0), localMs(2024, 3, 11, 9, 30)),
		block("3", "c", localMs(2024, 3, 12, 14, 0), localMs(2024, 3, 12, 15, 0)),
	}

	rows := ByPeriod(blocks, PeriodDay)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-03-11", rows[0].Key, "rows sort chronologically")
	assert.Equal(t, int64(30*60*1000), rows[0].DurationMs)
	assert.Equal(t, "2024-03-12", rows[1].Key)
	assert.Equal(t, int64(2*60*60*1000), rows[1].DurationMs)
	assert.Equal(t, 2, rows[1].BlockCount)
}

func TestByPeriod_WeekStartsMonday(t *testing.T) {
	blocks := []timeblock.TimeBlock{
		// Sunday 2024-03-10 belongs to the week of Monday 2024-03-04.
		block("1", "a", localMs(2024, 3, 10, 9, 0), localMs(2024, 3, 10, 10, 0)),
		// Monday 2024-03-11 starts a new week.
		block("2", "b", localMs(2024, 3, 11, 9, 0), localMs(2024, 3, 11, 10, 0)),
	}

	rows := ByPeriod(blocks, PeriodWeek)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-04", rows[0].Key)
	assert.Equal(t, "2024-03-11", rows[1].Key)
}

func TestSplitBlockByDay_SingleDay(t *testing.T) {
	b := block("1", "a", localMs(2024, 3, 11, 9, 0), localMs(2024, 3, 11, 17, 0))

	slices := SplitBlockByDay(b)
	require.Len(t, slices, 1)
	assert.Equal(t, Slice{StartMs: b.StartMs, EndMs: b.EndMs, DurationMs: b.DurationMs}, slices[0])
}

func TestSplitBlockByDay_CrossesMidnight(t *testing.T) {
	b := block("1", "a", localMs(2024, 3, 11, 22, 0), localMs(2024, 3, 12, 2, 0))

	slices := SplitBlockByDay(b)
	require.Len(t, slices, 2)

	midnight := localMs(2024, 3, 12, 0, 0)
	assert.Equal(t, b.StartMs, slices[0].StartMs)
	assert.Equal(t, midnight, slices[0].EndMs)
	assert.Equal(t, midnight, slices[1].StartMs)
	assert.Equal(t, b.EndMs, slices[1].EndMs)
	assert.Equal(t, b.DurationMs, slices[0].DurationMs+slices[1].DurationMs)
}

func TestSplitBlockByDay_SpansThreeDays(t *testing.T) {
	b := block("1", "a", localMs(2024, 3, 11, 23, 0), localMs(2024, 3, 13, 1, 0))

	slices := SplitBlockByDay(b)
	require.Len(t, slices, 3)
	assert.Equal(t, int64(24*60*60*1000), slices[1].DurationMs, "the middle slice is a full day")
}

func TestSplitBlockByDay_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := localMs(2024, 1, 1, 0, 0)
		start := base + rapid.Int64Range(0, 90*24*60*60*1000).Draw(t, "start")
		duration := rapid.Int64Range(1, 5*24*60*60*1000).Draw(t, "duration")
		b := block("p", "task", start, start+duration)

		slices := SplitBlockByDay(b)
		require.NotEmpty(t, slices)

		var total int64
		for i, s := range slices {
			total += s.DurationMs
			require.Equal(t, s.EndMs-s.StartMs, s.DurationMs)
			require.Greater(t, s.DurationMs, int64(0))
			if i > 0 {
				require.Equal(t, slices[i-1].EndMs, s.StartMs, "slices are contiguous")
			}
		}
		require.Equal(t, b.DurationMs, total, "slice durations sum to the block duration")
		require.Equal(t, b.StartMs, slices[0].StartMs)
		require.Equal(t, b.EndMs, slices[len(slices)-1].EndMs)
	})
}

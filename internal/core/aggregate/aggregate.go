// Package aggregate turns flat block lists into reporting and sync views.
// Everything in here is pure: same blocks in, same aggregates out.
package aggregate

import (
	"sort"

	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/pkg/timeutil"
)

// TaskSummary is one row of the by-task report.
type TaskSummary struct {
	Task       string `json:"task"`
	DurationMs int64  `json:"durationMs"`
	BlockCount int    `json:"blockCount"`
	LastEndMs  int64  `json:"lastEndMs"`
	LastSaved  string `json:"lastSaved"`
}

// ByTask groups blocks by exact task name, summing durations and tracking
// the latest end instant. Legacy aggregate rows are folded into the totals
// of their task. Rows sort by descending duration; ties keep discovery
// order.
func ByTask(blocks []timeblock.TimeBlock, legacy []timeblock.LegacySession) []TaskSummary {
	index := map[string]int{}
	var rows []TaskSummary

	rowFor := func(task string) *TaskSummary {
		if i, ok := index[task]; ok {
			return &rows[i]
		}
		index[task] = len(rows)
		rows = append(rows, TaskSummary{Task: task})
		return &rows[len(rows)-1]
	}

	for _, b := range blocks {
		row := rowFor(b.Task)
		row.DurationMs += b.DurationMs
		row.BlockCount++
		if b.EndMs > row.LastEndMs {
			row.LastEndMs = b.EndMs
			row.LastSaved = timeutil.FormatTimestamp(b.EndMs)
		}
	}

	for _, s := range legacy {
		row := rowFor(s.Task)
		row.DurationMs += s.Duration
		if row.LastEndMs == 0 && row.LastSaved == "" {
			row.LastSaved = s.LastSaved
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DurationMs > rows[j].DurationMs
	})
	return rows
}

// Period granularities for ByPeriod.
const (
	PeriodDay  = "day"
	PeriodWeek = "week"
)

// PeriodSummary is one row of the by-period report. The key is a local
// YYYY-MM-DD day, or for weeks the YYYY-MM-DD of the Monday starting it.
type PeriodSummary struct {
	Key        string `json:"key"`
	DurationMs int64  `json:"durationMs"`
	BlockCount int    `json:"blockCount"`
}

// ByPeriod groups blocks by calendar day or Monday-start week, keyed off
// each block's start instant. Rows sort ascending by key, which is
// chronological for this key format.
func ByPeriod(blocks []timeblock.TimeBlock, period string) []PeriodSummary {
	keyOf := timeutil.DayKey
	if period == PeriodWeek {
		keyOf = timeutil.WeekKey
	}

	index := map[string]int{}
	var rows []PeriodSummary

	for _, b := range blocks {
		key := keyOf(b.StartMs)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, PeriodSummary{Key: key})
		}
		rows[i].DurationMs += b.DurationMs
		rows[i].BlockCount++
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// Slice is one day-bounded portion of a block.
type Slice struct {
	StartMs    int64
	EndMs      int64
	DurationMs int64
}

// SplitBlockByDay cuts a block at local-midnight boundaries. A block
// spanning K calendar days yields K slices whose durations sum exactly to
// the block's duration. A block inside one day yields itself.
func SplitBlockByDay(b timeblock.TimeBlock) []Slice {
	var slices []Slice

	cursor := b.StartMs
	for cursor < b.EndMs {
		boundary := timeutil.NextMidnight(cursor).UnixMilli()
		end := b.EndMs
		if boundary < end {
			end = boundary
		}
		slices = append(slices, Slice{
			StartMs:    cursor,
			EndMs:      end,
			DurationMs: end - cursor,
		})
		cursor = end
	}

	return slices
}

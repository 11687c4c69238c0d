package aggregate

import (
	"math"

	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/pkg/timeutil"
)

const msPerHour = 3_600_000

// SyncGroup is one weekly remote-record candidate: every contributing
// slice for the same (week, linkage, time code) tuple, bucketed into
// Monday-based weekday hour totals.
type SyncGroup struct {
	WeekStart     string               `json:"weekStart"`
	SelectionType string               `json:"selectionType"`
	SelectionKey  string               `json:"selectionKey"`
	CodeSysID     string               `json:"codeSysId"`
	Assignment    timeblock.Assignment `json:"assignment"`
	DayHours      [7]float64           `json:"dayHours"`
	TotalHours    float64              `json:"totalHours"`
	BlockIDs      []string             `json:"blockIds"`
	Comments      []string             `json:"comments"`
}

// InvalidBlock pairs a rejected block with its validation failure.
type InvalidBlock struct {
	Block  timeblock.TimeBlock `json:"block"`
	Reason string              `json:"reason"`
}

// GroupingResult is the full outcome of BuildSyncGroups.
type GroupingResult struct {
	Groups         []SyncGroup    `json:"groups"`
	InvalidBlocks  []InvalidBlock `json:"invalidBlocks"`
	RequestedCount int            `json:"requestedBlockCount"`
}

// BuildSyncGroups prepares blocks for upload. Blocks with incomplete
// assignment metadata are collected as invalid rather than failing the
// whole call. Accepted blocks are split at local midnights, assigned to
// the Monday-start week of each slice, and bucketed by
// (weekStart, selectionType, selectionKey, codeSysId). Weekday buckets are
// rounded half-up to two decimals only after all slice summation, and the
// group total is the sum of the rounded buckets, so the total and the
// buckets can never disagree.
func BuildSyncGroups(blocks []timeblock.TimeBlock) GroupingResult {
	result := GroupingResult{RequestedCount: len(blocks)}

	type groupKey struct {
		weekStart     string
		selectionType string
		selectionKey  string
		codeSysID     string
	}
	index := map[groupKey]int{}
	seenIDs := map[int]map[string]bool{}
	seenComments := map[int]map[string]bool{}

	for _, b := range blocks {
		if err := b.Assignment.Validate(); err != nil {
			result.InvalidBlocks = append(result.InvalidBlocks, InvalidBlock{
				Block:  b,
				Reason: err.Error(),
			})
			continue
		}

		for _, slice := range SplitBlockByDay(b) {
			key := groupKey{
				weekStart:     timeutil.WeekKey(slice.StartMs),
				selectionType: b.SelectionType,
				selectionKey:  b.SelectionKey(),
				codeSysID:     b.CodeSysID,
			}

			i, ok := index[key]
			if !ok {
				i = len(result.Groups)
				index[key] = i
				seenIDs[i] = map[string]bool{}
				seenComments[i] = map[string]bool{}
				result.Groups = append(result.Groups, SyncGroup{
					WeekStart:     key.weekStart,
					SelectionType: key.selectionType,
					SelectionKey:  key.selectionKey,
					CodeSysID:     key.codeSysID,
					Assignment:    b.Assignment,
				})
			}

			g := &result.Groups[i]
			g.DayHours[timeutil.WeekdayIndex(slice.StartMs)] += float64(slice.DurationMs) / msPerHour

			if !seenIDs[i][b.ID] {
				seenIDs[i][b.ID] = true
				g.BlockIDs = append(g.BlockIDs, b.ID)
			}
			if c := b.CommentText; c != "" && !seenComments[i][c] {
				seenComments[i][c] = true
				g.Comments = append(g.Comments, c)
			}
		}
	}

	// Round the buckets first and total the rounded values, so the
	// published total always equals the sum of the seven weekday buckets.
	for i := range result.Groups {
		g := &result.Groups[i]
		var total float64
		for d := range g.DayHours {
			g.DayHours[d] = roundHours(g.DayHours[d])
			total += g.DayHours[d]
		}
		g.TotalHours = roundHours(total)
	}

	return result
}

// roundHours rounds half-up at the hundredth of an hour.
func roundHours(h float64) float64 {
	return math.Floor(h*100+0.5) / 100
}

// Package timer implements the persistent task timer: a runtime snapshot
// with pure transition functions, and an Engine that owns the single live
// instance, its periodic tick, and persistence around every transition.
package timer

import (
	"context"

	"github.com/colonyops/tempo/internal/core/timeblock"
)

// Runtime is the process-wide timer state. It is persisted on every
// transition so a fresh process can reconstruct it; the in-memory tick is
// derived state and is re-armed from the snapshot, never persisted.
//
// Invariants: IsRunning implies ActiveBlockStartMs != nil; elapsed time is
// always derived from the wall clock, never from tick counting.
type Runtime struct {
	SavedTaskName         string               `json:"savedTaskName"`
	IsRunning             bool                 `json:"isRunning"`
	LastSavedDisplay      string               `json:"lastSavedDisplay"`
	ElapsedBeforeActiveMs int64                `json:"elapsedBeforeActiveMs"`
	ActiveBlockStartMs    *int64               `json:"activeBlockStartMs,omitempty"`
	Assignment            timeblock.Assignment `json:"assignment"`
}

// Store persists the runtime snapshot.
type Store interface {
	// Load returns the last persisted snapshot, reporting false when none exists.
	Load(ctx context.Context) (Runtime, bool, error)
	Save(ctx context.Context, rt Runtime) error
	Clear(ctx context.Context) error
}

// Idle reports whether no task is saved.
func (r Runtime) Idle() bool {
	return r.SavedTaskName == ""
}

// ElapsedAt returns the total elapsed time for the current task at the
// given instant: the accumulated closed duration plus the live segment.
func (r Runtime) ElapsedAt(nowMs int64) int64 {
	if r.IsRunning && r.ActiveBlockStartMs != nil {
		return r.ElapsedBeforeActiveMs + (nowMs - *r.ActiveBlockStartMs)
	}
	return r.ElapsedBeforeActiveMs
}

// withStart returns the runtime transitioned to running at nowMs.
// baseElapsedMs is the task's accumulated duration from stored blocks.
func withStart(r Runtime, task string, asgn timeblock.Assignment, baseElapsedMs, nowMs int64) Runtime {
	next := r
	next.SavedTaskName = task
	next.IsRunning = true
	next.ElapsedBeforeActiveMs = baseElapsedMs
	next.ActiveBlockStartMs = &nowMs
	next.Assignment = asgn
	return next
}

// withStop closes the live segment at nowMs, folding its duration into the
// accumulated total. segmentStart reports the closed segment's start;
// hasSegment is false when the runtime had no live segment to close.
func withStop(r Runtime, nowMs int64, lastSavedDisplay string) (next Runtime, segmentStart int64, hasSegment bool) {
	next = r
	next.IsRunning = false

	if r.ActiveBlockStartMs == nil {
		return next, 0, false
	}

	segmentStart = *r.ActiveBlockStartMs
	next.ActiveBlockStartMs = nil
	next.ElapsedBeforeActiveMs += nowMs - segmentStart
	next.LastSavedDisplay = lastSavedDisplay
	return next, segmentStart, true
}

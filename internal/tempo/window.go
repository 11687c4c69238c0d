package tempo

import (
	"fmt"
	"time"

	"github.com/colonyops/tempo/internal/core/config"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/pkg/timeutil"
)

// Window is a half-open [StartMs, EndMs) time range. A zero Window is
// unbounded and matches every block.
type Window struct {
	StartMs int64
	EndMs   int64
}

// Unbounded reports whether the window matches everything.
func (w Window) Unbounded() bool {
	return w.StartMs == 0 && w.EndMs == 0
}

// Contains reports whether an instant falls inside the window.
func (w Window) Contains(ms int64) bool {
	if w.Unbounded() {
		return true
	}
	return ms >= w.StartMs && ms < w.EndMs
}

// Filter keeps the blocks whose start instant falls inside the window.
func (w Window) Filter(blocks []timeblock.TimeBlock) []timeblock.TimeBlock {
	if w.Unbounded() {
		return blocks
	}

	kept := make([]timeblock.TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		if w.Contains(b.StartMs) {
			kept = append(kept, b)
		}
	}
	return kept
}

// ResolveWindow turns a range preset into a concrete window around now.
// Custom ranges take inclusive YYYY-MM-DD dates; the end date's whole day
// is included.
func ResolveWindow(preset string, now time.Time, customStart, customEnd string) (Window, error) {
	switch preset {
	case config.RangeToday:
		start := timeutil.StartOfToday(now)
		return Window{StartMs: start.UnixMilli(), EndMs: start.AddDate(0, 0, 1).UnixMilli()}, nil

	case config.RangeThisWeek:
		start := timeutil.StartOfWeek(now.UnixMilli())
		return Window{StartMs: start.UnixMilli(), EndMs: start.AddDate(0, 0, 7).UnixMilli()}, nil

	case config.RangeThisMonth:
		start := timeutil.StartOfMonth(now)
		return Window{StartMs: start.UnixMilli(), EndMs: start.AddDate(0, 1, 0).UnixMilli()}, nil

	case config.RangeCustom:
		if customStart == "" || customEnd == "" {
			return Window{}, fmt.Errorf("custom range requires both start and end dates")
		}
		start, err := time.ParseInLocation("2006-01-02", customStart, now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("parse start date %q: %w", customStart, err)
		}
		end, err := time.ParseInLocation("2006-01-02", customEnd, now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("parse end date %q: %w", customEnd, err)
		}
		if end.Before(start) {
			return Window{}, fmt.Errorf("end date %s is before start date %s", customEnd, customStart)
		}
		return Window{StartMs: start.UnixMilli(), EndMs: end.AddDate(0, 0, 1).UnixMilli()}, nil

	case config.RangeAll:
		return Window{}, nil

	default:
		return Window{}, fmt.Errorf("unknown range preset %q", preset)
	}
}

package tempo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tempo/internal/core/config"
	"github.com/colonyops/tempo/internal/core/timeblock"
)

// Wednesday mid-March.
var testNow = time.Date(2024, 3, 13, 15, 30, 0, 0, time.Local)

func TestResolveWindowToday(t *testing.T) {
	w, err := ResolveWindow(config.RangeToday, testNow, "", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.Local).UnixMilli(), w.StartMs)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.Local).UnixMilli(), w.EndMs)
}

func TestResolveWindowThisWeek(t *testing.T) {
	w, err := ResolveWindow(config.RangeThisWeek, testNow, "", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local).UnixMilli(), w.StartMs, "week starts Monday")
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.Local).UnixMilli(), w.EndMs)
}

func TestResolveWindowThisMonth(t *testing.T) {
	w, err := ResolveWindow(config.RangeThisMonth, testNow, "", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local).UnixMilli(), w.StartMs)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local).UnixMilli(), w.EndMs)
}

func TestResolveWindowCustom(t *testing.T) {
	w, err := ResolveWindow(config.RangeCustom, testNow, "2024-03-01", "2024-03-10")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local).UnixMilli(), w.StartMs)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local).UnixMilli(), w.EndMs, "end date is inclusive")
}

func TestResolveWindowCustomErrors(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
	}{
		{"missing start", "", "2024-03-10"},
		{"missing end", "2024-03-01", ""},
		{"bad start", "yesterday", "2024-03-10"},
		{"inverted", "2024-03-10", "2024-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveWindow(config.RangeCustom, testNow, tc.start, tc.end)
			require.Error(t, err)
		})
	}
}

func TestResolveWindowAll(t *testing.T) {
	w, err := ResolveWindow(config.RangeAll, testNow, "", "")
	require.NoError(t, err)
	assert.True(t, w.Unbounded())
}

func TestResolveWindowUnknownPreset(t *testing.T) {
	_, err := ResolveWindow("fortnight", testNow, "", "")
	require.Error(t, err)
}

func TestWindowFilter(t *testing.T) {
	w := Window{StartMs: 1000, EndMs: 2000}
	blocks := []timeblock.TimeBlock{
		{ID: "before", StartMs: 500},
		{ID: "inside", StartMs: 1500},
		{ID: "at-start", StartMs: 1000},
		{ID: "at-end", StartMs: 2000},
	}

	kept := w.Filter(blocks)
	ids := make([]string, 0, len(kept))
	for _, b := range kept {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"inside", "at-start"}, ids, "window is half-open [start, end)")
}

func TestWindowUnboundedKeepsEverything(t *testing.T) {
	blocks := []timeblock.TimeBlock{{ID: "a"}, {ID: "b"}}
	assert.Len(t, Window{}.Filter(blocks), 2)
}

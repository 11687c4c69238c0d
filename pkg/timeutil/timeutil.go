// Package timeutil provides epoch-millisecond helpers shared by the timer,
// aggregation, and sync packages. All calendar math is done in local time.
package timeutil

import (
	"fmt"
	"time"
)

// MsToTime converts epoch milliseconds to a local time.Time.
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).Local()
}

// FormatHMS renders a millisecond duration as "1h 2m 3s".
func FormatHMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
}

// FormatTimestamp renders epoch milliseconds as a human-readable local
// timestamp, e.g. "02/01/2006 15:04:05".
func FormatTimestamp(ms int64) string {
	return MsToTime(ms).Format("02/01/2006 15:04:05")
}

// DayKey returns the local calendar-day key (YYYY-MM-DD) for the instant.
func DayKey(ms int64) string {
	return MsToTime(ms).Format("2006-01-02")
}

// StartOfDay returns local midnight of the day containing the instant.
func StartOfDay(ms int64) time.Time {
	t := MsToTime(ms)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextMidnight returns local midnight of the day after the one containing
// the instant. DST transitions are handled by time.Date normalization.
func NextMidnight(ms int64) time.Time {
	t := MsToTime(ms)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns local midnight of the Monday of the week containing
// the instant. Weeks start on Monday.
func StartOfWeek(ms int64) time.Time {
	t := StartOfDay(ms)
	offset := int(t.Weekday())
	if offset == 0 {
		offset = 7
	}
	return t.AddDate(0, 0, -offset+1)
}

// WeekKey returns the YYYY-MM-DD key of the Monday starting the week that
// contains the instant.
func WeekKey(ms int64) string {
	return StartOfWeek(ms).Format("2006-01-02")
}

// WeekdayIndex returns the Monday-based weekday index (Mon=0 .. Sun=6)
// for the instant.
func WeekdayIndex(ms int64) int {
	wd := int(MsToTime(ms).Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

// StartOfToday returns local midnight of the current day.
func StartOfToday(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// StartOfMonth returns local midnight of the first day of the current month.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

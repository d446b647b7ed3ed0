package meta

import (
	"fmt"
	"time"
)

// Supported relative-date presets, mirroring the subset of Graph API
// date_preset values the dashboard exposes.
const (
	PresetToday     = "today"
	PresetYesterday = "yesterday"
	PresetLast7d    = "last_7d"
	PresetLast30d   = "last_30d"
	PresetThisMonth = "this_month"
	PresetLastMonth = "last_month"
)

// ResolvePreset translates a named preset into inclusive [start, end] date
// boundaries anchored on the provided day. Pure calendar arithmetic; the
// anchor is normally time.Now() but tests pin it.
func ResolvePreset(preset string, today time.Time) (time.Time, time.Time, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	switch preset {
	case PresetToday:
		return day, day, nil
	case PresetYesterday:
		y := day.AddDate(0, 0, -1)
		return y, y, nil
	case PresetLast7d:
		// trailing window ending yesterday, like the upstream preset
		end := day.AddDate(0, 0, -1)
		return end.AddDate(0, 0, -6), end, nil
	case PresetLast30d:
		end := day.AddDate(0, 0, -1)
		return end.AddDate(0, 0, -29), end, nil
	case PresetThisMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, day, nil
	case PresetLastMonth:
		firstOfThis := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := firstOfThis.AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown date preset %q", preset)
	}
}

// DaysBetween expands an inclusive date range into its individual days.
func DaysBetween(start, end time.Time) []time.Time {
	start = start.Truncate(24 * time.Hour)
	end = end.Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

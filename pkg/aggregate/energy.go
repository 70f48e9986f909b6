// Package aggregate turns raw WattWise API rows into chart-ready series. Every
// function here is pure: the same rows always produce the same output and
// nothing outside the arguments is read or written.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/wattwise/wattwise/pkg/types"
)

// ViewMode selects the bucket size of an energy series.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// ParseViewMode validates a user-supplied view mode. An empty string means
// ViewDay.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewDay:
		return ViewDay, nil
	case ViewWeek:
		return ViewWeek, nil
	case ViewMonth:
		return ViewMonth, nil
	default:
		return "", fmt.Errorf("unknown view mode: %s", s)
	}
}

// Rollup buckets daily rows by mode. ViewDay passes every row through in its
// original order. ViewWeek keys each row by the Monday starting its week and
// ViewMonth by the first day of its month; energy is summed per bucket and
// the output is ascending by key. An empty input yields an empty output.
func Rollup(rows []types.DailyEnergyRow, mode ViewMode) []types.EnergyPoint {
	if len(rows) == 0 {
		return []types.EnergyPoint{}
	}

	if mode == ViewDay || mode == "" {
		out := make([]types.EnergyPoint, len(rows))
		for i, r := range rows {
			out[i] = types.EnergyPoint{
				Date:      r.Date,
				EnergyKWH: r.EnergyKWH.Float(),
				Count:     1,
			}
		}
		return out
	}

	groups := make(map[string]*types.EnergyPoint)
	for _, r := range rows {
		key := bucketKey(r.Date, mode)
		g, ok := groups[key]
		if !ok {
			g = &types.EnergyPoint{Date: key}
			groups[key] = g
		}
		g.EnergyKWH += r.EnergyKWH.Float()
		g.Count++
	}

	out := make([]types.EnergyPoint, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// MergeDaily sums rows sharing a date into one point per distinct date,
// ascending by date.
func MergeDaily(rows []types.DailyEnergyRow) []types.EnergyPoint {
	groups := make(map[string]*types.EnergyPoint)
	for _, r := range rows {
		g, ok := groups[r.Date]
		if !ok {
			g = &types.EnergyPoint{Date: r.Date}
			groups[r.Date] = g
		}
		g.EnergyKWH += r.EnergyKWH.Float()
		g.Count++
	}
	out := make([]types.EnergyPoint, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// bucketKey returns the week or month start for date. Dates that don't parse
// stay in a bucket of their own so no energy is lost.
func bucketKey(date string, mode ViewMode) string {
	d, ok := parseDate(date)
	if !ok {
		return date
	}
	switch mode {
	case ViewWeek:
		return StartOfWeek(d).Format(types.DateLayout)
	case ViewMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).Format(types.DateLayout)
	default:
		return d.Format(types.DateLayout)
	}
}

// StartOfWeek returns the Monday on or before d.
func StartOfWeek(d time.Time) time.Time {
	// Sunday is 0 so shift it to the end of the week
	offset := (int(d.Weekday()) + 6) % 7
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -offset)
}

// parseDate reads the calendar date at the front of s, which also accepts
// full timestamps such as "2024-01-01T00:00:00".
func parseDate(s string) (time.Time, bool) {
	if len(s) < len(types.DateLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(types.DateLayout, s[:len(types.DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

package chart

import (
	"sort"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// PlaybackState is the visible-window position of a playback controller.
// Index counts the leading points currently visible.
type PlaybackState struct {
	Index   int  `json:"index"`
	Playing bool `json:"playing"`
}

// Active reports whether playback truncation applies.
func (s PlaybackState) Active() bool {
	return s.Playing || s.Index > 0
}

type datedPoint struct {
	Point
	day timeutil.Day
	ok  bool
}

// ApplyPipeline sorts points by calendar day, applies the inclusive date range
// and truncates to the playback window. The input slice is never modified.
//
// Points whose date cannot be parsed keep their relative order after all
// parseable points and are dropped whenever a date-range bound is set.
// Unparseable bounds are ignored.
func ApplyPipeline(points []Point, r DateRange, pb PlaybackState) []Point {
	out := filterRange(sortedByDay(points), r)
	if pb.Active() {
		n := pb.Index
		if n < 0 {
			n = 0
		}
		if n < len(out) {
			out = out[:n]
		}
	}
	return out
}

// VisibleLength returns the number of points left after sorting and range
// filtering, which is the playback length for the current selection.
func VisibleLength(points []Point, r DateRange) int {
	return len(filterRange(sortedByDay(points), r))
}

func sortedByDay(points []Point) []datedPoint {
	dp := make([]datedPoint, len(points))
	for i, p := range points {
		d, ok := timeutil.ParseDay(p.Date)
		dp[i] = datedPoint{Point: p, day: d, ok: ok}
	}
	sort.SliceStable(dp, func(i, j int) bool {
		a, b := dp[i], dp[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.day.Before(b.day)
	})
	return dp
}

func filterRange(dp []datedPoint, r DateRange) []Point {
	start, hasStart := timeutil.ParseDay(r.Start)
	end, hasEnd := timeutil.ParseDay(r.End)

	out := make([]Point, 0, len(dp))
	for _, p := range dp {
		if hasStart || hasEnd {
			if !p.ok {
				continue
			}
			if hasStart && p.day.Before(start) {
				continue
			}
			if hasEnd && p.day.After(end) {
				continue
			}
		}
		out = append(out, p.Point)
	}
	return out
}

// Labels returns the display labels for points: the calendar day when the
// date parses, the raw string otherwise.
func Labels(points []Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		if d, ok := timeutil.ParseDay(p.Date); ok {
			out[i] = d.String()
		} else {
			out[i] = p.Date
		}
	}
	return out
}

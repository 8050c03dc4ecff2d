package provision

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when a request leaves the cadence fields zero.
const (
	DefaultSprintCount = 26
	DefaultSprintWeeks = 2
)

// SanitizeTeamName normalizes a team name for Azure DevOps: runs of
// whitespace and hyphens become underscores. Iteration and area paths
// embed the team name, so it must be path-safe.
func SanitizeTeamName(name string) string {
	s := strings.Join(strings.Fields(name), "_")
	return strings.ReplaceAll(s, "-", "_")
}

// DefaultTeamName is the team name used when a request does not declare
// one.
func DefaultTeamName(project string) string {
	return SanitizeTeamName("Time_" + project)
}

// Window is one iteration's name and date span.
type Window struct {
	Name   string
	Start  time.Time
	Finish time.Time
}

// nextMonday returns t if it falls on a Monday, otherwise the first
// Monday after it. Time-of-day is dropped.
func nextMonday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

// SprintWindows computes the sprint iterations for a team: count sprints
// of the given length in weeks, the first one starting on the first Monday
// on or after start. Every sprint begins a Monday and finishes the Friday
// of its last week, so consecutive sprints never overlap and weekends are
// never inside a sprint boundary.
func SprintWindows(start time.Time, count, weeks int) []Window {
	if count <= 0 {
		count = DefaultSprintCount
	}
	if weeks < 1 {
		weeks = DefaultSprintWeeks
	}

	windows := make([]Window, 0, count)
	cur := nextMonday(start)
	for i := 1; i <= count; i++ {
		windows = append(windows, Window{
			Name:   fmt.Sprintf("Sprint %d", i),
			Start:  cur,
			Finish: cur.AddDate(0, 0, 7*weeks-3),
		})
		cur = cur.AddDate(0, 0, 7*weeks)
	}
	return windows
}

// monthAbbrev holds the Portuguese month abbreviations used in monthly
// iteration names.
var monthAbbrev = [12]string{
	"JAN", "FEV", "MAR", "ABR", "MAI", "JUN",
	"JUL", "AGO", "SET", "OUT", "NOV", "DEZ",
}

// MonthlyWindows computes the iterations of a sustaining team: one per
// calendar month covering the year of now plus the following year, named
// like "JAN-2026". Each window spans the first through the last day of
// its month.
func MonthlyWindows(now time.Time) []Window {
	windows := make([]Window, 0, 24)
	for _, year := range []int{now.Year(), now.Year() + 1} {
		for m := time.January; m <= time.December; m++ {
			start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			windows = append(windows, Window{
				Name:   fmt.Sprintf("%s-%d", monthAbbrev[m-1], year),
				Start:  start,
				Finish: start.AddDate(0, 1, -1),
			})
		}
	}
	return windows
}

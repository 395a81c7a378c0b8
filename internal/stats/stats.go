// Package stats aggregates activity records for the statistics view.
package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/wellness/internal/domain"
)

// Period selects the aggregation window.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod maps a query value to a Period, defaulting to Daily.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", domain.ErrValidation, s)
}

// WindowStart returns the inclusive lower bound of period relative to now,
// computed in now's location. Weeks start on Sunday.
func WindowStart(period Period, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch period {
	case Weekly:
		return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// TypeCount is one row of the per-type breakdown.
type TypeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Emoji string `json:"emoji"`
}

// Report is the aggregate over the records inside one window.
type Report struct {
	Period      Period      `json:"period"`
	WindowStart time.Time   `json:"window_start"`
	Total       int         `json:"total"`
	ByType      []TypeCount `json:"by_type"`
	ByDayOfWeek [7]int      `json:"by_day_of_week"`
	ByHourOfDay [24]int     `json:"by_hour_of_day"`

	filtered []domain.ActivityRecord
	kinds    map[string]domain.ValueKind
}

// Aggregate filters records to the period window ending at now and builds
// the breakdowns. Definitions, when given, declare how each type's values
// are interpreted by TypeStat. Aggregate does no I/O.
func Aggregate(records []domain.ActivityRecord, period Period, now time.Time, defs ...domain.ActivityDefinition) Report {
	start := WindowStart(period, now)
	loc := now.Location()

	report := Report{
		Period:      period,
		WindowStart: start,
		ByType:      []TypeCount{},
		kinds:       make(map[string]domain.ValueKind, len(defs)),
	}
	for _, def := range defs {
		report.kinds[strings.ToLower(def.Name)] = def.ValueKind
	}

	index := make(map[string]int)
	for _, r := range records {
		if r.CreatedAt.Before(start) {
			continue
		}
		report.filtered = append(report.filtered, r)
		report.Total++

		local := r.CreatedAt.In(loc)
		report.ByDayOfWeek[local.Weekday()]++
		report.ByHourOfDay[local.Hour()]++

		i, ok := index[r.ActivityType]
		if !ok {
			emoji := r.Emoji
			if emoji == "" {
				emoji = domain.DefaultEmoji
			}
			index[r.ActivityType] = len(report.ByType)
			report.ByType = append(report.ByType, TypeCount{Name: r.ActivityType, Emoji: emoji})
			i = len(report.ByType) - 1
		}
		report.ByType[i].Count++
	}
	return report
}

// TypeStat summarises one activity type inside the window. Types whose
// values are numeric yield the sum of parseable values with one decimal;
// otherwise the occurrence count is returned. No records yields "0".
func (r Report) TypeStat(activityType string) string {
	count := 0
	sum := 0.0
	numeric := 0
	kind := r.kinds[strings.ToLower(activityType)]
	for _, rec := range r.filtered {
		if rec.ActivityType != activityType {
			continue
		}
		count++
		if !kind.Numeric() {
			continue
		}
		if v, ok := rec.NumericValue(); ok {
			sum += v
			numeric++
		}
	}
	if count == 0 {
		return "0"
	}
	if numeric > 0 {
		return strconv.FormatFloat(sum, 'f', 1, 64)
	}
	return strconv.Itoa(count)
}

// TypeStats returns TypeStat for every type present plus the extra names.
func (r Report) TypeStats(extra ...string) map[string]string {
	out := make(map[string]string, len(r.ByType)+len(extra))
	for _, tc := range r.ByType {
		out[tc.Name] = r.TypeStat(tc.Name)
	}
	for _, name := range extra {
		if _, ok := out[name]; !ok {
			out[name] = r.TypeStat(name)
		}
	}
	return out
}

// Records returns the records inside the window.
func (r Report) Records() []domain.ActivityRecord {
	return r.filtered
}

// DayNames labels ByDayOfWeek buckets.
var DayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

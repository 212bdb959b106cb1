package api

import (
	"fmt"
	"time"
)

// PeriodLayout is the minute-precision timestamp format of the market API.
const PeriodLayout = "200601021504"

// Window is a closed time range [Start, End] at minute precision.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow validates start <= end.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, &ValidationError{Field: "window", Reason: "missing timestamp"}
	}
	if start.After(end) {
		return Window{}, &ValidationError{Field: "window", Reason: "start time must not be after end time"}
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindow parses two yyyyMMddHHmm timestamps, interpreted in UTC.
func ParseWindow(periodStart, periodEnd string) (Window, error) {
	start, err := ParsePeriod(periodStart)
	if err != nil {
		return Window{}, err
	}
	end, err := ParsePeriod(periodEnd)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(start, end)
}

// ParsePeriod parses a yyyyMMddHHmm timestamp in UTC.
func ParsePeriod(value string) (time.Time, error) {
	t, err := time.ParseInLocation(PeriodLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "period", Reason: fmt.Sprintf("%q is not in yyyyMMddHHmm format", value)}
	}
	return t, nil
}

// FormatPeriod renders t in the market API's format, in UTC.
func FormatPeriod(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// Contains reports whether t lies within the closed window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return FormatPeriod(w.Start) + "-" + FormatPeriod(w.End)
}

const chunkMonths = 3

// SplitYearlyRange cuts a window into consecutive chunks of at most three
// months. Chunk boundaries fall on calendar midnights three months apart; each
// chunk but the last ends one minute before the next one starts. The last
// chunk is clipped to the window end.
func SplitYearlyRange(w Window) []Window {
	var chunks []Window
	start := w.Start
	for {
		next := AddMonths(midnight(start), chunkMonths)
		end := next.Add(-time.Minute)
		if !end.Before(w.End) {
			return append(chunks, Window{Start: start, End: w.End})
		}
		chunks = append(chunks, Window{Start: start, End: end})
		start = next
	}
}

// SplitPeriods is SplitYearlyRange over yyyyMMddHHmm bounds.
func SplitPeriods(periodStart, periodEnd string) ([]Window, error) {
	w, err := ParseWindow(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return SplitYearlyRange(w), nil
}

// AddMonths adds months without spilling into the following month:
// Nov 30 + 3 months is Feb 28, not Mar 2.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), 0, 0, t.Location())
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

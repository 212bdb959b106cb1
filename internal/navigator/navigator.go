// Package navigator holds the chart's view state: which granularity is shown
// and which date it is anchored on.
package navigator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejusbharadwaj/elecview/internal/aggregate"
	"github.com/tejusbharadwaj/elecview/internal/api"
)

var (
	ErrFutureDate   = errors.New("date is after today")
	ErrUnknownState = errors.New("unknown view")
)

// State is the view granularity.
type State string

const (
	Day   State = "DAY"
	Week  State = "WEEK"
	Month State = "MONTH"
	Year  State = "YEAR"
	YTD   State = "YTD"
)

const dateLabel = "02.01.2006"

// States lists every view in display order.
func States() []State {
	return []State{Day, Week, Month, Year, YTD}
}

// ParseState accepts a view name in any case.
func ParseState(s string) (State, error) {
	state := State(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rules[state]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
	return state, nil
}

type rule struct {
	step      func(anchor time.Time, n int) time.Time
	first     func(anchor time.Time) time.Time
	last      func(anchor time.Time) time.Time
	bucket    aggregate.Func
	title     func(anchor time.Time) string
	navigable bool
}

var rules = map[State]rule{
	Day: {
		step:      func(a time.Time, n int) time.Time { return a.AddDate(0, 0, n) },
		first:     startOfDay,
		last:      startOfDay,
		bucket:    aggregate.Hourly,
		title:     func(a time.Time) string { return a.Format(dateLabel) },
		navigable: true,
	},
	Week: {
		step:      func(a time.Time, n int) time.Time { return a.AddDate(0, 0, 7*n) },
		first:     aggregate.WeekStart,
		last:      func(a time.Time) time.Time { return aggregate.WeekStart(a).AddDate(0, 0, 6) },
		bucket:    aggregate.Week,
		title:     func(a time.Time) string { return rangeLabel(aggregate.WeekStart(a), aggregate.WeekStart(a).AddDate(0, 0, 6)) },
		navigable: true,
	},
	Month: {
		step:      api.AddMonths,
		first:     startOfMonth,
		last:      func(a time.Time) time.Time { return startOfMonth(a).AddDate(0, 1, -1) },
		bucket:    aggregate.MonthDays,
		title:     func(a time.Time) string { return a.Format("January 2006") },
		navigable: true,
	},
	Year: {
		step:      func(a time.Time, n int) time.Time { return api.AddMonths(a, 12*n) },
		first:     startOfYear,
		last:      func(a time.Time) time.Time { return startOfYear(a).AddDate(1, 0, -1) },
		bucket:    aggregate.Year,
		title:     func(a time.Time) string { return a.Format("2006") },
		navigable: true,
	},
	YTD: {
		step:   func(a time.Time, n int) time.Time { return api.AddMonths(a, 12*n) },
		first:  startOfYear,
		last:   startOfDay,
		bucket: aggregate.YearToDate,
		title:  func(a time.Time) string { return rangeLabel(startOfYear(a), a) },
	},
}

// Transition moves anchor by offset units of state and returns the state,
// the new anchor and the bucketing function of the resulting view. It does
// not check the anchor against today.
func Transition(state State, anchor time.Time, offset int) (State, time.Time, aggregate.Func, error) {
	r, ok := rules[state]
	if !ok {
		return "", time.Time{}, nil, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	return state, startOfDay(r.step(anchor, offset)), r.bucket, nil
}

// WindowFor returns the fetch window of a view: from midnight of its first
// day to 23:00 of its last day, in the anchor's location.
func WindowFor(state State, anchor time.Time) (api.Window, error) {
	r, ok := rules[state]
	if !ok {
		return api.Window{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	last := r.last(anchor)
	return api.Window{
		Start: r.first(anchor),
		End:   time.Date(last.Year(), last.Month(), last.Day(), 23, 0, 0, 0, last.Location()),
	}, nil
}

// TitleFor returns the header label of a view.
func TitleFor(state State, anchor time.Time) string {
	r, ok := rules[state]
	if !ok {
		return ""
	}
	return r.title(anchor)
}

// BucketsFor returns the bucketing function of a view.
func BucketsFor(state State) (aggregate.Func, error) {
	r, ok := rules[state]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	return r.bucket, nil
}

// Navigator tracks the state and anchor of one chart. It is not safe for
// concurrent use.
type Navigator struct {
	state  State
	anchor time.Time
	now    func() time.Time
}

// New returns a navigator showing today in DAY view. A nil clock uses
// time.Now.
func New(now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	return &Navigator{state: Day, anchor: startOfDay(now()), now: now}
}

func (n *Navigator) State() State {
	return n.state
}

func (n *Navigator) Anchor() time.Time {
	return n.anchor
}

// Show switches the view, keeping the anchor.
func (n *Navigator) Show(state State) error {
	if _, ok := rules[state]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	n.state = state
	return nil
}

// SetDate moves the anchor to date. Dates after today are rejected.
func (n *Navigator) SetDate(date time.Time) error {
	date = startOfDay(date)
	if n.isFuture(date) {
		return fmt.Errorf("%w: %s", ErrFutureDate, date.Format(dateLabel))
	}
	n.anchor = date
	return nil
}

// Advance moves the anchor by offset units of the current view. When the
// result would be after today the anchor is left unchanged and
// ErrFutureDate is returned.
func (n *Navigator) Advance(offset int) error {
	_, next, _, err := Transition(n.state, n.anchor, offset)
	if err != nil {
		return err
	}
	if n.isFuture(next) {
		return fmt.Errorf("%w: %s", ErrFutureDate, next.Format(dateLabel))
	}
	n.anchor = next
	return nil
}

// Window returns the fetch window of the current view.
func (n *Navigator) Window() api.Window {
	w, _ := WindowFor(n.state, n.anchor)
	return w
}

// Title returns the header label of the current view.
func (n *Navigator) Title() string {
	return TitleFor(n.state, n.anchor)
}

// Buckets returns the bucketing function of the current view.
func (n *Navigator) Buckets() aggregate.Func {
	f, _ := BucketsFor(n.state)
	return f
}

// Navigable reports whether back/forward controls apply. YTD always ends at
// its anchor, so it is not stepped through.
func (n *Navigator) Navigable() bool {
	return rules[n.state].navigable
}

func (n *Navigator) isFuture(date time.Time) bool {
	today := startOfDay(n.now().In(n.anchor.Location()))
	return startOfDay(date).After(today)
}

func rangeLabel(from, to time.Time) string {
	return from.Format(dateLabel) + " - " + to.Format(dateLabel)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// Package chart answers "show me country X in view V around date D": it
// resolves the view's window, fetches the series and buckets them.
package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/elecview/internal/aggregate"
	"github.com/tejusbharadwaj/elecview/internal/api"
	"github.com/tejusbharadwaj/elecview/internal/models"
	"github.com/tejusbharadwaj/elecview/internal/navigator"
)

// Fetcher is the series source of the service. *api.SeriesFetcher
// implements it.
type Fetcher interface {
	FetchRange(ctx context.Context, country string, w api.Window) ([]models.TimePoint, error)
	Catalog() *api.Catalog
}

// Directory lists country names known upstream. *api.ZoneDirectory
// implements it.
type Directory interface {
	Countries(ctx context.Context) ([]string, error)
}

// Request selects one chart.
type Request struct {
	Country string          `json:"country"`
	View    navigator.State `json:"view"`
	// Anchor is any time on the anchor date; zero means today.
	Anchor time.Time `json:"anchor"`
}

// Result is a bucketed chart ready to render.
type Result struct {
	Country   string             `json:"country"`
	View      navigator.State    `json:"view"`
	Anchor    time.Time          `json:"anchor"`
	Title     string             `json:"title"`
	Window    api.Window         `json:"window"`
	Navigable bool               `json:"navigable"`
	Buckets   []aggregate.Bucket `json:"buckets"`
	// Final is set when the window ended before the day the result was
	// built, so the data can no longer change.
	Final bool `json:"final"`
}

// Cacheable reports whether the result may be served again later.
func (r *Result) Cacheable() bool {
	return r != nil && r.Final
}

// Countries lists chartable countries and, when a directory is configured,
// every country the upstream zone registry knows.
type Countries struct {
	Chartable []string `json:"chartable"`
	Known     []string `json:"known,omitempty"`
}

// Service builds charts. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	fetcher   Fetcher
	directory Directory
	logger    *logrus.Logger
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Service)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the calendar used for anchors, windows and buckets.
// The default is UTC, matching the market API's period parameters.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithDirectory(d Directory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

func NewService(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chart fetches and buckets one view. Anchors after today are rejected with
// a validation error before any fetch.
func (s *Service) Chart(ctx context.Context, req Request) (*Result, error) {
	view := req.View
	if view == "" {
		view = navigator.Day
	}
	view, err := navigator.ParseState(string(view))
	if err != nil {
		return nil, &api.ValidationError{Field: "view", Reason: err.Error()}
	}

	today := startOfDay(s.now().In(s.loc))
	anchor := today
	if !req.Anchor.IsZero() {
		anchor = startOfDay(req.Anchor.In(s.loc))
	}
	if anchor.After(today) {
		return nil, &api.ValidationError{
			Field:  "date",
			Reason: fmt.Sprintf("%v: %s", navigator.ErrFutureDate, anchor.Format(api.DateLayout)),
		}
	}

	_, anchor, bucket, err := navigator.Transition(view, anchor, 0)
	if err != nil {
		return nil, err
	}
	window, err := navigator.WindowFor(view, anchor)
	if err != nil {
		return nil, err
	}

	start := s.now()
	points, err := s.fetcher.FetchRange(ctx, req.Country, window)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Country:   req.Country,
		View:      view,
		Anchor:    anchor,
		Title:     navigator.TitleFor(view, anchor),
		Window:    window,
		Navigable: view != navigator.YTD,
		Buckets:   bucket(points, anchor),
		Final:     window.End.Before(today),
	}

	s.logger.WithFields(logrus.Fields{
		"country":  req.Country,
		"view":     view,
		"anchor":   anchor.Format(api.DateLayout),
		"points":   len(points),
		"buckets":  len(result.Buckets),
		"duration": s.now().Sub(start),
	}).Debug("Chart built")

	return result, nil
}

// Countries returns the chartable countries and, if a directory is set,
// the upstream registry's list. A failing directory fails the call.
func (s *Service) Countries(ctx context.Context) (Countries, error) {
	out := Countries{Chartable: s.fetcher.Catalog().Names()}
	if s.directory == nil {
		return out, nil
	}
	known, err := s.directory.Countries(ctx)
	if err != nil {
		return Countries{}, err
	}
	out.Known = known
	return out, nil
}

// Start runs Chart in the background. The task is cancelled when ctx is or
// when Cancel is called.
func (s *Service) Start(ctx context.Context, req Request) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = s.Chart(ctx, req)
		if t.err != nil && ctx.Err() != nil && !errors.Is(t.err, ctx.Err()) {
			t.err = fmt.Errorf("%w: %v", ctx.Err(), t.err)
		}
	}()
	return t
}

// Task is a chart request running in the background.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	result *Result
	err    error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its outcome.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}

// Cancel abandons the task. Wait then returns an error wrapping
// context.Canceled unless the chart had already been built.
func (t *Task) Cancel() {
	t.cancel()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package server

import (
	"strings"
	"time"

	"github.com/tejusbharadwaj/elecview/internal/api"
	"github.com/tejusbharadwaj/elecview/internal/navigator"
)

const maxNameLength = 200

// RequestValidator checks request shape before anything is fetched or
// stored. Whether a country is known is left to the catalog.
type RequestValidator struct {
	validViews map[navigator.State]bool
	loc        *time.Location
}

func NewRequestValidator(loc *time.Location) *RequestValidator {
	if loc == nil {
		loc = time.UTC
	}
	views := make(map[navigator.State]bool)
	for _, s := range navigator.States() {
		views[s] = true
	}
	return &RequestValidator{validViews: views, loc: loc}
}

// ValidateChart checks a chart request and returns its view and anchor date.
// An empty view is DAY and an empty date is the zero time.
func (v *RequestValidator) ValidateChart(req *ChartRequest) (navigator.State, time.Time, error) {
	if strings.TrimSpace(req.Country) == "" {
		return "", time.Time{}, &api.ValidationError{Field: "country", Reason: "missing country"}
	}
	view, err := v.view(req.View)
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := v.date(req.Date)
	if err != nil {
		return "", time.Time{}, err
	}
	return view, date, nil
}

// ValidateSave checks a save request. The view is normalized to upper case.
func (v *RequestValidator) ValidateSave(req *SaveQueryRequest) (*SaveQueryRequest, error) {
	if err := v.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Country) == "" {
		return nil, &api.ValidationError{Field: "country", Reason: "missing country"}
	}
	if strings.ContainsAny(req.Country, ";\n") {
		return nil, &api.ValidationError{Field: "country", Reason: "country must not contain ';' or line breaks"}
	}
	if _, err := v.date(req.Date); err != nil {
		return nil, err
	}
	out := *req
	if req.View != "" {
		view, err := v.view(req.View)
		if err != nil {
			return nil, err
		}
		out.View = string(view)
	}
	return &out, nil
}

// ValidateName checks a saved query name.
func (v *RequestValidator) ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &api.ValidationError{Field: "name", Reason: "missing name"}
	}
	if len(name) > maxNameLength {
		return &api.ValidationError{Field: "name", Reason: "name too long"}
	}
	if strings.ContainsAny(name, "\r\n") {
		return &api.ValidationError{Field: "name", Reason: "name must be a single line"}
	}
	return nil
}

func (v *RequestValidator) view(s string) (navigator.State, error) {
	if s == "" {
		return navigator.Day, nil
	}
	view, err := navigator.ParseState(s)
	if err != nil || !v.validViews[view] {
		return "", &api.ValidationError{Field: "view", Reason: "invalid view: " + s}
	}
	return view, nil
}

func (v *RequestValidator) date(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation(api.DateLayout, s, v.loc)
	if err != nil {
		return time.Time{}, &api.ValidationError{Field: "date", Reason: "invalid date: " + s}
	}
	return date, nil
}

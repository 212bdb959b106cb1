package queries

import (
	"fmt"
	"strings"
	"time"
)

const paramSeparator = ";"

// Params is the decoded form of Record.Params: a country, and optionally the
// date and view that were on screen.
type Params struct {
	Country string    `json:"country"`
	Date    time.Time `json:"date,omitempty"`
	View    string    `json:"view,omitempty"`
}

// Encode joins the fields with semicolons, dropping empty trailing ones:
// "Finland", "Finland;2024-01-03" or "Finland;2024-01-03;WEEK".
func (p Params) Encode() string {
	fields := []string{p.Country}
	if !p.Date.IsZero() || p.View != "" {
		date := ""
		if !p.Date.IsZero() {
			date = p.Date.Format(DateLayout)
		}
		fields = append(fields, date)
	}
	if p.View != "" {
		fields = append(fields, p.View)
	}
	return strings.Join(fields, paramSeparator)
}

// DecodeParams parses an encoded parameter string.
func DecodeParams(s string) (Params, error) {
	fields := strings.Split(s, paramSeparator)
	if len(fields) > 3 {
		return Params{}, fmt.Errorf("params %q: expected at most 3 fields, got %d", s, len(fields))
	}

	p := Params{Country: strings.TrimSpace(fields[0])}
	if p.Country == "" {
		return Params{}, fmt.Errorf("params %q: country is empty", s)
	}
	if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
		date, err := time.Parse(DateLayout, strings.TrimSpace(fields[1]))
		if err != nil {
			return Params{}, fmt.Errorf("params %q: date: %w", s, err)
		}
		p.Date = date
	}
	if len(fields) > 2 {
		p.View = strings.TrimSpace(fields[2])
	}
	return p, nil
}

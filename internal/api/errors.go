package api

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamRequest = errors.New("error making upstream request")
	ErrUpstreamStatus  = errors.New("error status from upstream service")
	ErrMalformed       = errors.New("malformed upstream document")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Purpose names which upstream call a request served.
type Purpose string

const (
	PurposePrice       Purpose = "price"
	PurposeUsage       Purpose = "usage"
	PurposeTemperature Purpose = "temperature"
	PurposeZones       Purpose = "zones"
)

// FetchError reports a failed upstream call. StatusCode is zero when the
// request never got a response.
type FetchError struct {
	Purpose    Purpose
	Zone       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	target := string(e.Purpose)
	if e.Zone != "" {
		target = fmt.Sprintf("%s (zone %s)", e.Purpose, e.Zone)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports an upstream document that could not be decoded.
type ParseError struct {
	Purpose Purpose
	Detail  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Purpose, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Purpose, e.Detail)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformed
}

// ValidationError is raised before any network call when the request
// itself cannot be served.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

func parseErrorf(purpose Purpose, err error, format string, args ...interface{}) *ParseError {
	return &ParseError{Purpose: purpose, Detail: fmt.Sprintf(format, args...), Err: err}
}

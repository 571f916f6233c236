package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound indicates an unknown or expired checkout session.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSuperseded indicates a request was replaced by a newer one and its
	// result must be dropped.
	ErrSuperseded = errors.New("request superseded")
)

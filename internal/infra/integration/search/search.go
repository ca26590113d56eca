// Package search holds the result shape shared by the search backends.
package search

import "errors"

var (
	// ErrBackendUnreachable is distinct from an empty result page.
	ErrBackendUnreachable = errors.New("search backend unreachable")
	ErrNotConfigured      = errors.New("search backend not configured")
)

type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type Query struct {
	Text string
	Page int
}

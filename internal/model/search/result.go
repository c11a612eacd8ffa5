package search

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxResults is the result bound used when a caller does not pick one.
const DefaultMaxResults = 5

var (
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrInvalidMaxResults = errors.New("max results must be at least 1")
)

// Query is a single search request.
type Query struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Validate reports whether the query can be sent to the provider.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.MaxResults < 1 {
		return ErrInvalidMaxResults
	}
	return nil
}

// Result is one search hit. In fast mode only URL and Title are set.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	ReadingTime int    `json:"reading_time"`
	FaviconURL  string `json:"favicon_url,omitempty"`
	IsPaywall   bool   `json:"is_paywall"`
}

// Mode selects how results are produced.
type Mode string

const (
	// ModeFast streams listing entries as soon as they are parsed.
	ModeFast Mode = "fast"
	// ModeEnriched fetches and analyzes every page before returning.
	ModeEnriched Mode = "enriched"
)

// ParseMode maps a user supplied name to a Mode. An empty name means fast.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeFast:
		return ModeFast, nil
	case ModeEnriched:
		return ModeEnriched, nil
	default:
		return "", fmt.Errorf("unknown search mode %q", raw)
	}
}

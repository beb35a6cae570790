// Package wiki fetches encyclopedia topics and normalizes them into TopicData.
package wiki

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("topic not found")
	ErrDisambiguation = errors.New("topic is a disambiguation page")
	ErrTransient      = errors.New("transient fetch failure")
)

// TopicData is the normalized record returned for a fetched topic.
type TopicData struct {
	Title      string   // canonical title after redirects
	Summary    string   // introductory text
	URL        string   // canonical article URL
	Links      []string // outgoing article titles in page order, may repeat
	Categories []string
	Sections   []string // table-of-contents headings in order
	WordCount  int
}

// Fetcher retrieves a topic by title.
type Fetcher interface {
	Fetch(ctx context.Context, title string) (*TopicData, error)
}

// FetchError describes a failed fetch. Kind is one of ErrNotFound,
// ErrDisambiguation or ErrTransient and is matched by errors.Is.
type FetchError struct {
	Title string
	Kind  error
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %q: %v", e.Title, e.Kind)
	}
	return fmt.Sprintf("fetch %q: %v: %v", e.Title, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Reason returns a short diagnostic label for a fetch error
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDisambiguation):
		return "disambiguation"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

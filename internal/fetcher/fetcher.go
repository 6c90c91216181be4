// Package fetcher provides polite HTTP acquisition: robots.txt policy checks,
// a per-URL content cache and per-host request pacing.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// PageFetcher fetches a page through an access policy. The bool reports
// whether the policy permitted the fetch; a disallowed fetch returns a nil
// response and a nil error without touching the network.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, bool, error)
}

// Response is a fetched (or cached) page.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FetchedAt  time.Time
	FromCache  bool
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrDisallowed reports a fetch that robots.txt forbids.
var ErrDisallowed = errors.New("fetcher: disallowed by robots policy")

// FetchError reports a failed content fetch: a network error, a timeout or a
// non-success status. It is never used for policy decisions.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetcher: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetcher: fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

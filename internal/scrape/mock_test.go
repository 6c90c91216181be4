package scrape

import (
	"context"
	"net/http"
	"time"

	"github.com/proplens/proplens/internal/fetcher"
)

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	disallowed map[string]bool
	errs       map[string]error
	pages      map[string]*fetcher.Response
	calls      []string
	timeouts   []time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		disallowed: make(map[string]bool),
		errs:       make(map[string]error),
		pages:      make(map[string]*fetcher.Response),
	}
}

func (f *fakeFetcher) page(url string, status int, body string) {
	f.pages[url] = &fetcher.Response{
		URL:        url,
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(body),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, timeout time.Duration) (*fetcher.Response, bool, error) {
	f.calls = append(f.calls, url)
	f.timeouts = append(f.timeouts, timeout)
	if f.disallowed[url] {
		return nil, false, nil
	}
	if err, ok := f.errs[url]; ok {
		return nil, true, err
	}
	if p, ok := f.pages[url]; ok {
		return p, true, nil
	}
	return &fetcher.Response{URL: url, StatusCode: http.StatusNotFound}, true, nil
}

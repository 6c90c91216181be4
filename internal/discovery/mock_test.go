package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/proplens/proplens/internal/fetcher"
)

// fakeSearch answers search requests from canned result links per site.
type fakeSearch struct {
	results    map[string][]string // site -> hrefs
	failing    map[string]bool
	disallowed bool
	queries    []string
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		results: make(map[string][]string),
		failing: make(map[string]bool),
	}
}

func (f *fakeSearch) Fetch(_ context.Context, rawURL string, _ time.Duration) (*fetcher.Response, bool, error) {
	if f.disallowed {
		return nil, false, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, true, err
	}
	q := u.Query().Get("q")
	f.queries = append(f.queries, q)
	site := q[strings.LastIndex(q, "site:")+len("site:"):]
	if f.failing[site] {
		return nil, true, &fetcher.FetchError{URL: rawURL, Err: context.DeadlineExceeded}
	}
	return &fetcher.Response{
		URL:        rawURL,
		StatusCode: http.StatusOK,
		Body:       []byte(resultsPage(f.results[site]...)),
	}, true, nil
}

func resultsPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="results">`)
	for _, h := range hrefs {
		b.WriteString(`<div class="result"><h2><a rel="nofollow" class="result__a" href="`)
		b.WriteString(h)
		b.WriteString(`">Listing</a></h2><a class="result__url" href="`)
		b.WriteString(h)
		b.WriteString(`">url</a></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/proplens/proplens/internal/jsonld"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/scrape"
)

var testTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeDiscoverer struct {
	urls  []string
	calls int
}

func (f *fakeDiscoverer) FindCandidates(_ context.Context, _ model.ResolvedAddress) []string {
	f.calls++
	return f.urls
}

// fakeExtractor returns canned results per URL. Unknown URLs are fetched
// pages without structured data. block, when set, runs before the lookup.
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]*scrape.Result
	block   func(ctx context.Context, url string) *scrape.Result
	calls   []string
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) *scrape.Result {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.block != nil {
		if r := f.block(ctx, url); r != nil {
			return r
		}
	}
	if r, ok := f.results[url]; ok {
		return r
	}
	return &scrape.Result{URL: url, RobotsAllowed: true, Fetched: true, StatusCode: 200, At: testTime}
}

type fakeOpenData struct {
	rec   *model.OpenDataRecord
	err   error
	calls int
}

func (f *fakeOpenData) Lookup(_ context.Context, _ model.ResolvedAddress) (*model.OpenDataRecord, error) {
	f.calls++
	return f.rec, f.err
}

func found(url, doc string) *scrape.Result {
	n, err := jsonld.Parse(doc)
	if err != nil {
		panic(err)
	}
	return &scrape.Result{URL: url, Data: n, RobotsAllowed: true, Fetched: true, StatusCode: 200, At: testTime}
}

func disallowed(url string) *scrape.Result {
	return &scrape.Result{URL: url, RobotsAllowed: false, At: testTime}
}

package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GovernorOptions configures a Governor.
type GovernorOptions struct {
	UserAgent     string
	MinDelay      time.Duration // minimum gap per host between a completed request and the next dispatch
	CacheTTL      time.Duration
	RobotsTimeout time.Duration
	Timeout       time.Duration // default per-fetch timeout
	MaxBodyBytes  int64
	RobotsScheme  string
	HTTPClient    *http.Client
}

// DefaultUserAgent identifies the governor to remote sites.
const DefaultUserAgent = "PropLens/0.1 (+https://example.com)"

func (o GovernorOptions) withDefaults() GovernorOptions {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MinDelay < 0 {
		o.MinDelay = 0
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = 600 * time.Second
	}
	if o.RobotsTimeout == 0 {
		o.RobotsTimeout = 10 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxBodyBytes == 0 {
		o.MaxBodyBytes = 5 << 20
	}
	if o.RobotsScheme == "" {
		o.RobotsScheme = "https"
	}
	return o
}

// DefaultGovernorOptions returns the standard politeness settings: 2s per-host
// delay and a 10 minute content cache.
func DefaultGovernorOptions() GovernorOptions {
	return GovernorOptions{MinDelay: 2 * time.Second}.withDefaults()
}

// Governor owns all per-host access state: robots policies (kept for the
// governor's lifetime), the content cache and the last-request timestamps.
// It is safe for concurrent use; requests to one host are serialized so the
// minimum delay holds across goroutines.
type Governor struct {
	client *http.Client
	opts   GovernorOptions
	now    func() time.Time

	mu    sync.Mutex
	hosts map[string]*hostState

	robotsGroup singleflight.Group
}

type hostState struct {
	// fetchMu serializes the backoff check, the request and the timestamp
	// update for one host.
	fetchMu     sync.Mutex
	lastRequest time.Time

	// Guarded by Governor.mu.
	policy       *robotstxt.RobotsData
	policyLoaded bool
	pages        map[string]*Response
}

// NewGovernor creates a Governor with its own empty state.
func NewGovernor(opts GovernorOptions) *Governor {
	opts = opts.withDefaults()
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Governor{
		client: client,
		opts:   opts,
		now:    time.Now,
		hosts:  make(map[string]*hostState),
	}
}

// Options returns the effective options.
func (g *Governor) Options() GovernorOptions {
	return g.opts
}

func (g *Governor) hostLocked(host string) *hostState {
	hs, ok := g.hosts[host]
	if !ok {
		hs = &hostState{pages: make(map[string]*Response)}
		g.hosts[host] = hs
	}
	return hs
}

// Fetch retrieves rawURL politely. It returns (nil, false, nil) when robots.txt
// forbids the URL, a cached copy when one younger than the TTL exists, and
// otherwise waits out the host's minimum delay before issuing the request.
// Network failures return (nil, true, *FetchError). Non-2xx responses are
// returned as-is and never cached. A timeout of zero uses the default.
func (g *Governor) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Response, bool, error) {
	if !g.Allowed(ctx, rawURL) {
		zap.L().Info("fetcher: disallowed by robots", zap.String("url", rawURL))
		return nil, false, nil
	}

	u, err := url.Parse(rawURL)
	if err == nil && u.Host == "" {
		err = eris.New("missing host")
	}
	if err != nil {
		return nil, true, &FetchError{URL: rawURL, Err: err}
	}

	if cached := g.cached(u.Host, rawURL); cached != nil {
		return cached, true, nil
	}

	g.mu.Lock()
	hs := g.hostLocked(u.Host)
	g.mu.Unlock()

	hs.fetchMu.Lock()
	defer hs.fetchMu.Unlock()

	// Another caller may have filled the cache while we waited for the host.
	if cached := g.cached(u.Host, rawURL); cached != nil {
		return cached, true, nil
	}

	if err := g.waitForHost(ctx, u.Host, hs.lastRequest); err != nil {
		return nil, true, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := g.do(ctx, rawURL, timeout)
	hs.lastRequest = g.now()
	if err != nil {
		zap.L().Warn("fetcher: fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, true, &FetchError{URL: rawURL, Err: err}
	}

	if resp.OK() {
		g.mu.Lock()
		hs.pages[rawURL] = resp
		g.mu.Unlock()
	}
	return resp, true, nil
}

func (g *Governor) cached(host, rawURL string) *Response {
	g.mu.Lock()
	defer g.mu.Unlock()
	hs, ok := g.hosts[host]
	if !ok {
		return nil
	}
	page, ok := hs.pages[rawURL]
	if !ok {
		return nil
	}
	if g.now().Sub(page.FetchedAt) >= g.opts.CacheTTL {
		delete(hs.pages, rawURL)
		return nil
	}
	zap.L().Debug("fetcher: cache hit", zap.String("url", rawURL))
	hit := *page
	hit.FromCache = true
	return &hit
}

// waitForHost blocks until MinDelay has passed since last.
func (g *Governor) waitForHost(ctx context.Context, host string, last time.Time) error {
	if last.IsZero() || g.opts.MinDelay <= 0 {
		return nil
	}
	wait := g.opts.MinDelay - g.now().Sub(last)
	if wait <= 0 {
		return nil
	}
	zap.L().Debug("fetcher: backing off", zap.String("host", host), zap.Duration("wait", wait))

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Governor) do(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = g.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.opts.MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       decodeBody(body, resp.Header.Get("Content-Type")),
		FetchedAt:  g.now(),
	}, nil
}

// Stats summarizes the governor's state.
type Stats struct {
	Hosts    int `json:"hosts"`
	Policies int `json:"policies"`
	Pages    int `json:"pages"`
}

// Stats returns counts of tracked hosts, cached policies and cached pages.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	var s Stats
	s.Hosts = len(g.hosts)
	for _, hs := range g.hosts {
		if hs.policyLoaded {
			s.Policies++
		}
		s.Pages += len(hs.pages)
	}
	return s
}

// Purge drops expired content-cache entries and returns how many were
// removed. Robots policies are kept.
func (g *Governor) Purge() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	removed := 0
	for _, hs := range g.hosts {
		for u, page := range hs.pages {
			if now.Sub(page.FetchedAt) >= g.opts.CacheTTL {
				delete(hs.pages, u)
				removed++
			}
		}
	}
	return removed
}

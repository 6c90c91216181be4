package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// PolicyDecision is the outcome of a robots.txt check.
type PolicyDecision int

const (
	// PolicyAllowed means a policy was found and permits the URL.
	PolicyAllowed PolicyDecision = iota
	// PolicyDisallowed means a policy explicitly forbids the URL.
	PolicyDisallowed
	// PolicyUnavailable means no policy could be fetched or evaluated.
	PolicyUnavailable
)

func (d PolicyDecision) String() string {
	switch d {
	case PolicyAllowed:
		return "allowed"
	case PolicyDisallowed:
		return "disallowed"
	case PolicyUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Permits collapses the decision to a fetch permission. An unavailable
// policy fails open; only an explicit disallow blocks.
func (d PolicyDecision) Permits() bool {
	return d != PolicyDisallowed
}

// maxRobotsBytes bounds how much of a robots.txt file is read.
const maxRobotsBytes = 512 * 1024

// Policy evaluates rawURL against the host's robots.txt for the governor's
// user agent. It never fails: problems surface as PolicyUnavailable.
func (g *Governor) Policy(ctx context.Context, rawURL string) PolicyDecision {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		zap.L().Debug("fetcher: unparseable url, policy unavailable", zap.String("url", rawURL))
		return PolicyUnavailable
	}

	robots := g.robotsFor(ctx, u.Host)
	if robots == nil {
		return PolicyUnavailable
	}
	return evaluate(robots, requestPath(u), g.opts.UserAgent)
}

// Allowed reports whether rawURL may be fetched. PolicyUnavailable is
// treated as allowed.
func (g *Governor) Allowed(ctx context.Context, rawURL string) bool {
	return g.Policy(ctx, rawURL).Permits()
}

func evaluate(robots *robotstxt.RobotsData, path, agent string) (decision PolicyDecision) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("fetcher: robots evaluation panicked", zap.Any("panic", r), zap.String("path", path))
			decision = PolicyUnavailable
		}
	}()
	if robots.TestAgent(path, agent) {
		return PolicyAllowed
	}
	return PolicyDisallowed
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// robotsFor returns the cached policy for host, fetching it on first use.
// Concurrent callers for the same host share a single robots.txt request,
// which runs detached from any one caller's cancellation and is bounded by
// RobotsTimeout. A caller whose ctx ends first gets nil.
func (g *Governor) robotsFor(ctx context.Context, host string) *robotstxt.RobotsData {
	g.mu.Lock()
	hs := g.hostLocked(host)
	if hs.policyLoaded {
		robots := hs.policy
		g.mu.Unlock()
		return robots
	}
	g.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := g.robotsGroup.DoChan(host, func() (any, error) {
		robots, cacheable := g.fetchRobots(shared, host)
		if cacheable {
			g.mu.Lock()
			hs.policy = robots
			hs.policyLoaded = true
			g.mu.Unlock()
		}
		return robots, nil
	})
	select {
	case <-ctx.Done():
		return nil
	case r := <-ch:
		robots, _ := r.Val.(*robotstxt.RobotsData)
		return robots
	}
}

// fetchRobots retrieves and parses robots.txt. A 4xx status or an empty file
// is a definitive absence of policy and yields a cacheable allow-all rule set.
// Network errors, 5xx statuses and parse failures yield nil and are not
// cached.
func (g *Governor) fetchRobots(ctx context.Context, host string) (*robotstxt.RobotsData, bool) {
	robotsURL := g.opts.RobotsScheme + "://" + host + "/robots.txt"
	log := zap.L().With(zap.String("robots_url", robotsURL))

	ctx, cancel := context.WithTimeout(ctx, g.opts.RobotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		log.Debug("fetcher: build robots request", zap.Error(err))
		return nil, false
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		log.Debug("fetcher: robots fetch failed, failing open", zap.Error(err))
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		log.Debug("fetcher: robots server error, failing open", zap.Int("status", resp.StatusCode))
		return nil, false
	case resp.StatusCode >= 400:
		return allowAll(), true
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		log.Debug("fetcher: read robots body, failing open", zap.Error(err))
		return nil, false
	}
	if strings.TrimSpace(string(body)) == "" {
		return allowAll(), true
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		log.Debug("fetcher: parse robots, failing open", zap.Error(err))
		return nil, false
	}
	log.Debug("fetcher: robots policy cached")
	return robots, true
}

func allowAll() *robotstxt.RobotsData {
	robots, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	return robots
}

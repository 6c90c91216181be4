// Package discovery finds candidate listing-portal URLs for an address by
// issuing site-scoped queries against a search engine's HTML endpoint.
package discovery

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/proplens/proplens/internal/fetcher"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/scrape"
)

// DefaultSites are the Australian listing portals queried, in order.
var DefaultSites = []string{
	"realestate.com.au",
	"domain.com.au",
	"onthehouse.com.au",
	"realty.com.au",
	"propertyvalue.com.au",
}

const (
	DefaultSearchURL      = "https://duckduckgo.com/html/"
	DefaultResultSelector = "a.result__a"
	DefaultMinResults     = 6
	DefaultMaxResults     = 8
)

// Options configures a Discoverer.
type Options struct {
	SearchURL      string
	Sites          []string
	ResultSelector string
	MinResults     int // stop issuing queries once this many unique URLs are known
	MaxResults     int
	ExcludePaths   []string
	Timeout        time.Duration
}

// DefaultOptions returns the DuckDuckGo HTML configuration over DefaultSites.
func DefaultOptions() Options {
	return Options{
		SearchURL:      DefaultSearchURL,
		Sites:          DefaultSites,
		ResultSelector: DefaultResultSelector,
		MinResults:     DefaultMinResults,
		MaxResults:     DefaultMaxResults,
		ExcludePaths:   scrape.DefaultExcludePaths,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SearchURL == "" {
		o.SearchURL = d.SearchURL
	}
	if len(o.Sites) == 0 {
		o.Sites = d.Sites
	}
	if o.ResultSelector == "" {
		o.ResultSelector = d.ResultSelector
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.MinResults <= 0 {
		o.MinResults = d.MinResults
	}
	if o.MinResults > o.MaxResults {
		o.MinResults = o.MaxResults
	}
	return o
}

// Discoverer runs site-scoped searches through a polite fetcher.
type Discoverer struct {
	fetcher fetcher.PageFetcher
	opts    Options
	domains map[string]bool
	exclude *scrape.PathMatcher
}

// New creates a Discoverer. Zero-valued options take their defaults.
func New(f fetcher.PageFetcher, opts Options) *Discoverer {
	opts = opts.withDefaults()
	domains := make(map[string]bool, len(opts.Sites))
	for _, s := range opts.Sites {
		domains[registrableDomain(s)] = true
	}
	return &Discoverer{
		fetcher: f,
		opts:    opts,
		domains: domains,
		exclude: scrape.NewPathMatcher(opts.ExcludePaths),
	}
}

// Options returns the effective options.
func (d *Discoverer) Options() Options {
	return d.opts
}

// FindCandidates returns up to MaxResults portal URLs for addr, deduplicated
// in order of first appearance. A failed query contributes no links and is
// not retried.
func (d *Discoverer) FindCandidates(ctx context.Context, addr model.ResolvedAddress) []string {
	log := zap.L().With(zap.String("address", addr.DisplayName))

	seen := make(map[string]bool)
	var out []string
	for _, site := range d.opts.Sites {
		if len(out) >= d.opts.MinResults || ctx.Err() != nil {
			break
		}
		query := addr.DisplayName + " site:" + site
		links, err := d.search(ctx, query)
		if err != nil {
			log.Debug("discovery: query failed", zap.String("site", site), zap.Error(err))
			continue
		}
		kept := 0
		for _, link := range links {
			if seen[link] || !d.accept(link) {
				continue
			}
			seen[link] = true
			out = append(out, link)
			kept++
		}
		log.Debug("discovery: query done",
			zap.String("site", site),
			zap.Int("links", len(links)),
			zap.Int("kept", kept),
		)
	}
	if len(out) > d.opts.MaxResults {
		out = out[:d.opts.MaxResults]
	}
	log.Info("discovery: candidates found", zap.Int("count", len(out)))
	return out
}

// search issues one query and returns the resolved, unwrapped result links.
func (d *Discoverer) search(ctx context.Context, query string) ([]string, error) {
	base, err := url.Parse(d.opts.SearchURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse search url")
	}
	q := base.Query()
	q.Set("q", query)
	base.RawQuery = q.Encode()

	resp, allowed, err := d.fetcher.Fetch(ctx, base.String(), d.opts.Timeout)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, eris.Wrap(fetcher.ErrDisallowed, "discovery: search endpoint")
	}
	if !resp.OK() {
		return nil, &fetcher.FetchError{URL: base.String(), StatusCode: resp.StatusCode}
	}
	return ExtractLinks(resp.Body, base, d.opts.ResultSelector)
}

// ExtractLinks returns the hrefs of elements matching selector, resolved
// against base and with search-engine redirect wrappers removed.
func ExtractLinks(body []byte, base *url.URL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse results")
	}
	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, unwrap(base.ResolveReference(ref)).String())
	})
	return links, nil
}

// unwrap replaces a redirect link such as "/l/?uddg=<target>" with its target.
func unwrap(u *url.URL) *url.URL {
	target := u.Query().Get("uddg")
	if target == "" {
		return u
	}
	t, err := url.Parse(target)
	if err != nil || t.Host == "" {
		return u
	}
	return t
}

// accept reports whether link is an http(s) URL on an allow-listed portal
// outside the excluded sections.
func (d *Discoverer) accept(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !d.domains[registrableDomain(u.Hostname())] {
		return false
	}
	return !d.exclude.IsExcluded(link)
}

// registrableDomain returns the eTLD+1 of host, or the lowercased host when
// it has none (an IP address or a bare suffix).
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

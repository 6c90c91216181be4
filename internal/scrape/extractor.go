// Package scrape extracts structured listing data from fetched pages.
package scrape

import (
	"bytes"
	"context"
	"mime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/proplens/proplens/internal/fetcher"
	"github.com/proplens/proplens/internal/jsonld"
)

// Outcome is the terminal state of one extraction.
type Outcome string

const (
	OutcomeDisallowed  Outcome = "disallowed"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeNoData      Outcome = "no_data"
	OutcomeFound       Outcome = "found"
)

// Result describes one extraction attempt.
type Result struct {
	URL           string
	Data          jsonld.Node // absent unless a qualifying block was found
	RobotsAllowed bool
	Fetched       bool
	StatusCode    int
	Block         BlockType // anti-bot marker seen on a refused page or one without data
	Err           error
	At            time.Time
}

// Found reports whether a structured object was extracted.
func (r *Result) Found() bool {
	return r.Fetched && !r.Data.IsAbsent()
}

// Outcome classifies the result.
func (r *Result) Outcome() Outcome {
	switch {
	case !r.RobotsAllowed:
		return OutcomeDisallowed
	case !r.Fetched:
		return OutcomeFetchFailed
	case r.Data.IsAbsent():
		return OutcomeNoData
	default:
		return OutcomeFound
	}
}

// Extractor pulls the property descriptor out of a page's JSON-LD blocks.
type Extractor struct {
	fetcher fetcher.PageFetcher
	timeout time.Duration
	now     func() time.Time
}

// NewExtractor creates an Extractor that fetches through f. A zero timeout
// leaves the fetcher's default in place.
func NewExtractor(f fetcher.PageFetcher, timeout time.Duration) *Extractor {
	return &Extractor{fetcher: f, timeout: timeout, now: time.Now}
}

// Extract fetches url and returns the first qualifying structured object.
// It never returns an error: fetch and parse failures are recorded on the
// result.
func (e *Extractor) Extract(ctx context.Context, url string) *Result {
	res := &Result{URL: url, At: e.now()}

	resp, allowed, err := e.fetcher.Fetch(ctx, url, e.timeout)
	res.RobotsAllowed = allowed
	if !allowed {
		return res
	}
	if err != nil {
		res.Err = err
		zap.L().Debug("scrape: fetch failed", zap.String("url", url), zap.Error(err))
		return res
	}
	if resp == nil {
		res.Err = eris.Errorf("scrape: empty response for %s", url)
		return res
	}
	res.StatusCode = resp.StatusCode
	if !resp.OK() {
		res.Err = &fetcher.FetchError{URL: url, StatusCode: resp.StatusCode}
		res.Block = detectBlock(url, resp)
		return res
	}
	res.Fetched = true

	node, err := FindProperty(resp.Body)
	if err != nil {
		res.Block = detectBlock(url, resp)
		return res
	}
	res.Data = node
	return res
}

func detectBlock(url string, resp *fetcher.Response) BlockType {
	blocked, bt := DetectBlock(resp)
	if !blocked {
		return BlockNone
	}
	zap.L().Info("scrape: page looks blocked",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.String("block", string(bt)),
	)
	return bt
}

// FindProperty scans an HTML document for JSON-LD script blocks and returns
// the property descriptor of the first block that yields one. Malformed
// blocks are skipped. It returns jsonld.ErrNoStructuredData when no block
// qualifies.
func FindProperty(body []byte) (jsonld.Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return jsonld.Absent, eris.Wrap(err, "scrape: parse html")
	}

	found := jsonld.Absent
	doc.Find("script[type]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !isJSONLD(s.AttrOr("type", "")) {
			return true
		}
		root, err := jsonld.Parse(s.Text())
		if err != nil {
			return true
		}
		if n, ok := jsonld.SelectProperty(root); ok {
			found = n
			return false
		}
		return true
	})
	if found.IsAbsent() {
		return found, jsonld.ErrNoStructuredData
	}
	return found, nil
}

func isJSONLD(typ string) bool {
	mt, _, err := mime.ParseMediaType(typ)
	if err != nil {
		mt = strings.TrimSpace(typ)
	}
	return strings.EqualFold(mt, "application/ld+json")
}

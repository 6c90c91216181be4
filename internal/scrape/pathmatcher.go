package scrape

import (
	"net/url"
	"path"
	"strings"
)

// DefaultExcludePaths are portal sections that never carry a listing.
var DefaultExcludePaths = []string{
	"/news/*",
	"/blog/*",
	"/advice/*",
	"/guides/*",
	"/insights/*",
	"/agent/*",
	"/agents/*",
	"/agency/*",
	"/real-estate-agents/*",
	"/find-agent/*",
	"/neighbourhoods/*",
}

// PathMatcher filters URLs based on glob-style path patterns.
// A pattern ending in "/*" also matches every deeper path below it.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/news/*").
// Falls back to DefaultExcludePaths if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = DefaultExcludePaths
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where "/news/*" matches both
// "/news/story" and "/news/2024/05/story".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}

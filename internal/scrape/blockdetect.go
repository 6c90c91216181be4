package scrape

import (
	"net/http"
	"strings"

	"github.com/proplens/proplens/internal/fetcher"
)

// BlockType describes the kind of anti-bot interstitial detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// jsShellMaxBytes bounds the body size of a page treated as a JS-only shell.
const jsShellMaxBytes = 2000

// bodyMarker matches when every needle appears in the lowercased body.
type bodyMarker struct {
	needles []string
	block   BlockType
}

// Checked in order; the first match wins.
var bodyMarkers = []bodyMarker{
	{[]string{"checking your browser"}, BlockCloudflare},
	{[]string{"cf-browser-verification"}, BlockCloudflare},
	{[]string{"cloudflare", "challenge"}, BlockCloudflare},
	{[]string{"kpsdk"}, BlockCaptcha}, // Kasada
	{[]string{"captcha"}, BlockCaptcha},
}

// DetectBlock checks a fetched page, successful or not, for signs of
// anti-bot protection. The result only annotates the audit trail; it never
// changes fetch behavior.
func DetectBlock(resp *fetcher.Response) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}
	if bt := headerBlock(resp); bt != BlockNone {
		return true, bt
	}

	lower := strings.ToLower(string(resp.Body))
	for _, m := range bodyMarkers {
		if containsAll(lower, m.needles) {
			return true, m.block
		}
	}

	if len(resp.Body) < jsShellMaxBytes {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

// headerBlock recognizes edge-network refusals from status and headers alone.
func headerBlock(resp *fetcher.Response) BlockType {
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
	default:
		return BlockNone
	}
	h := resp.Header
	switch {
	case h.Get("cf-ray") != "", h.Get("cf-mitigated") != "", strings.EqualFold(h.Get("server"), "cloudflare"):
		return BlockCloudflare
	case h.Get("x-kpsdk-ct") != "":
		return BlockCaptcha
	}
	return BlockNone
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

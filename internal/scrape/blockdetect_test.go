package scrape

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/proplens/proplens/internal/fetcher"
)

func TestDetectBlock_Cloudflare403(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 403,
		Header:     http.Header{"Cf-Ray": {"abc123"}},
	}
	blocked, bt := DetectBlock(resp)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_Cloudflare503Server(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 503,
		Header:     http.Header{"Server": {"cloudflare"}},
	}
	blocked, bt := DetectBlock(resp)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_RefusalHeaders(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		want   BlockType
	}{
		{"cloudflare 429", http.StatusTooManyRequests, http.Header{"Cf-Mitigated": {"challenge"}}, BlockCloudflare},
		{"kasada 429", http.StatusTooManyRequests, http.Header{"X-Kpsdk-Ct": {"0x1f"}}, BlockCaptcha},
		{"plain 403", http.StatusForbidden, http.Header{}, BlockNone},
		{"cf-ray on 200", http.StatusOK, http.Header{"Cf-Ray": {"abc"}}, BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, bt := DetectBlock(&fetcher.Response{StatusCode: tt.status, Header: tt.header})
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_CaptchaInBody(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       []byte("<html><body>Please complete the reCAPTCHA to continue</body></html>"),
	}
	blocked, bt := DetectBlock(resp)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_KasadaShell(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       []byte(`<html><head><script src="/149e9513-01fa-4fb0-aad4-566afd725d1b/2d206a39-8ed7-437e-a3be-862e0f06eea3/ips.js?KPSDK"></script></head></html>`),
	}
	blocked, bt := DetectBlock(resp)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_JSShell(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       []byte("<html><noscript>Enable JavaScript to continue</noscript></html>"),
	}
	blocked, bt := DetectBlock(resp)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	resp := &fetcher.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       []byte("<html><body>4 bedroom house in Epping with a double garage.</body></html>"),
	}
	blocked, bt := DetectBlock(resp)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

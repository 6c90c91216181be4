package geocode

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newTestClient returns a geocoder pointed at srv with no rate limit.
func newTestClient(t *testing.T, srv *httptest.Server) *geocoder {
	t.Helper()
	return &geocoder{
		httpClient:   srv.Client(),
		limiter:      newTestLimiter(),
		baseURL:      srv.URL + "/search",
		userAgent:    "PropLensTest/1.0",
		countryCodes: "au",
		limit:        5,
	}
}

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

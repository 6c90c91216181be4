package fetcher

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// siteServer serves a robots.txt and a set of pages, counting hits.
type siteServer struct {
	*httptest.Server
	robotsStatus int
	robotsBody   string
	robotsHits   atomic.Int32
	pageHits     atomic.Int32

	mu       sync.Mutex
	arrivals []time.Time
	pages    map[string]page
}

type page struct {
	status      int
	contentType string
	body        string
}

func newSiteServer(t *testing.T, robotsStatus int, robotsBody string) *siteServer {
	t.Helper()
	s := &siteServer{
		robotsStatus: robotsStatus,
		robotsBody:   robotsBody,
		pages:        make(map[string]page),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			s.robotsHits.Add(1)
			w.WriteHeader(s.robotsStatus)
			_, _ = w.Write([]byte(s.robotsBody))
			return
		}
		s.pageHits.Add(1)
		s.mu.Lock()
		s.arrivals = append(s.arrivals, time.Now())
		p, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if p.contentType != "" {
			w.Header().Set("Content-Type", p.contentType)
		}
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(p.body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *siteServer) addPage(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = page{status: status, body: body}
}

func (s *siteServer) addTypedPage(path, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = page{status: http.StatusOK, contentType: contentType, body: body}
}

func (s *siteServer) arrivalTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.arrivals...)
}

func newTestGovernor(minDelay time.Duration) *Governor {
	return NewGovernor(GovernorOptions{
		UserAgent:     "PropLens/0.1 (+https://example.com)",
		MinDelay:      minDelay,
		CacheTTL:      time.Minute,
		RobotsTimeout: 2 * time.Second,
		Timeout:       2 * time.Second,
		RobotsScheme:  "http",
	})
}

package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Disallow(t *testing.T) {
	srv := newSiteServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\n")
	g := newTestGovernor(0)
	ctx := context.Background()

	assert.Equal(t, PolicyDisallowed, g.Policy(ctx, srv.URL+"/private/listing"))
	assert.Equal(t, PolicyAllowed, g.Policy(ctx, srv.URL+"/property/123"))
	assert.False(t, g.Allowed(ctx, srv.URL+"/private"))
	assert.True(t, g.Allowed(ctx, srv.URL+"/"))

	// Policy fetched once and cached for the governor lifetime.
	assert.Equal(t, int32(1), srv.robotsHits.Load())
}

func TestPolicy_AgentSpecificGroup(t *testing.T) {
	robots := "User-agent: proplens\nDisallow: /search\n\nUser-agent: *\nDisallow:\n"
	srv := newSiteServer(t, http.StatusOK, robots)
	g := newTestGovernor(0)
	ctx := context.Background()

	assert.Equal(t, PolicyDisallowed, g.Policy(ctx, srv.URL+"/search?q=schofields"))
	assert.Equal(t, PolicyAllowed, g.Policy(ctx, srv.URL+"/property/1"))
}

func TestPolicy_MissingRobotsIsCachedAllowAll(t *testing.T) {
	srv := newSiteServer(t, http.StatusNotFound, "")
	g := newTestGovernor(0)
	ctx := context.Background()

	assert.Equal(t, PolicyAllowed, g.Policy(ctx, srv.URL+"/a"))
	assert.Equal(t, PolicyAllowed, g.Policy(ctx, srv.URL+"/b"))
	assert.Equal(t, int32(1), srv.robotsHits.Load())
}

func TestPolicy_EmptyRobotsAllows(t *testing.T) {
	srv := newSiteServer(t, http.StatusOK, "   \n")
	g := newTestGovernor(0)

	assert.Equal(t, PolicyAllowed, g.Policy(context.Background(), srv.URL+"/a"))
	assert.Equal(t, 1, g.Stats().Policies)
}

func TestPolicy_ServerErrorFailsOpenUncached(t *testing.T) {
	srv := newSiteServer(t, http.StatusServiceUnavailable, "down")
	g := newTestGovernor(0)
	ctx := context.Background()

	assert.Equal(t, PolicyUnavailable, g.Policy(ctx, srv.URL+"/a"))
	assert.True(t, g.Allowed(ctx, srv.URL+"/a"))
	assert.Equal(t, int32(2), srv.robotsHits.Load())
	assert.Equal(t, 0, g.Stats().Policies)
}

func TestPolicy_NetworkErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	g := newTestGovernor(0)
	assert.Equal(t, PolicyUnavailable, g.Policy(context.Background(), dead+"/listing"))
	assert.True(t, g.Allowed(context.Background(), dead+"/listing"))
}

func TestPolicy_NeverFailsOnBadInput(t *testing.T) {
	g := newTestGovernor(0)
	ctx := context.Background()

	for _, in := range []string{"", "::not a url", "/relative/path", "http://"} {
		assert.True(t, g.Allowed(ctx, in), in)
	}
}

func TestPolicy_ConcurrentChecksShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
		}
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /x\n"))
	}))
	defer srv.Close()

	g := newTestGovernor(0)
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, PolicyDisallowed, g.Policy(context.Background(), srv.URL+"/x/1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestPolicyDecision(t *testing.T) {
	assert.True(t, PolicyAllowed.Permits())
	assert.True(t, PolicyUnavailable.Permits())
	assert.False(t, PolicyDisallowed.Permits())
	assert.Equal(t, "disallowed", PolicyDisallowed.String())
	assert.Equal(t, "unavailable", PolicyUnavailable.String())
}

func TestPolicy_SharedFetchSurvivesCallerCancel(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(arrived)
		}
		<-release
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()
	g := newTestGovernor(0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan PolicyDecision, 1)
	go func() { first <- g.Policy(ctx, srv.URL+"/private/1") }()
	<-arrived

	second := make(chan PolicyDecision, 1)
	go func() { second <- g.Policy(context.Background(), srv.URL+"/private/2") }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case d := <-first:
		assert.Equal(t, PolicyUnavailable, d)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on robots fetch")
	}

	close(release)
	assert.Equal(t, PolicyDisallowed, <-second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, g.Stats().Policies)
}

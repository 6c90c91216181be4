// Package geocode resolves free-text Australian addresses via Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/resilience"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent = "PropLens/0.1 (+https://example.com)"
)

// Client geocodes addresses.
type Client interface {
	// Search returns the candidates for query, best first as ranked by
	// the service. No match is an empty slice, not an error.
	Search(ctx context.Context, query string) ([]model.ResolvedAddress, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL points the client at a different search endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. Nominatim's usage
// policy allows one request per second.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithCountryCodes restricts results to the given ISO country codes
// (comma separated).
func WithCountryCodes(codes string) Option {
	return func(g *geocoder) {
		g.countryCodes = codes
	}
}

// WithLimit caps the number of candidates returned.
func WithLimit(n int) Option {
	return func(g *geocoder) {
		if n > 0 {
			g.limit = n
		}
	}
}

type geocoder struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	baseURL      string
	userAgent    string
	countryCodes string
	limit        int
}

// NewClient creates a Nominatim Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		limiter:      rate.NewLimiter(1, 1),
		baseURL:      defaultBaseURL,
		userAgent:    defaultUserAgent,
		countryCodes: "au",
		limit:        5,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// nominatimPlace is one entry of the Nominatim JSON response.
type nominatimPlace struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Suburb      string `json:"suburb"`
	Town        string `json:"town"`
	CitySuburb  string `json:"city_suburb"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
	CountryCode string `json:"country_code"`
}

// Search implements Client.
func (g *geocoder) Search(ctx context.Context, query string) ([]model.ResolvedAddress, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("geocode: empty query")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(g.limit)},
	}
	if g.countryCodes != "" {
		params.Set("countrycodes", g.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("geocode", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	out := make([]model.ResolvedAddress, 0, len(places))
	for _, p := range places {
		addr, ok := toResolved(query, p)
		if !ok {
			zap.L().Debug("geocode: skipping place without coordinates",
				zap.String("display_name", p.DisplayName),
			)
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

func toResolved(query string, p nominatimPlace) (model.ResolvedAddress, bool) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return model.ResolvedAddress{}, false
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return model.ResolvedAddress{}, false
	}

	suburb := p.Address.Suburb
	if suburb == "" {
		suburb = p.Address.Town
	}
	if suburb == "" {
		suburb = p.Address.CitySuburb
	}

	return model.ResolvedAddress{
		Query:       query,
		DisplayName: p.DisplayName,
		Lat:         lat,
		Lon:         lon,
		Suburb:      suburb,
		State:       p.Address.State,
		Postcode:    p.Address.Postcode,
	}, true
}

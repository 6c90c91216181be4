// Package nswspatial looks up parcel land areas from the NSW Spatial
// Services cadastre.
package nswspatial

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/resilience"
)

const (
	// DefaultBaseURL is the query endpoint of the cadastre lot layer.
	DefaultBaseURL = "https://maps.six.nsw.gov.au/arcgis/rest/services/public/NSW_Cadastre/MapServer/9/query"

	// DefaultFallbackLandSqm is the conservative suburban parcel used when
	// the service has nothing for an address.
	DefaultFallbackLandSqm = 420.0

	// DefaultConfidence is the confidence attached to cadastre figures.
	DefaultConfidence = 0.6

	// SourceCadastre tags records read from the service.
	SourceCadastre = "nsw_cadastre"
	// SourceFallback tags the suburban parcel fallback.
	SourceFallback = "nsw_suburban_fallback"

	// outSR is GDA94 / NSW Lambert, a metre-based projection.
	outSR = "3308"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different query endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = newResty(resty.NewWithClient(hc))
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.http.SetHeader("User-Agent", ua)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithFallbackLandSqm sets the fallback parcel area. Zero disables the
// fallback.
func WithFallbackLandSqm(sqm float64) Option {
	return func(c *Client) {
		c.fallbackLandSqm = sqm
	}
}

// WithConfidence sets the confidence attached to returned records.
func WithConfidence(conf float64) Option {
	return func(c *Client) {
		c.confidence = conf
	}
}

// Client queries the cadastre lot layer.
type Client struct {
	http            *resty.Client
	baseURL         string
	retry           resilience.RetryConfig
	fallbackLandSqm float64
	confidence      float64
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:            newResty(resty.New().SetTimeout(15 * time.Second)),
		baseURL:         DefaultBaseURL,
		retry:           resilience.DefaultRetryConfig(),
		fallbackLandSqm: DefaultFallbackLandSqm,
		confidence:      DefaultConfidence,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("nswspatial", "query")
	return c
}

func newResty(rc *resty.Client) *resty.Client {
	rc.SetHeader("Accept", "application/json")
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		zap.L().Debug("nswspatial: response",
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		)
		return nil
	})
	return rc
}

// IsNSW reports whether state names New South Wales.
func IsNSW(state string) bool {
	s := strings.ToUpper(strings.TrimSpace(state))
	return strings.Contains(s, "NSW") || strings.Contains(s, "NEW SOUTH WALES")
}

// Lookup returns the land area of the parcel containing addr. Addresses
// outside NSW yield nil, nil. When the service has no parcel and the
// address carries a suburb and postcode, the fallback parcel is returned.
// Service failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, addr model.ResolvedAddress) (*model.OpenDataRecord, error) {
	if !IsNSW(addr.State) {
		return nil, nil
	}

	area, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (float64, error) {
		return c.queryLandArea(ctx, addr.Lat, addr.Lon)
	})
	if err != nil {
		return nil, err
	}

	if area > 0 {
		return c.record(area, SourceCadastre), nil
	}
	if c.fallbackLandSqm > 0 && addr.Suburb != "" && addr.Postcode != "" {
		zap.L().Debug("nswspatial: no parcel, using suburban fallback",
			zap.String("suburb", addr.Suburb),
			zap.String("postcode", addr.Postcode),
		)
		return c.record(c.fallbackLandSqm, SourceFallback), nil
	}
	return nil, nil
}

func (c *Client) record(area float64, source string) *model.OpenDataRecord {
	return &model.OpenDataRecord{
		Values:     map[model.FieldKey]any{model.FieldLandSqm: area},
		Source:     source,
		Confidence: c.confidence,
	}
}

// queryResponse is the subset of an ArcGIS feature query response in use.
type queryResponse struct {
	Features []feature  `json:"features"`
	Error    *arcgisErr `json:"error"`
}

type feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *struct {
		Rings [][][]float64 `json:"rings"`
	} `json:"geometry"`
}

type arcgisErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// queryLandArea returns the area in square metres of the first parcel
// intersecting the point, or zero when there is none.
func (c *Client) queryLandArea(ctx context.Context, lat, lon float64) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"geometry":       fmt.Sprintf("%f,%f", lon, lat),
			"geometryType":   "esriGeometryPoint",
			"inSR":           "4326",
			"spatialRel":     "esriSpatialRelIntersects",
			"outFields":      "planlotarea,planlotareaunits",
			"outSR":          outSR,
			"returnGeometry": "true",
			"f":              "json",
		}).
		Get(c.baseURL)
	if err != nil {
		return 0, eris.Wrap(err, "nswspatial: query")
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, resilience.StatusError("nswspatial", resp.StatusCode())
	}

	var qr queryResponse
	if err := json.Unmarshal(resp.Body(), &qr); err != nil {
		return 0, eris.Wrap(err, "nswspatial: parse response")
	}
	// ArcGIS reports failures in the body of a 200 response.
	if qr.Error != nil {
		err := eris.Errorf("nswspatial: service error %d: %s", qr.Error.Code, qr.Error.Message)
		if resilience.IsTransientHTTPStatus(qr.Error.Code) {
			return 0, resilience.NewTransientError(err, qr.Error.Code)
		}
		return 0, err
	}

	for _, f := range qr.Features {
		if v, ok := f.Attributes["planlotarea"].(float64); ok && v > 0 {
			units, _ := f.Attributes["planlotareaunits"].(string)
			if sqm, ok := toSqm(v, units); ok {
				return sqm, nil
			}
			zap.L().Debug("nswspatial: unknown plan area units", zap.String("units", units))
		}
		if f.Geometry != nil {
			area, err := ringsArea(f.Geometry.Rings)
			if err != nil {
				zap.L().Debug("nswspatial: bad geometry", zap.Error(err))
				continue
			}
			if area > 0 {
				return area, nil
			}
		}
	}
	return 0, nil
}

// Plan area unit factors to square metres, keyed by lowercased unit code.
var unitFactors = map[string]float64{
	"":         1,
	"m":        1,
	"m2":       1,
	"sqm":      1,
	"h":        10000,
	"ha":       10000,
	"hectares": 10000,
	"a":        4046.8564224,
	"ac":       4046.8564224,
	"acres":    4046.8564224,
}

// toSqm converts a plan lot area to square metres. Unknown units report
// false so the caller can measure the parcel geometry instead.
func toSqm(v float64, units string) (float64, bool) {
	f, ok := unitFactors[strings.ToLower(strings.TrimSpace(units))]
	if !ok {
		return 0, false
	}
	return v * f, true
}

package model

import (
	"fmt"
	"strings"
	"time"
)

// RobotsOutcome records the robots policy decision for a fetched URL.
type RobotsOutcome string

const (
	RobotsAllowed    RobotsOutcome = "allowed"
	RobotsDisallowed RobotsOutcome = "disallowed"
)

// SourceAnnotation is one entry of the per-run source audit trail.
type SourceAnnotation struct {
	URL          string        `json:"url"`
	Robots       RobotsOutcome `json:"robots"`
	Fetched      bool          `json:"fetched"`
	Found        bool          `json:"found"`
	Note         string        `json:"note,omitempty"`
	AddressMatch float64       `json:"address_match,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

// String renders the annotation in the human-readable audit form, e.g.
// "https://x [robots: allowed] [ts: 2025-01-02 15:04:05]".
func (a SourceAnnotation) String() string {
	var b strings.Builder
	b.WriteString(a.URL)
	switch {
	case a.Robots == RobotsDisallowed:
		b.WriteString(" [robots: disallowed]")
	case a.Fetched && a.Found:
		b.WriteString(" [robots: allowed]")
	case a.Fetched:
		b.WriteString(" [robots: allowed, no JSON-LD]")
	default:
		b.WriteString(" [robots: allowed, fetch failed]")
	}
	if a.Note != "" {
		fmt.Fprintf(&b, " [%s]", a.Note)
	}
	if a.AddressMatch > 0 {
		fmt.Fprintf(&b, " [address match: %.2f]", a.AddressMatch)
	}
	fmt.Fprintf(&b, " [ts: %s]", a.FetchedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

// OpenDataRecord is the optional result of an open-data parcel lookup.
// Values holds per-field figures (nil entries are treated as absent).
// A zero Confidence means unspecified.
type OpenDataRecord struct {
	Values     map[FieldKey]any `json:"values"`
	Source     string           `json:"source"`
	Confidence float64          `json:"confidence,omitempty"`
}

// Value returns the non-nil value stored for key.
func (r *OpenDataRecord) Value(key FieldKey) (any, bool) {
	if r == nil || r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// LandSqm returns the parcel area when the record carries a positive one.
func (r *OpenDataRecord) LandSqm() (float64, bool) {
	v, ok := r.Value(FieldLandSqm)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

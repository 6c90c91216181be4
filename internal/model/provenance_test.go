package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceAnnotationString(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 15, 12, 30, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   SourceAnnotation
		want string
	}{
		{
			name: "found",
			in:   SourceAnnotation{URL: "https://a", Robots: RobotsAllowed, Fetched: true, Found: true, FetchedAt: ts},
			want: "https://a [robots: allowed] [ts: 2025-06-15 12:30:05]",
		},
		{
			name: "disallowed",
			in:   SourceAnnotation{URL: "https://b", Robots: RobotsDisallowed, FetchedAt: ts},
			want: "https://b [robots: disallowed] [ts: 2025-06-15 12:30:05]",
		},
		{
			name: "no structured data",
			in:   SourceAnnotation{URL: "https://c", Robots: RobotsAllowed, Fetched: true, FetchedAt: ts},
			want: "https://c [robots: allowed, no JSON-LD] [ts: 2025-06-15 12:30:05]",
		},
		{
			name: "fetch failed with note and match",
			in:   SourceAnnotation{URL: "https://d", Robots: RobotsAllowed, Note: "status 503", AddressMatch: 0.914, FetchedAt: ts},
			want: "https://d [robots: allowed, fetch failed] [status 503] [address match: 0.91] [ts: 2025-06-15 12:30:05]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestOpenDataRecordValue(t *testing.T) {
	t.Parallel()

	var nilRec *OpenDataRecord
	_, ok := nilRec.Value(FieldLandSqm)
	assert.False(t, ok)

	rec := &OpenDataRecord{Values: map[FieldKey]any{FieldLandSqm: 420.0, FieldBeds: nil}}
	_, ok = rec.Value(FieldBeds)
	assert.False(t, ok)

	land, ok := rec.LandSqm()
	assert.True(t, ok)
	assert.InDelta(t, 420.0, land, 1e-9)

	zero := &OpenDataRecord{Values: map[FieldKey]any{FieldLandSqm: 0.0}}
	_, ok = zero.LandSqm()
	assert.False(t, ok)
}

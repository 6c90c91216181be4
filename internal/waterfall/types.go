package waterfall

import "github.com/proplens/proplens/internal/model"

// Tier names a source tier consulted during fusion.
type Tier string

const (
	TierStructured Tier = "structured"
	TierOpenData   Tier = "open_data"
	TierHeuristic  Tier = "heuristic"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierStructured, TierOpenData, TierHeuristic:
		return true
	default:
		return false
	}
}

// FallbackConfidence is carried by a field no tier could supply.
const FallbackConfidence = 0.1

// DefaultOpenDataConfidence applies to open-data values whose record does not
// declare a confidence.
const DefaultOpenDataConfidence = 0.6

// Inputs are the per-tier values fused into one fact record.
type Inputs struct {
	Address    model.ResolvedAddress
	Structured model.FieldSet
	OpenData   *model.OpenDataRecord
	Heuristic  model.FieldSet
	Sources    []model.SourceAnnotation
}

// Attempt records one tier consulted for a field.
type Attempt struct {
	Tier    Tier              `json:"tier"`
	Present bool              `json:"present"`
	Value   *model.FieldValue `json:"value,omitempty"`
}

// FieldResolution is the outcome of fusion for a single field.
type FieldResolution struct {
	Key      model.FieldKey    `json:"key"`
	Resolved bool              `json:"resolved"`
	Winner   Tier              `json:"winner,omitempty"`
	Value    *model.FieldValue `json:"value,omitempty"`
	Attempts []Attempt         `json:"attempts"`
}

// Result is the fused record and its per-field audit trail, in policy order.
type Result struct {
	Facts       model.PropertyFacts `json:"facts"`
	Resolutions []FieldResolution   `json:"resolutions"`
}

// Resolution returns the resolution recorded for key.
func (r *Result) Resolution(key model.FieldKey) (FieldResolution, bool) {
	for _, res := range r.Resolutions {
		if res.Key == key {
			return res, true
		}
	}
	return FieldResolution{}, false
}

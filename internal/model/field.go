package model

// FieldKey names a tracked property attribute.
type FieldKey string

// Tracked property attributes.
const (
	FieldDwellingType  FieldKey = "dwelling_type"
	FieldBeds          FieldKey = "beds"
	FieldBaths         FieldKey = "baths"
	FieldCars          FieldKey = "cars"
	FieldLandSqm       FieldKey = "land_sqm"
	FieldBuildSqm      FieldKey = "build_sqm"
	FieldLastSoldPrice FieldKey = "last_sold_price"
)

// FactFields lists the attributes every PropertyFacts record carries, in
// display order. FieldLastSoldPrice is optional and not included.
var FactFields = []FieldKey{
	FieldDwellingType,
	FieldBeds,
	FieldBaths,
	FieldCars,
	FieldLandSqm,
	FieldBuildSqm,
}

// Provenance tags the tier a fact value came from. The string values are the
// wire form consumed by calculators and the frontend.
type Provenance string

const (
	SourceStructured Provenance = "jsonld"
	SourceOpenData   Provenance = "open_data"
	SourceEstimated  Provenance = "estimated"
	SourceUser       Provenance = "user"
)

// Rank orders provenance tiers by trust. User overrides outrank everything
// regardless of their numeric confidence.
func (p Provenance) Rank() int {
	switch p {
	case SourceUser:
		return 4
	case SourceStructured:
		return 3
	case SourceOpenData:
		return 2
	case SourceEstimated:
		return 1
	default:
		return 0
	}
}

// FieldValue is a single fact with its provenance and a confidence in [0,1].
// Value holds a float64, a string, or nil when the fact is unknown.
type FieldValue struct {
	Value      any        `json:"value"`
	Source     Provenance `json:"source"`
	Confidence float64    `json:"confidence"`
}

// NewFieldValue builds a FieldValue, clamping confidence into [0,1].
func NewFieldValue(value any, source Provenance, confidence float64) FieldValue {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return FieldValue{Value: value, Source: source, Confidence: confidence}
}

// Known reports whether the value is present.
func (f FieldValue) Known() bool {
	return f.Value != nil
}

// Float returns the value as a float64 when it is numeric.
func (f FieldValue) Float() (float64, bool) {
	switch v := f.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// FloatOr returns the numeric value or def when absent or non-numeric.
func (f FieldValue) FloatOr(def float64) float64 {
	if v, ok := f.Float(); ok {
		return v
	}
	return def
}

// String returns the value as a string when it is textual.
func (f FieldValue) String() (string, bool) {
	s, ok := f.Value.(string)
	return s, ok
}

// FieldSet maps field keys to values produced by a single source tier.
type FieldSet map[FieldKey]FieldValue

// Has reports whether key is present in the set.
func (s FieldSet) Has(key FieldKey) bool {
	_, ok := s[key]
	return ok
}

// SetDefault stores v under key only when key is not already present. It
// reports whether the value was stored.
func (s FieldSet) SetDefault(key FieldKey, v FieldValue) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = v
	return true
}

package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PropertyFacts is the canonical fact record for one query cycle.
type PropertyFacts struct {
	Address       ResolvedAddress    `json:"address"`
	DwellingType  FieldValue         `json:"dwelling_type"`
	Beds          FieldValue         `json:"beds"`
	Baths         FieldValue         `json:"baths"`
	Cars          FieldValue         `json:"cars"`
	LandSqm       FieldValue         `json:"land_sqm"`
	BuildSqm      FieldValue         `json:"build_sqm"`
	LastSoldPrice *FieldValue        `json:"last_sold_price,omitempty"`
	Sources       []SourceAnnotation `json:"source_urls"`
}

// Field returns a pointer to the record's value for key, or nil for an
// unknown key. LastSoldPrice may be nil even for a known key.
func (p *PropertyFacts) Field(key FieldKey) *FieldValue {
	switch key {
	case FieldDwellingType:
		return &p.DwellingType
	case FieldBeds:
		return &p.Beds
	case FieldBaths:
		return &p.Baths
	case FieldCars:
		return &p.Cars
	case FieldLandSqm:
		return &p.LandSqm
	case FieldBuildSqm:
		return &p.BuildSqm
	case FieldLastSoldPrice:
		return p.LastSoldPrice
	default:
		return nil
	}
}

// Set stores v under key. Setting FieldLastSoldPrice allocates it.
func (p *PropertyFacts) Set(key FieldKey, v FieldValue) error {
	if key == FieldLastSoldPrice {
		p.LastSoldPrice = &v
		return nil
	}
	f := p.Field(key)
	if f == nil {
		return eris.Errorf("model: unknown field %q", key)
	}
	*f = v
	return nil
}

// ApplyOverrides replaces fields with user-supplied values. Overrides always
// win and carry confidence 1.0. Numeric fields accept float64, int or numeral
// strings; dwelling type accepts strings only.
func (p *PropertyFacts) ApplyOverrides(overrides map[FieldKey]any) error {
	for key, raw := range overrides {
		v, err := overrideValue(key, raw)
		if err != nil {
			return err
		}
		if err := p.Set(key, NewFieldValue(v, SourceUser, 1.0)); err != nil {
			return err
		}
	}
	return nil
}

func overrideValue(key FieldKey, raw any) (any, error) {
	if key == FieldDwellingType {
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, eris.Errorf("model: override %s must be a non-empty string", key)
		}
		return strings.TrimSpace(s), nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "model: override %s", key)
		}
		return f, nil
	default:
		return nil, eris.Errorf("model: override %s has unsupported type %T", key, raw)
	}
}

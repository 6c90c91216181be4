// Package normalize maps a schema.org property descriptor onto typed fact
// fields with structured-extraction provenance.
package normalize

import (
	"strings"

	"github.com/proplens/proplens/internal/jsonld"
	"github.com/proplens/proplens/internal/model"
)

// Confidences assigned to structured values.
const (
	ConfDwellingType  = 0.85
	ConfCount         = 0.9
	ConfAmenityRoom   = 0.8
	ConfAmenityCar    = 0.7
	ConfAreaMetric    = 0.75
	ConfAreaImperial  = 0.7
	ConfAreaUnknown   = 0.6
	ConfLastSoldPrice = 0.5
)

// SqftToSqm converts square feet to square metres.
const SqftToSqm = 0.092903

// dwellingTypes are the declared types accepted as a dwelling type.
var dwellingTypes = map[string]bool{
	"House":                 true,
	"Apartment":             true,
	"SingleFamilyResidence": true,
	"Residence":             true,
}

var countProps = []struct {
	prop string
	key  model.FieldKey
}{
	{"numberOfBedrooms", model.FieldBeds},
	{"numberOfBathroomsTotal", model.FieldBaths},
	{"numberOfParkingSpaces", model.FieldCars},
}

var metricUnits = map[string]bool{
	"mtk": true, "sqm": true, "sqm.": true, "m2": true, "m^2": true, "m²": true,
	"sq m": true, "square metres": true, "square meters": true,
}

var imperialUnits = map[string]bool{
	"ftk": true, "sqft": true, "ft2": true, "ft^2": true, "ft²": true,
	"sq ft": true, "square feet": true,
}

// Structured derives fact fields from a property descriptor. Each rule is
// independent: a missing or unusable source property yields no field.
func Structured(n jsonld.Node) model.FieldSet {
	out := make(model.FieldSet)
	if !n.IsObject() {
		return out
	}

	if t, ok := dwellingType(n); ok {
		out[model.FieldDwellingType] = model.NewFieldValue(t, model.SourceStructured, ConfDwellingType)
	}

	for _, c := range countProps {
		if v, ok := count(n.Get(c.prop)); ok {
			out[c.key] = model.NewFieldValue(v, model.SourceStructured, ConfCount)
		}
	}
	amenities(n.Get("amenityFeature"), out)

	if v, conf, ok := area(n.Get("floorSize")); ok {
		out[model.FieldBuildSqm] = model.NewFieldValue(v, model.SourceStructured, conf)
	}
	if v, conf, ok := area(n.Get("lotSize")); ok {
		out[model.FieldLandSqm] = model.NewFieldValue(v, model.SourceStructured, conf)
	}

	if p, ok := price(n.Get("offers")); ok {
		out[model.FieldLastSoldPrice] = model.NewFieldValue(p, model.SourceStructured, ConfLastSoldPrice)
	}
	return out
}

// dwellingType returns a single declared type as-is, or the first entry of a
// type list in the recognized dwelling set.
func dwellingType(n jsonld.Node) (string, bool) {
	t := n.Get("@type")
	if s, ok := t.Str(); ok {
		return s, dwellingTypes[s]
	}
	for _, item := range t.Items() {
		if s, ok := item.Str(); ok && dwellingTypes[s] {
			return s, true
		}
	}
	return "", false
}

// count reads a count property given directly or as a QuantitativeValue.
func count(n jsonld.Node) (float64, bool) {
	if n.IsObject() {
		n = n.Get("value")
	}
	return n.Number()
}

// amenities fills bed, bath and car fields from an amenityFeature list
// without overwriting values already present. The first matching entry in
// list order wins.
func amenities(list jsonld.Node, out model.FieldSet) {
	for _, feat := range list.Items() {
		if !feat.IsObject() {
			continue
		}
		v, ok := feat.Get("value").Number()
		if !ok {
			continue
		}
		name := strings.ToLower(feat.Get("name").Text())
		if strings.Contains(name, "bath") {
			out.SetDefault(model.FieldBaths, model.NewFieldValue(v, model.SourceStructured, ConfAmenityRoom))
		}
		if strings.Contains(name, "bed") {
			out.SetDefault(model.FieldBeds, model.NewFieldValue(v, model.SourceStructured, ConfAmenityRoom))
		}
		if strings.Contains(name, "car") || strings.Contains(name, "garage") || strings.Contains(name, "parking") {
			out.SetDefault(model.FieldCars, model.NewFieldValue(v, model.SourceStructured, ConfAmenityCar))
		}
	}
}

// area reads a QuantitativeValue size node and converts it to square metres.
// Unrecognized units are passed through at reduced confidence.
func area(n jsonld.Node) (float64, float64, bool) {
	if !n.IsObject() {
		return 0, 0, false
	}
	v, ok := n.Get("value").Number()
	if !ok {
		return 0, 0, false
	}
	switch unit := unitOf(n); {
	case metricUnits[unit]:
		return v, ConfAreaMetric, true
	case imperialUnits[unit]:
		return v * SqftToSqm, ConfAreaImperial, true
	default:
		return v, ConfAreaUnknown, true
	}
}

func unitOf(n jsonld.Node) string {
	for _, key := range []string{"unitCode", "unitText"} {
		if s := strings.TrimSpace(n.Get(key).Text()); s != "" {
			return strings.ToLower(s)
		}
	}
	return ""
}

// price reads a truthy price from an offer object or the first object of an
// offer list.
func price(offers jsonld.Node) (float64, bool) {
	if offers.IsList() {
		first := jsonld.Absent
		for _, item := range offers.Items() {
			if item.IsObject() {
				first = item
				break
			}
		}
		offers = first
	}
	if !offers.IsObject() {
		return 0, false
	}
	p, ok := offers.Get("price").Number()
	if !ok || p == 0 {
		return 0, false
	}
	return p, true
}

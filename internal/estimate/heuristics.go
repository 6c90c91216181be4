// Package estimate provides the deterministic fallback estimates used when
// no better source supplies a property fact.
package estimate

import "github.com/proplens/proplens/internal/model"

// Confidences of heuristic values.
const (
	ConfHeuristic = 0.5
	ConfBuildSqm  = 0.4
	ConfLandHint  = 0.6
)

// Thresholds in square metres.
const (
	LargeLotSqm  = 450.0
	HouseLotSqm  = 250.0
	LargeHomeSqm = 180.0
	SmallHomeSqm = 140.0
)

// Heuristics derives a full set of estimated facts from an optional land
// area hint. It makes no external calls. A hint is only used when positive;
// it is then returned as land_sqm with open-data provenance.
func Heuristics(_ model.ResolvedAddress, landHint *float64) model.FieldSet {
	land := 0.0
	if landHint != nil && *landHint > 0 {
		land = *landHint
	}

	beds := 3.0
	if land >= LargeLotSqm {
		beds = 4
	}
	baths, cars := 1.0, 1.0
	if beds >= 3 {
		baths, cars = 2, 2
	}
	build := SmallHomeSqm
	if beds >= 4 {
		build = LargeHomeSqm
	}
	dwelling := "Apartment"
	if land >= HouseLotSqm {
		dwelling = "House"
	}

	out := model.FieldSet{
		model.FieldDwellingType: model.NewFieldValue(dwelling, model.SourceEstimated, ConfHeuristic),
		model.FieldBeds:         model.NewFieldValue(beds, model.SourceEstimated, ConfHeuristic),
		model.FieldBaths:        model.NewFieldValue(baths, model.SourceEstimated, ConfHeuristic),
		model.FieldCars:         model.NewFieldValue(cars, model.SourceEstimated, ConfHeuristic),
		model.FieldBuildSqm:     model.NewFieldValue(build, model.SourceEstimated, ConfBuildSqm),
	}
	if land > 0 {
		out[model.FieldLandSqm] = model.NewFieldValue(land, model.SourceOpenData, ConfLandHint)
	}
	return out
}

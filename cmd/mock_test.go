package main

import (
	"context"
	"time"

	"github.com/proplens/proplens/internal/calc"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/pipeline"
)

type fakeGeocoder struct {
	results []model.ResolvedAddress
	err     error
	queries []string
}

func (f *fakeGeocoder) Search(_ context.Context, query string) ([]model.ResolvedAddress, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

// fakeResearcher returns facts built from the address with the given beds
// and land area.
type fakeResearcher struct {
	beds, land float64
	err        error
	got        []model.ResolvedAddress
}

func (f *fakeResearcher) Run(_ context.Context, addr model.ResolvedAddress) (*pipeline.Report, error) {
	f.got = append(f.got, addr)
	if f.err != nil {
		return nil, f.err
	}
	facts := model.PropertyFacts{
		Address:  addr,
		Beds:     model.NewFieldValue(f.beds, model.SourceStructured, 0.9),
		LandSqm:  model.NewFieldValue(f.land, model.SourceOpenData, 0.8),
		Sources: []model.SourceAnnotation{{
			URL:       "https://listing.example/p/1",
			Robots:    model.RobotsAllowed,
			Fetched:   true,
			Found:     true,
			FetchedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		}},
	}
	return &pipeline.Report{RunID: "run-1", Facts: facts, StartedAt: time.Now()}, nil
}

var (
	kingSt = model.ResolvedAddress{
		Query:       "1 King St Newtown",
		DisplayName: "1, King Street, Newtown, Sydney, New South Wales, 2042, Australia",
		Lat:         -33.8975,
		Lon:         151.1793,
		Suburb:      "Newtown",
		State:       "New South Wales",
		Postcode:    "2042",
	}
	queenSt = model.ResolvedAddress{
		Query:       "1 King St Newtown",
		DisplayName: "1, Queen Street, Melbourne, Victoria, 3000, Australia",
		Lat:         -37.8136,
		Lon:         144.9631,
		Suburb:      "Melbourne",
		State:       "Victoria",
		Postcode:    "3000",
	}
)

func testFinance() calc.FinanceInputs {
	return calc.FinanceInputs{
		DepositPct:      20,
		VariableRatePct: 6.25,
		FixedRatePct:    5.89,
		RateType:        "variable",
		RepaymentType:   "P&I",
		TermYears:       30,
		PMFeePct:        7,
		YieldPct:        4,
		Risk:            "medium",
	}
}

func newTestEnv(geo *fakeGeocoder, res *fakeResearcher) *appEnv {
	return &appEnv{
		Geocoder: geo,
		Pipeline: res,
		Calc:     calc.Default(),
		Finance:  testFinance(),
	}
}

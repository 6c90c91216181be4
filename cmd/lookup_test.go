package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proplens/proplens/internal/calc"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/pipeline"
)

func TestLookup_PicksBestMatch(t *testing.T) {
	geo := &fakeGeocoder{results: []model.ResolvedAddress{queenSt, kingSt}}
	res := &fakeResearcher{beds: 3, land: 420}
	env := newTestEnv(geo, res)

	out, err := env.lookup(context.Background(), lookupRequest{Query: "1 King St Newtown"})
	require.NoError(t, err)

	require.Len(t, res.got, 1)
	assert.Equal(t, kingSt.DisplayName, res.got[0].DisplayName)
	assert.Equal(t, kingSt.DisplayName, out.Address.DisplayName)
	assert.Greater(t, out.Match, 0.8)
	assert.Equal(t, []string{"1 King St Newtown"}, geo.queries)
}

func TestLookup_ExplicitPick(t *testing.T) {
	geo := &fakeGeocoder{results: []model.ResolvedAddress{kingSt, queenSt}}
	res := &fakeResearcher{beds: 3}
	env := newTestEnv(geo, res)

	pick := 1
	out, err := env.lookup(context.Background(), lookupRequest{Query: "1 King St Newtown", Pick: &pick})
	require.NoError(t, err)
	assert.Equal(t, "Victoria", out.Address.State)
}

func TestLookup_PickOutOfRange(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, &fakeResearcher{})

	pick := 3
	_, err := env.lookup(context.Background(), lookupRequest{Query: "x", Pick: &pick})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBadRequest))
}

func TestLookup_NoCandidates(t *testing.T) {
	res := &fakeResearcher{}
	env := newTestEnv(&fakeGeocoder{}, res)

	_, err := env.lookup(context.Background(), lookupRequest{Query: "nowhere"})
	assert.True(t, errors.Is(err, errNoCandidates))
	assert.Empty(t, res.got)
}

func TestLookup_GeocodeError(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{err: eris.New("geocode: status 503")}, &fakeResearcher{})

	_, err := env.lookup(context.Background(), lookupRequest{Query: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errBadRequest))
	assert.False(t, errors.Is(err, errNoCandidates))
}

func TestLookup_InvalidAddressIsBadRequest(t *testing.T) {
	res := &fakeResearcher{err: eris.Wrap(pipeline.ErrInvalidAddress, "lat out of range")}
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, res)

	_, err := env.lookup(context.Background(), lookupRequest{Query: "x"})
	assert.True(t, errors.Is(err, errBadRequest))
}

func TestLookup_OverridesWin(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, &fakeResearcher{beds: 2, land: 300})

	out, err := env.lookup(context.Background(), lookupRequest{
		Query: "1 King St Newtown",
		Overrides: map[string]any{
			"beds":            "4",
			"last_sold_price": 800000.0,
		},
	})
	require.NoError(t, err)

	facts := out.Report.Facts
	assert.Equal(t, 4.0, facts.Beds.Value)
	assert.Equal(t, model.SourceUser, facts.Beds.Source)
	assert.Equal(t, 1.0, facts.Beds.Confidence)
	require.NotNil(t, facts.LastSoldPrice)

	assert.Equal(t, 800000.0, out.Summary.Price)
	assert.InDelta(t, 30529, out.Summary.StampDuty, 0.5)
	assert.InDelta(t, 640000, out.Summary.Loan, 0.001)
}

func TestLookup_UnknownOverride(t *testing.T) {
	res := &fakeResearcher{}
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, res)

	_, err := env.lookup(context.Background(), lookupRequest{
		Query:     "x",
		Overrides: map[string]any{"pool": true},
	})
	assert.True(t, errors.Is(err, errBadRequest))
	assert.Empty(t, res.got)
}

func TestLookup_BadOverrideValue(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, &fakeResearcher{})

	_, err := env.lookup(context.Background(), lookupRequest{
		Query:     "x",
		Overrides: map[string]any{"beds": "lots"},
	})
	assert.True(t, errors.Is(err, errBadRequest))
}

func TestLookup_InvalidFinance(t *testing.T) {
	res := &fakeResearcher{}
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, res)

	fin := testFinance()
	fin.DepositPct = 120
	_, err := env.lookup(context.Background(), lookupRequest{Query: "x", Finance: &fin})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBadRequest))
	assert.Contains(t, err.Error(), "DepositPct")
	assert.Empty(t, res.got)
}

func TestLookup_OwnerOccupierHasNoInflow(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, &fakeResearcher{})

	fin := testFinance()
	fin.OwnerOccupier = true
	fin.Price = 900000
	out, err := env.lookup(context.Background(), lookupRequest{Query: "x", Finance: &fin})
	require.NoError(t, err)
	assert.Zero(t, out.Summary.InflowMonthly)
	assert.False(t, out.Summary.Positive())
}

func TestToOverrides(t *testing.T) {
	got, err := toOverrides(map[string]any{"land_sqm": 512.0, "dwelling_type": "house"})
	require.NoError(t, err)
	assert.Equal(t, map[model.FieldKey]any{
		model.FieldLandSqm:      512.0,
		model.FieldDwellingType: "house",
	}, got)

	_, err = toOverrides(map[string]any{"garage": 1})
	assert.True(t, errors.Is(err, errBadRequest))
}

func TestWriteReport(t *testing.T) {
	env := newTestEnv(&fakeGeocoder{results: []model.ResolvedAddress{kingSt}}, &fakeResearcher{beds: 3, land: 420})
	out, err := env.lookup(context.Background(), lookupRequest{Query: "1 King St Newtown"})
	require.NoError(t, err)

	var buf bytes.Buffer
	writeReport(&buf, out)
	text := buf.String()

	assert.Contains(t, text, kingSt.DisplayName)
	assert.Contains(t, text, "Newtown")
	assert.Contains(t, text, "run-1")
	assert.Contains(t, text, "beds")
	assert.Contains(t, text, "open_data")
	assert.Contains(t, text, "Stamp duty:")
	assert.Contains(t, text, "https://listing.example/p/1 [robots: allowed] [ts: 2025-03-01 10:00:00]")
	assert.NotContains(t, text, "last_sold_price")
}

func TestWriteReport_NoSources(t *testing.T) {
	res := &lookupResult{
		Report:  &pipeline.Report{Facts: model.PropertyFacts{Address: kingSt}},
		Summary: calc.Summary{CashflowMonthly: 10},
	}
	var buf bytes.Buffer
	writeReport(&buf, res)
	assert.Contains(t, buf.String(), "No third-party fetches used")
	assert.Contains(t, buf.String(), "(positive)")
}

func TestLookupCommand_Flags(t *testing.T) {
	for _, name := range []string{"pick", "json", "beds", "baths", "cars", "land", "build", "price", "dwelling-type"} {
		assert.NotNil(t, lookupCmd.Flags().Lookup(name), "lookup should have --%s", name)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/proplens/proplens/internal/calc"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/pipeline"
	"github.com/proplens/proplens/pkg/geocode"
)

var (
	errNoCandidates = eris.New("no address matches the query")
	errBadRequest   = eris.New("bad request")
)

// lookupRequest is one research request from the CLI or the API.
type lookupRequest struct {
	Query     string              `json:"query"`
	Pick      *int                `json:"pick,omitempty"`
	Overrides map[string]any      `json:"overrides,omitempty"`
	Finance   *calc.FinanceInputs `json:"finance,omitempty"`
}

// lookupResult is the facts record and finance summary for one request.
type lookupResult struct {
	Address model.ResolvedAddress `json:"address"`
	Match   float64               `json:"match"`
	Report  *pipeline.Report      `json:"report"`
	Summary calc.Summary          `json:"summary"`
}

// lookup geocodes req.Query, researches the chosen candidate, applies the
// user's overrides and prices the purchase.
func (e *appEnv) lookup(ctx context.Context, req lookupRequest) (*lookupResult, error) {
	finance := e.Finance
	if req.Finance != nil {
		finance = *req.Finance
	}
	if err := finance.Validate(); err != nil {
		return nil, eris.Wrap(errBadRequest, "finance: "+err.Error())
	}
	overrides, err := toOverrides(req.Overrides)
	if err != nil {
		return nil, err
	}

	candidates, err := e.Geocoder.Search(ctx, req.Query)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: geocode")
	}
	if len(candidates) == 0 {
		return nil, errNoCandidates
	}

	idx, score := geocode.BestMatch(req.Query, candidates)
	if req.Pick != nil {
		if *req.Pick < 0 || *req.Pick >= len(candidates) {
			return nil, eris.Wrapf(errBadRequest, "pick %d out of range (%d candidates)", *req.Pick, len(candidates))
		}
		idx = *req.Pick
		score = geocode.Similarity(req.Query, candidates[idx].DisplayName)
	}
	addr := candidates[idx]

	report, err := e.Pipeline.Run(ctx, addr)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidAddress) {
			return nil, eris.Wrap(errBadRequest, err.Error())
		}
		return nil, eris.Wrap(err, "lookup: pipeline")
	}
	if err := report.Facts.ApplyOverrides(overrides); err != nil {
		return nil, eris.Wrap(errBadRequest, err.Error())
	}

	return &lookupResult{
		Address: addr,
		Match:   score,
		Report:  report,
		Summary: e.Calc.Summarize(report.Facts, finance),
	}, nil
}

func toOverrides(raw map[string]any) (map[model.FieldKey]any, error) {
	out := make(map[model.FieldKey]any, len(raw))
	for k, v := range raw {
		key := model.FieldKey(k)
		var probe model.PropertyFacts
		if key != model.FieldLastSoldPrice && probe.Field(key) == nil {
			return nil, eris.Wrapf(errBadRequest, "unknown override %q", k)
		}
		out[key] = v
	}
	return out, nil
}

var lookupFlags struct {
	pick     int
	asJSON   bool
	beds     float64
	baths    float64
	cars     float64
	land     float64
	build    float64
	price    float64
	dwelling string
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Research a property and price the purchase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg)
		if err != nil {
			return err
		}

		req := lookupRequest{Query: args[0], Overrides: map[string]any{}}
		flags := cmd.Flags()
		if flags.Changed("pick") {
			req.Pick = &lookupFlags.pick
		}
		for name, key := range map[string]model.FieldKey{
			"beds":  model.FieldBeds,
			"baths": model.FieldBaths,
			"cars":  model.FieldCars,
			"land":  model.FieldLandSqm,
			"build": model.FieldBuildSqm,
			"price": model.FieldLastSoldPrice,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetFloat64(name)
				req.Overrides[string(key)] = v
			}
		}
		if flags.Changed("dwelling-type") {
			req.Overrides[string(model.FieldDwellingType)] = lookupFlags.dwelling
		}

		res, err := env.lookup(cmd.Context(), req)
		if err != nil {
			return err
		}
		if lookupFlags.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		writeReport(os.Stdout, res)
		return nil
	},
}

func init() {
	f := lookupCmd.Flags()
	f.IntVar(&lookupFlags.pick, "pick", 0, "geocoding candidate index (default: best match)")
	f.BoolVar(&lookupFlags.asJSON, "json", false, "print the result as JSON")
	f.Float64Var(&lookupFlags.beds, "beds", 0, "override bedrooms")
	f.Float64Var(&lookupFlags.baths, "baths", 0, "override bathrooms")
	f.Float64Var(&lookupFlags.cars, "cars", 0, "override car spaces")
	f.Float64Var(&lookupFlags.land, "land", 0, "override land area (sqm)")
	f.Float64Var(&lookupFlags.build, "build", 0, "override build area (sqm)")
	f.Float64Var(&lookupFlags.price, "price", 0, "override purchase price")
	f.StringVar(&lookupFlags.dwelling, "dwelling-type", "", "override dwelling type")
	rootCmd.AddCommand(lookupCmd)
}

// writeReport prints res in a human-readable form.
func writeReport(w io.Writer, res *lookupResult) {
	facts := res.Report.Facts
	a := facts.Address
	fmt.Fprintf(w, "Address:  %s\n", a.DisplayName)
	fmt.Fprintf(w, "Suburb:   %s | State: %s | Postcode: %s\n", orDash(a.Suburb), orDash(a.State), orDash(a.Postcode))
	fmt.Fprintf(w, "Run:      %s (%s)\n\n", res.Report.RunID, res.Report.Duration.Round(1e6))

	fmt.Fprintln(w, "Property facts")
	for _, key := range model.FactFields {
		writeField(w, key, facts.Field(key))
	}
	if facts.LastSoldPrice != nil {
		writeField(w, model.FieldLastSoldPrice, facts.LastSoldPrice)
	}

	s := res.Summary
	fmt.Fprintln(w, "\nExpenses and cashflow")
	fmt.Fprintf(w, "  Purchase price:        $%.0f\n", s.Price)
	fmt.Fprintf(w, "  Stamp duty:            $%.0f\n", s.StampDuty)
	fmt.Fprintf(w, "  Council rates (year):  $%.0f\n", s.CouncilRatesAnnual)
	fmt.Fprintf(w, "  Insurance (year):      $%.0f for sum insured $%.0f\n", s.InsuranceAnnual, s.SumInsured)
	fmt.Fprintf(w, "  Repayment (month):     $%.0f\n", s.RepaymentMonthly)
	verdict := "negative"
	if s.Positive() {
		verdict = "positive"
	}
	fmt.Fprintf(w, "  Net cashflow (month):  $%.0f (%s)\n", s.CashflowMonthly, verdict)

	fmt.Fprintln(w, "\nSources")
	if len(facts.Sources) == 0 {
		fmt.Fprintln(w, "  No third-party fetches used or all were disallowed.")
	}
	for _, src := range facts.Sources {
		fmt.Fprintf(w, "  %s\n", src)
	}
}

func writeField(w io.Writer, key model.FieldKey, fv *model.FieldValue) {
	val := "-"
	if fv.Known() {
		val = fmt.Sprint(fv.Value)
	}
	fmt.Fprintf(w, "  %-16s %-12s %-10s %.2f\n", key, val, fv.Source, fv.Confidence)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

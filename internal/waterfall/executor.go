// Package waterfall fuses per-tier fact values into one record by strict
// tier priority, recording which tier supplied each field.
package waterfall

import (
	"slices"

	"go.uber.org/zap"

	"github.com/proplens/proplens/internal/model"
)

// Executor resolves fields against an ordered policy table.
type Executor struct {
	policy Policy
}

// NewExecutor creates an executor. A nil policy uses DefaultPolicy.
func NewExecutor(policy Policy) *Executor {
	if len(policy) == 0 {
		policy = DefaultPolicy
	}
	return &Executor{policy: policy}
}

// Policy returns the executor's resolution table.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Run resolves every policy field: the first listed tier holding a value
// wins. Required fields with no value anywhere get an absent value with
// estimated provenance and FallbackConfidence. The source log is carried
// through unchanged.
func (e *Executor) Run(in Inputs) *Result {
	res := &Result{
		Facts: model.PropertyFacts{
			Address: in.Address,
			Sources: slices.Clone(in.Sources),
		},
	}
	if res.Facts.Sources == nil {
		res.Facts.Sources = []model.SourceAnnotation{}
	}

	for _, fp := range e.policy {
		r := FieldResolution{Key: fp.Key}
		for _, tier := range fp.Sources {
			fv, ok := lookup(in, tier, fp.Key)
			a := Attempt{Tier: tier, Present: ok}
			if ok {
				a.Value = &fv
			}
			r.Attempts = append(r.Attempts, a)
			if ok && !r.Resolved {
				r.Resolved = true
				r.Winner = tier
				r.Value = &fv
			}
		}

		switch {
		case r.Resolved:
			_ = res.Facts.Set(fp.Key, *r.Value)
		case !fp.Optional:
			fallback := model.NewFieldValue(nil, model.SourceEstimated, FallbackConfidence)
			r.Value = &fallback
			_ = res.Facts.Set(fp.Key, fallback)
		}

		zap.L().Debug("waterfall: field resolved",
			zap.String("field", string(fp.Key)),
			zap.Bool("resolved", r.Resolved),
			zap.String("winner", string(r.Winner)),
		)
		res.Resolutions = append(res.Resolutions, r)
	}
	return res
}

// lookup returns the value a tier holds for key.
func lookup(in Inputs, tier Tier, key model.FieldKey) (model.FieldValue, bool) {
	switch tier {
	case TierStructured:
		fv, ok := in.Structured[key]
		return fv, ok
	case TierOpenData:
		v, ok := in.OpenData.Value(key)
		if !ok {
			return model.FieldValue{}, false
		}
		conf := in.OpenData.Confidence
		if conf == 0 {
			conf = DefaultOpenDataConfidence
		}
		return model.NewFieldValue(numeric(v), model.SourceOpenData, conf), true
	case TierHeuristic:
		fv, ok := in.Heuristic[key]
		return fv, ok
	default:
		return model.FieldValue{}, false
	}
}

func numeric(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Merge fuses the tiers with DefaultPolicy and returns the record.
func Merge(
	addr model.ResolvedAddress,
	structured model.FieldSet,
	openData *model.OpenDataRecord,
	heuristic model.FieldSet,
	sources []model.SourceAnnotation,
) model.PropertyFacts {
	return NewExecutor(nil).Run(Inputs{
		Address:    addr,
		Structured: structured,
		OpenData:   openData,
		Heuristic:  heuristic,
		Sources:    sources,
	}).Facts
}

package calc

import (
	"strings"
)

// DefaultLGA is used for council rates when the address has no LGA.
const DefaultLGA = "Default LGA"

var stateAbbrev = map[string]string{
	"NEW SOUTH WALES":              "NSW",
	"VICTORIA":                     "VIC",
	"QUEENSLAND":                   "QLD",
	"SOUTH AUSTRALIA":              "SA",
	"WESTERN AUSTRALIA":            "WA",
	"TASMANIA":                     "TAS",
	"NORTHERN TERRITORY":           "NT",
	"AUSTRALIAN CAPITAL TERRITORY": "ACT",
}

// StateCode returns the postal abbreviation for an Australian state name
// or abbreviation. Unknown names are returned upper-cased.
func StateCode(state string) string {
	s := strings.ToUpper(strings.TrimSpace(state))
	if code, ok := stateAbbrev[s]; ok {
		return code
	}
	return s
}

// Calculator applies a rule set.
type Calculator struct {
	rules Rules
}

// NewCalculator creates a Calculator with the given rules.
func NewCalculator(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

var defaultCalc = NewCalculator(DefaultRules())

// Default returns the Calculator backed by the built-in rules.
func Default() *Calculator { return defaultCalc }

// StampDuty returns the transfer duty on price in state using the default rules.
func StampDuty(price float64, state string, ownerOcc bool) float64 {
	return defaultCalc.StampDuty(price, state, ownerOcc)
}

// CouncilRates returns the annual council rates estimate using the default rules.
func CouncilRates(lga string, landSqm float64) float64 {
	return defaultCalc.CouncilRates(lga, landSqm)
}

// SumInsured returns the rebuild sum insured using the default rules.
func SumInsured(buildSqm float64) float64 {
	return defaultCalc.SumInsured(buildSqm)
}

// Premium returns the annual premium using the default rules.
func Premium(sumInsured float64, risk string) float64 {
	return defaultCalc.Premium(sumInsured, risk)
}

// StampDuty returns the transfer duty on price. States with a schedule use
// the first band containing price; others pay the flat fallback rate.
func (c *Calculator) StampDuty(price float64, state string, ownerOcc bool) float64 {
	sd, ok := c.rules.StampDuty.States[StateCode(state)]
	if !ok {
		return price * c.rules.StampDuty.FallbackRate
	}

	duty := 0.0
	for _, b := range sd.Bands {
		if price >= b.Low && (b.High == nil || price <= *b.High) {
			duty = b.Base + (price-b.Low)*b.Rate
			break
		}
	}
	if ownerOcc && sd.OwnerOccupierDiscount > 0 {
		duty = max(0, duty*(1-sd.OwnerOccupierDiscount))
	}
	return duty
}

// CouncilRates returns the annual council rates: a base charge plus a
// per-square-metre charge over the threshold, scaled by the first LGA
// modifier that applies.
func (c *Calculator) CouncilRates(lga string, landSqm float64) float64 {
	r := c.rules.Council
	rates := r.Base + r.PerSqm*max(0, landSqm-r.ThresholdSqm)
	for _, m := range r.Modifiers {
		if lga != "" && m.Contains != "" && strings.Contains(lga, m.Contains) {
			rates *= m.Multiplier
			break
		}
	}
	return rates
}

// SumInsured returns the rebuild cost of buildSqm square metres.
func (c *Calculator) SumInsured(buildSqm float64) float64 {
	return max(0, buildSqm) * c.rules.Insurance.CostPerSqm
}

// Premium returns the annual premium for sumInsured. Unknown risk bands
// use a multiplier of 1.
func (c *Calculator) Premium(sumInsured float64, risk string) float64 {
	mult, ok := c.rules.Insurance.RiskMultipliers[strings.ToLower(risk)]
	if !ok {
		mult = 1
	}
	return sumInsured * c.rules.Insurance.BaseRate * mult
}

// Package calc implements the purchase cost and cashflow calculators that
// consume a property facts record.
package calc

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules holds the tables the calculators apply.
type Rules struct {
	StampDuty StampDutyRules `yaml:"stamp_duty"`
	Council   CouncilRules   `yaml:"council"`
	Insurance InsuranceRules `yaml:"insurance"`
}

// StampDutyRules holds per-state band tables. States without a table pay
// FallbackRate on the full price.
type StampDutyRules struct {
	FallbackRate float64              `yaml:"fallback_rate"`
	States       map[string]StateDuty `yaml:"states"`
}

// StateDuty is one state's progressive schedule.
type StateDuty struct {
	OwnerOccupierDiscount float64    `yaml:"owner_occupier_discount"` // fraction in [0,1]
	Bands                 []DutyBand `yaml:"bands"`
}

// DutyBand is one bracket of a schedule. A nil High is open ended.
type DutyBand struct {
	Low  float64  `yaml:"low"`
	High *float64 `yaml:"high"`
	Base float64  `yaml:"base"`
	Rate float64  `yaml:"rate"`
}

// CouncilRules drives the council rates estimate.
type CouncilRules struct {
	Base         float64       `yaml:"base"`
	ThresholdSqm float64       `yaml:"threshold_sqm"`
	PerSqm       float64       `yaml:"per_sqm"`
	Modifiers    []LGAModifier `yaml:"modifiers"`
}

// LGAModifier scales the estimate for LGAs whose name contains Contains.
type LGAModifier struct {
	Contains   string  `yaml:"contains"`
	Multiplier float64 `yaml:"multiplier"`
}

// InsuranceRules drives the building insurance estimate.
type InsuranceRules struct {
	CostPerSqm      float64            `yaml:"cost_per_sqm"`
	BaseRate        float64            `yaml:"base_rate"`
	RiskMultipliers map[string]float64 `yaml:"risk_multipliers"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "calc: read rules %s", path)
	}
	return ParseRules(data)
}

// ParseRules decodes rules from YAML and checks the band tables.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, eris.Wrap(err, "calc: parse rules")
	}
	for state, sd := range r.StampDuty.States {
		for i, b := range sd.Bands {
			if b.High != nil && *b.High < b.Low {
				return Rules{}, eris.Errorf("calc: %s band %d: high below low", state, i)
			}
			if i > 0 && b.Low < sd.Bands[i-1].Low {
				return Rules{}, eris.Errorf("calc: %s bands out of order at %d", state, i)
			}
		}
	}
	return r, nil
}

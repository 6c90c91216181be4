package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/proplens/proplens/internal/model"
)

// FieldPolicy lists, in priority order, the tiers allowed to supply a field.
// Optional fields are left unset when no tier supplies them instead of
// receiving the low-confidence fallback.
type FieldPolicy struct {
	Key      model.FieldKey `yaml:"key"`
	Sources  []Tier         `yaml:"sources"`
	Optional bool           `yaml:"optional,omitempty"`
}

// Policy is the ordered per-field resolution table.
type Policy []FieldPolicy

var allTiers = []Tier{TierStructured, TierOpenData, TierHeuristic}

// DefaultPolicy resolves every fact field structured first, then open data,
// then heuristics. Last-sold price is trusted from structured data only.
var DefaultPolicy = Policy{
	{Key: model.FieldDwellingType, Sources: allTiers},
	{Key: model.FieldBeds, Sources: allTiers},
	{Key: model.FieldBaths, Sources: allTiers},
	{Key: model.FieldCars, Sources: allTiers},
	{Key: model.FieldLandSqm, Sources: allTiers},
	{Key: model.FieldBuildSqm, Sources: allTiers},
	{Key: model.FieldLastSoldPrice, Sources: []Tier{TierStructured}, Optional: true},
}

// LoadPolicy reads a policy table from a YAML file with a top-level
// "fusion" key.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read policy %s", path)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy table.
func ParsePolicy(data []byte) (Policy, error) {
	var wrapper struct {
		Fusion struct {
			Fields Policy `yaml:"fields"`
		} `yaml:"fusion"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse policy")
	}
	p := wrapper.Fusion.Fields
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every field appears once with known tiers listed in
// precedence order, that every fact field is covered and non-optional, and
// that last-sold price stays structured-only.
func (p Policy) Validate() error {
	if len(p) == 0 {
		return eris.New("waterfall: empty policy")
	}
	seen := make(map[model.FieldKey]bool, len(p))
	for _, fp := range p {
		if seen[fp.Key] {
			return eris.Errorf("waterfall: field %q listed twice", fp.Key)
		}
		seen[fp.Key] = true
		if fp.Key == model.FieldLastSoldPrice {
			if len(fp.Sources) != 1 || fp.Sources[0] != TierStructured || !fp.Optional {
				return eris.New("waterfall: last_sold_price must be optional and structured-only")
			}
		} else if !knownField(fp.Key) {
			return eris.Errorf("waterfall: unknown field %q", fp.Key)
		} else if fp.Optional {
			return eris.Errorf("waterfall: field %q cannot be optional", fp.Key)
		}
		if len(fp.Sources) == 0 {
			return eris.Errorf("waterfall: field %q has no sources", fp.Key)
		}
		prev := -1
		for _, t := range fp.Sources {
			if !t.Valid() {
				return eris.Errorf("waterfall: field %q has unknown tier %q", fp.Key, t)
			}
			r := tierRank(t)
			if r <= prev {
				return eris.Errorf("waterfall: field %q tiers out of order at %q", fp.Key, t)
			}
			prev = r
		}
	}
	for _, k := range model.FactFields {
		if !seen[k] {
			return eris.Errorf("waterfall: field %q missing from policy", k)
		}
	}
	return nil
}

// tierRank is the position of t in the fixed precedence order.
func tierRank(t Tier) int {
	for i, at := range allTiers {
		if at == t {
			return i
		}
	}
	return -1
}

func knownField(k model.FieldKey) bool {
	for _, f := range model.FactFields {
		if f == k {
			return true
		}
	}
	return false
}

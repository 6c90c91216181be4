package waterfall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proplens/proplens/internal/model"
)

const policyYAML = `
fusion:
  fields:
    - key: dwelling_type
      sources: [structured, heuristic]
    - key: beds
      sources: [structured, open_data, heuristic]
    - key: baths
      sources: [structured, heuristic]
    - key: cars
      sources: [structured, heuristic]
    - key: land_sqm
      sources: [open_data, heuristic]
    - key: build_sqm
      sources: [structured, heuristic]
    - key: last_sold_price
      sources: [structured]
      optional: true
`

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fusion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Len(t, p, 7)
	assert.Equal(t, model.FieldLandSqm, p[4].Key)
	assert.Equal(t, []Tier{TierOpenData, TierHeuristic}, p[4].Sources)
	assert.True(t, p[6].Optional)
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"empty", `fusion: {fields: []}`, "empty policy"},
		{"bad yaml", `fusion: [`, "parse policy"},
		{"unknown tier", `
fusion:
  fields:
    - {key: beds, sources: [crystal_ball]}`, "unknown tier"},
		{"unknown field", `
fusion:
  fields:
    - {key: pool, sources: [structured]}`, "unknown field"},
		{"duplicate", `
fusion:
  fields:
    - {key: beds, sources: [structured]}
    - {key: beds, sources: [heuristic]}`, "listed twice"},
		{"no sources", `
fusion:
  fields:
    - {key: beds, sources: []}`, "no sources"},
		{"price from heuristics", `
fusion:
  fields:
    - {key: last_sold_price, sources: [structured, heuristic], optional: true}`, "structured-only"},
		{"tiers out of order", `
fusion:
  fields:
    - {key: dwelling_type, sources: [heuristic, structured]}`, "out of order"},
		{"repeated tier", `
fusion:
  fields:
    - {key: beds, sources: [structured, structured]}`, "out of order"},
		{"optional fact field", `
fusion:
  fields:
    - {key: beds, sources: [structured], optional: true}`, "cannot be optional"},
		{"missing field", `
fusion:
  fields:
    - {key: beds, sources: [structured]}`, "missing from policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDefaultPolicyIsValid(t *testing.T) {
	assert.NoError(t, DefaultPolicy.Validate())
	assert.Equal(t, DefaultPolicy, NewExecutor(nil).Policy())
}

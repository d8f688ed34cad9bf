package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedRuleSetsLoad(t *testing.T) {
	t.Parallel()

	names := EmbeddedRuleSets()
	assert.Equal(t, []string{"cerrado_landsat_c10", "cerrado_sentinel_c03", "rocky_outcrop_landsat_c10"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			rs, err := LoadEmbeddedRuleSet(name)
			require.NoError(t, err)
			assert.Equal(t, name, rs.Name)
			assert.NotNil(t, rs.Spatial)
			_, ok := rs.Version(StageGapFill)
			assert.True(t, ok, "every rule set gap-fills")
		})
	}
}

func TestLandsatRuleSetValues(t *testing.T) {
	t.Parallel()

	rs, err := LoadEmbeddedRuleSet("cerrado_landsat_c10")
	require.NoError(t, err)

	assert.Equal(t, 40, rs.Years())
	assert.Equal(t, "CERRADO_C10", rs.LineagePrefix())
	assert.Equal(t, []int{4, 11, 3, 12, 50, 21, 25, 33}, rs.Window.Classes)
	assert.Equal(t, []int{5, 4, 3}, rs.Window.Spans)
	assert.Equal(t, ClassThreshold{Class: 50, Percent: 60, Op: "gte"}, rs.Frequency.Thresholds[0])
	assert.Equal(t, 8, rs.Spatial.Threshold)
	assert.Equal(t, 4, rs.Spatial.GapClose.Radius)
	assert.Len(t, rs.Regions["gilbues"], 4)
	require.NotNil(t, rs.TrainingMask)
	assert.Len(t, rs.TrainingMask.Rules, 26)
	assert.Equal(t, "prodes", rs.TrainingMask.Rules[0].Name)
	assert.Equal(t, 11, rs.TrainingMask.MinArea.MinPixels)
}

func TestUnknownRuleSet(t *testing.T) {
	t.Parallel()

	_, err := LoadEmbeddedRuleSet("amazonia")
	assert.Error(t, err)
	assert.False(t, IsEmbeddedRuleSet("amazonia"))
	assert.True(t, IsEmbeddedRuleSet("cerrado_sentinel_c03"))
}

const minimalRuleSet = `
name: test
prefix: TEST
collection: C1
start_year: 2001
end_year: 2010
resolution_m: 30
versions: {gapfill: 1, spatial: 1}
spatial:
  threshold: 8
  max_size: 100
  kernel: {shape: square, radius: 1}
  rounds: 2
`

func TestParseMinimalRuleSet(t *testing.T) {
	t.Parallel()

	rs, err := ParseRuleSet([]byte(minimalRuleSet))
	require.NoError(t, err)
	assert.Equal(t, 10, rs.Years())
	assert.Nil(t, rs.Window)
	_, ok := rs.Version(StageTemporal)
	assert.False(t, ok)
}

func TestRuleSetThresholdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch string
		field string
	}{
		{"spatial threshold above max size", "spatial:\n  threshold: 101\n  max_size: 100\n  kernel: {shape: square, radius: 1}\n  rounds: 2\n", "spatial.threshold"},
		{"frequency above 100", "frequency:\n  group: [3]\n  group_percent: 101\n  group_op: gte\n  thresholds: [{class: 3, percent: 50, op: gte}]\n", "frequency.group_percent"},
		{"class percent above 100", "frequency:\n  group: [3]\n  group_percent: 90\n  group_op: gte\n  thresholds: [{class: 3, percent: 150, op: gt}]\n", "frequency.thresholds[0].percent"},
		{"persistence longer than series", "transitions:\n  - {kind: persistence, class: 25, min_years: 11}\n", "transitions[0].min_years"},
		{"window span longer than series", "window:\n  classes: [3]\n  spans: [11]\n", "window.spans[0]"},
		{"regrowth min above max", "regrowth:\n  native: [3]\n  anthropic: [21]\n  tail_years: 1\n  min_pixels: 30\n  max_size: 20\n", "regrowth.min_pixels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := minimalRuleSet
			if strings.HasPrefix(tt.patch, "spatial:") {
				doc = doc[:strings.Index(doc, "spatial:")]
			}
			_, err := ParseRuleSet([]byte(doc + tt.patch))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOutOfRangeThreshold)

			var te *ThresholdError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.field, te.Field)
		})
	}
}

func TestRuleSetStructErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch string
	}{
		{"unknown key", "colour: blue\n"},
		{"bad comparison", "frequency:\n  group: [3]\n  group_percent: 90\n  group_op: approx\n  thresholds: [{class: 3, percent: 50, op: gte}]\n"},
		{"unknown transition", "transitions:\n  - {kind: teleport, class: 3}\n"},
		{"unknown region", "transitions:\n  - {kind: persistence, class: 25, min_years: 3, region: nowhere}\n"},
		{"remap length mismatch", "remap: {from: [15, 18], to: [21]}\n"},
		{"unknown fusion layer", "ancillary:\n  rules:\n    - {name: r, where: [{layer: savi, op: gt, value: 1}], set: 50}\n"},
		{"in without values", "ancillary:\n  layers: [{name: l, kind: categorical, file: l}]\n  rules:\n    - {name: r, where: [{layer: l, op: in}], set: 50}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(minimalRuleSet + tt.patch))
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrOutOfRangeThreshold)
		})
	}
}

func TestLoadRuleSetFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(p, []byte(minimalRuleSet), 0o644))

	cfg := EmptyPipelineConfig()
	cfg.RuleSetPath = &p
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "", cfg.GetRuleSet())

	rs, err := cfg.LoadRuleSet()
	require.NoError(t, err)
	assert.Equal(t, "test", rs.Name)
}

package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultRuleSet is the rule set used when a run config names none.
const DefaultRuleSet = "cerrado_landsat_c10"

//go:embed rulesets/*.yaml
var embeddedRuleSets embed.FS

// Pipeline stage keys. They double as lineage stage names.
const (
	StageGapFill    = "gapfill"
	StageIncidence  = "incidence"
	StageAncillary  = "ancillary"
	StageTemporal   = "temporal"
	StageRegrowth   = "regrowth"
	StageFrequency  = "frequency"
	StageTransition = "transition"
	StageSlope      = "slope"
	StageSpatial    = "spatial"
)

// ErrOutOfRangeThreshold marks a frequency or size threshold outside its
// admissible range. It is fatal at startup; values are never clamped.
var ErrOutOfRangeThreshold = errors.New("threshold out of range")

// ThresholdError reports one out-of-range threshold.
type ThresholdError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s = %g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *ThresholdError) Unwrap() error { return ErrOutOfRangeThreshold }

// RuleSet holds every per-dataset constant of a run: year range, class
// priorities, thresholds and fusion rules. Absent optional sections disable
// their stage.
type RuleSet struct {
	Name        string         `yaml:"name" validate:"required"`
	Prefix      string         `yaml:"prefix" validate:"required,excludes=_"`
	Collection  string         `yaml:"collection" validate:"required,excludes=_"`
	StartYear   int            `yaml:"start_year" validate:"required,gte=1900"`
	EndYear     int            `yaml:"end_year" validate:"required,gtefield=StartYear"`
	ResolutionM int            `yaml:"resolution_m" validate:"required,oneof=10 30"`
	Versions    map[string]int `yaml:"versions" validate:"required,dive,keys,oneof=gapfill incidence ancillary temporal regrowth frequency transition slope spatial,endkeys,gte=0"`

	// Named lon/lat rings used by region-gated rules.
	Regions map[string][][]float64 `yaml:"regions" validate:"dive,min=3,dive,len=2"`

	Remap        *Remap        `yaml:"remap"`
	Incidence    *Incidence    `yaml:"incidence"`
	Ancillary    *Fusion       `yaml:"ancillary"`
	Window       *Window       `yaml:"window"`
	Boundary     *Boundary     `yaml:"boundary"`
	Regrowth     *Regrowth     `yaml:"regrowth"`
	Frequency    *Frequency    `yaml:"frequency"`
	Transitions  []Transition  `yaml:"transitions" validate:"dive"`
	Slope        *Slope        `yaml:"slope"`
	Spatial      *Spatial      `yaml:"spatial" validate:"required"`
	TrainingMask *TrainingMask `yaml:"training_mask"`
}

// Remap is a parallel from/to class table with an optional default.
type Remap struct {
	From    []int `yaml:"from" validate:"required,dive,gte=0,lte=255"`
	To      []int `yaml:"to" validate:"required,eqfield=From,dive,gte=0,lte=255"`
	Default *int  `yaml:"default" validate:"omitempty,gte=0,lte=255"`
}

// Incidence configures the change-incidence filter.
type Incidence struct {
	Aggregate        Remap `yaml:"aggregate"`
	Exclude          []int `yaml:"exclude" validate:"dive,gt=0,lte=255"`
	MaxSize          int   `yaml:"max_size" validate:"required,gt=0"`
	EightConnected   bool  `yaml:"eight_connected"`
	BorderMaxPixels  int   `yaml:"border_max_pixels"`
	BorderMinChanges int   `yaml:"border_min_changes"`
	MinChanges       int   `yaml:"min_changes"`
}

// Window configures the N-year dip rules.
type Window struct {
	Classes []int `yaml:"classes" validate:"required,min=1,dive,gt=0,lte=255"`
	Spans   []int `yaml:"spans" validate:"required,min=1,dive,gte=3"`
}

// Boundary configures the first/last-year anchor rules.
type Boundary struct {
	LastAnchor          []int `yaml:"last_anchor" validate:"dive,gt=0,lte=255"`
	LastFalseAppearance []int `yaml:"last_false_appearance" validate:"dive,gt=0,lte=255"`
	FirstAnchor         []int `yaml:"first_anchor" validate:"dive,gt=0,lte=255"`
}

// Regrowth configures small late-regrowth exclusion.
type Regrowth struct {
	Native         []int `yaml:"native" validate:"required,dive,gt=0,lte=255"`
	Anthropic      []int `yaml:"anthropic" validate:"required,dive,gt=0,lte=255"`
	TailYears      int   `yaml:"tail_years" validate:"oneof=1 2"`
	MinPixels      int   `yaml:"min_pixels"`
	MaxSize        int   `yaml:"max_size" validate:"required,gt=0"`
	EightConnected bool  `yaml:"eight_connected"`
}

// ClassThreshold is one frequency candidate.
type ClassThreshold struct {
	Class   int     `yaml:"class" validate:"required,gt=0,lte=255"`
	Percent float64 `yaml:"percent"`
	Op      string  `yaml:"op" validate:"required,oneof=gte gt"`
}

// Frequency configures the frequency stabilizer. Candidates are tested in
// the listed order and the first that passes wins.
type Frequency struct {
	Group        []int            `yaml:"group" validate:"required,dive,gt=0,lte=255"`
	GroupPercent float64          `yaml:"group_percent"`
	GroupOp      string           `yaml:"group_op" validate:"required,oneof=gte gt"`
	Thresholds   []ClassThreshold `yaml:"thresholds" validate:"required,dive"`
	Otherwise    int              `yaml:"otherwise" validate:"gte=0,lte=255"`
}

// Transition is one entry of the ordered transition rule list. Which
// fields apply depends on Kind.
type Transition struct {
	Kind       string `yaml:"kind" validate:"required,oneof=persistent_anthropic early_alignment no_abrupt_appearance persistence interruption endpoint_forcing"`
	Class      int    `yaml:"class" validate:"gte=0,lte=255"`
	Anthropic  int    `yaml:"anthropic" validate:"gte=0,lte=255"`
	Years      int    `yaml:"years"`
	Anchor     int    `yaml:"anchor"`
	After      int    `yaml:"after" validate:"gte=0,lte=255"`
	LastOnly   bool   `yaml:"last_only"`
	MinYears   int    `yaml:"min_years"`
	Exceptions []int  `yaml:"exceptions" validate:"dive,gt=0,lte=255"`
	Region     string `yaml:"region"`
	Outer      int    `yaml:"outer" validate:"gte=0,lte=255"`
	Inner      int    `yaml:"inner" validate:"gte=0,lte=255"`
	Replace    int    `yaml:"replace" validate:"gte=0,lte=255"`
	First      int    `yaml:"first" validate:"gte=0,lte=255"`
	Last       int    `yaml:"last" validate:"gte=0,lte=255"`
}

// Kernel is a neighbourhood footprint.
type Kernel struct {
	Shape  string `yaml:"shape" validate:"required,oneof=square manhattan"`
	Radius int    `yaml:"radius" validate:"gte=0"`
}

// SlopeRule reclassifies a class on steep terrain; Replace 0 means the
// neighbourhood mode.
type SlopeRule struct {
	Class      int     `yaml:"class" validate:"required,gt=0,lte=255"`
	MinPercent float64 `yaml:"min_percent" validate:"gte=0"`
	Replace    int     `yaml:"replace" validate:"gte=0,lte=255"`
}

// Slope configures the slope filter.
type Slope struct {
	Layer  string      `yaml:"layer" validate:"required"`
	NoData *int        `yaml:"no_data"`
	Scale  float64     `yaml:"scale" validate:"gte=0"`
	Kernel Kernel      `yaml:"kernel"`
	Rules  []SlopeRule `yaml:"rules" validate:"required,min=1,dive"`
}

// Spatial configures the minimum-mapping-unit rounds and the gap-closing
// round.
type Spatial struct {
	Threshold      int     `yaml:"threshold"`
	MaxSize        int     `yaml:"max_size" validate:"required,gt=0"`
	EightConnected bool    `yaml:"eight_connected"`
	Kernel         Kernel  `yaml:"kernel"`
	Rounds         int     `yaml:"rounds" validate:"gte=1"`
	GapClose       *Kernel `yaml:"gap_close"`
}

// Layer declares one reference raster. Kind "categorical" layers are
// normalized through Remap; "continuous" layers are decoded with NoData and
// Scale; "region" layers rasterize a named region with Value.
type Layer struct {
	Name   string  `yaml:"name" validate:"required"`
	Kind   string  `yaml:"kind" validate:"required,oneof=categorical continuous region"`
	File   string  `yaml:"file" validate:"required_unless=Kind region"`
	Remap  *Remap  `yaml:"remap"`
	NoData *int    `yaml:"no_data"`
	Scale  float64 `yaml:"scale" validate:"gte=0"`
	Region string  `yaml:"region" validate:"required_if=Kind region"`
	Value  float64 `yaml:"value"`
	// PerYear layers are read once per band year from "<file>_<year>.tif".
	PerYear bool `yaml:"per_year"`
}

// Condition tests one reference layer.
type Condition struct {
	Layer  string    `yaml:"layer" validate:"required"`
	Op     string    `yaml:"op" validate:"required,oneof=eq neq lt lte gt gte in not_in"`
	Value  float64   `yaml:"value"`
	Values []float64 `yaml:"values" validate:"required_if=Op in,required_if=Op not_in"`
}

// FusionRule is one priority-ordered override rule.
type FusionRule struct {
	Name      string      `yaml:"name" validate:"required"`
	BaseIn    []int       `yaml:"base_in" validate:"dive,gt=0,lte=255"`
	BaseNotIn []int       `yaml:"base_not_in" validate:"dive,gt=0,lte=255"`
	Where     []Condition `yaml:"where" validate:"required,min=1,dive"`
	Set       int         `yaml:"set" validate:"required,gt=0,lte=255"`
}

// MinArea configures the training-mask area filter.
type MinArea struct {
	MinPixels      int  `yaml:"min_pixels"`
	MaxSize        int  `yaml:"max_size" validate:"required,gt=0"`
	EightConnected bool `yaml:"eight_connected"`
}

// Fusion is a layer list plus its ordered rules.
type Fusion struct {
	Layers []Layer      `yaml:"layers" validate:"dive"`
	Rules  []FusionRule `yaml:"rules" validate:"required,min=1,dive"`
}

// TrainingMask configures the stable-pixel training mask.
type TrainingMask struct {
	Remap   *Remap   `yaml:"remap"`
	Fusion  `yaml:",inline"`
	MinArea *MinArea `yaml:"min_area"`
	Version int      `yaml:"version" validate:"gte=0"`
}

// Years returns the series length.
func (r *RuleSet) Years() int { return r.EndYear - r.StartYear + 1 }

// Version returns the lineage version of a stage and whether the stage is
// enabled.
func (r *RuleSet) Version(stage string) (int, bool) {
	v, ok := r.Versions[stage]
	return v, ok
}

// LineagePrefix returns the prefix of every asset name this rule set
// produces, e.g. "CERRADO_C10".
func (r *RuleSet) LineagePrefix() string { return r.Prefix + "_" + r.Collection }

var ruleSetValidate = validator.New()

// ParseRuleSet decodes and validates a YAML rule set. Unknown keys are
// rejected.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var rs RuleSet
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set YAML: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set %q: %w", rs.Name, err)
	}
	return &rs, nil
}

// LoadRuleSetFile reads a rule set from disk.
func LoadRuleSetFile(p string) (*RuleSet, error) {
	data, err := os.ReadFile(filepath.Clean(p))
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	return ParseRuleSet(data)
}

// LoadEmbeddedRuleSet loads one of the rule sets compiled into the binary.
func LoadEmbeddedRuleSet(name string) (*RuleSet, error) {
	data, err := embeddedRuleSets.ReadFile(path.Join("rulesets", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown ruleset %q: %w", name, err)
	}
	return ParseRuleSet(data)
}

// EmbeddedRuleSets lists the compiled-in rule set names.
func EmbeddedRuleSets() []string {
	entries, err := embeddedRuleSets.ReadDir("rulesets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// IsEmbeddedRuleSet reports whether name is compiled in.
func IsEmbeddedRuleSet(name string) bool {
	for _, n := range EmbeddedRuleSets() {
		if n == name {
			return true
		}
	}
	return false
}

// Validate runs the struct-tag checks and then the range checks that need
// more than one field. The first failing check is returned.
func (r *RuleSet) Validate() error {
	if err := ruleSetValidate.Struct(r); err != nil {
		return err
	}
	n := float64(r.Years())
	var checks []*ThresholdError
	size := func(field string, v, max int) {
		checks = append(checks, rangeCheck(field, float64(v), 0, float64(max)))
	}
	pct := func(field string, v float64) {
		checks = append(checks, rangeCheck(field, v, 0, 100))
	}
	years := func(field string, v int) {
		checks = append(checks, rangeCheck(field, float64(v), 0, n))
	}

	if w := r.Window; w != nil {
		for i, s := range w.Spans {
			checks = append(checks, rangeCheck(fmt.Sprintf("window.spans[%d]", i), float64(s), 3, n))
		}
	}
	if g := r.Regrowth; g != nil {
		size("regrowth.min_pixels", g.MinPixels, g.MaxSize)
		years("regrowth.tail_years", g.TailYears)
	}
	if inc := r.Incidence; inc != nil {
		size("incidence.border_max_pixels", inc.BorderMaxPixels, inc.MaxSize)
		years("incidence.border_min_changes", inc.BorderMinChanges)
		years("incidence.min_changes", inc.MinChanges)
	}
	if f := r.Frequency; f != nil {
		pct("frequency.group_percent", f.GroupPercent)
		for i, th := range f.Thresholds {
			pct(fmt.Sprintf("frequency.thresholds[%d].percent", i), th.Percent)
		}
	}
	for i, t := range r.Transitions {
		switch t.Kind {
		case "persistent_anthropic":
			years(fmt.Sprintf("transitions[%d].years", i), t.Years)
		case "early_alignment":
			checks = append(checks, rangeCheck(fmt.Sprintf("transitions[%d].anchor", i), float64(t.Anchor), 1, n-1))
		case "persistence":
			years(fmt.Sprintf("transitions[%d].min_years", i), t.MinYears)
		}
	}
	if s := r.Slope; s != nil {
		for i, rule := range s.Rules {
			pct(fmt.Sprintf("slope.rules[%d].min_percent", i), rule.MinPercent)
		}
	}
	if s := r.Spatial; s != nil {
		size("spatial.threshold", s.Threshold, s.MaxSize)
	}
	if tm := r.TrainingMask; tm != nil && tm.MinArea != nil {
		size("training_mask.min_area.min_pixels", tm.MinArea.MinPixels, tm.MinArea.MaxSize)
	}
	for _, c := range checks {
		if c != nil {
			return c
		}
	}
	return r.validateReferences()
}

func rangeCheck(field string, v, min, max float64) *ThresholdError {
	if v < min || v > max {
		return &ThresholdError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}

// validateReferences checks that names used by rules resolve.
func (r *RuleSet) validateReferences() error {
	for i, t := range r.Transitions {
		if t.Region == "" {
			continue
		}
		if _, ok := r.Regions[t.Region]; !ok {
			return fmt.Errorf("transitions[%d]: unknown region %q", i, t.Region)
		}
	}
	check := func(section string, f *Fusion, extra ...string) error {
		known := map[string]bool{}
		for _, l := range f.Layers {
			if known[l.Name] {
				return fmt.Errorf("%s: duplicate layer %q", section, l.Name)
			}
			known[l.Name] = true
			if l.Kind == "region" {
				if _, ok := r.Regions[l.Region]; !ok {
					return fmt.Errorf("%s: layer %q: unknown region %q", section, l.Name, l.Region)
				}
			}
		}
		for _, e := range extra {
			known[e] = true
		}
		for _, rule := range f.Rules {
			for _, c := range rule.Where {
				if !known[c.Layer] {
					return fmt.Errorf("%s: rule %q: unknown layer %q", section, rule.Name, c.Layer)
				}
			}
		}
		return nil
	}
	if r.Ancillary != nil {
		if err := check("ancillary", r.Ancillary); err != nil {
			return err
		}
	}
	if r.TrainingMask != nil {
		if err := check("training_mask", &r.TrainingMask.Fusion); err != nil {
			return err
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/l3temporal"
	"github.com/banshee-data/landcover.report/internal/landcover/l4spatial"
	"github.com/banshee-data/landcover.report/internal/landcover/l5fusion"
)

// LayerReader supplies reference rasters by name. *l2raster.BandStore
// satisfies it.
type LayerReader interface {
	ReadLabelLayer(name string) (*l2raster.Grid, error)
	ReadValueLayer(name string, noData int, scale float64) (*l2raster.ValueGrid, error)
}

var errNoSection = errors.New("stage is versioned but has no configuration section")

// stageOrder is the fixed execution order. A stage runs only when the rule
// set gives it a version.
var stageOrder = []string{
	config.StageGapFill,
	config.StageIncidence,
	config.StageAncillary,
	config.StageTemporal,
	config.StageRegrowth,
	config.StageFrequency,
	config.StageTransition,
	config.StageSlope,
	config.StageSpatial,
}

// outcome is what a stage reports besides its output stack.
type outcome struct {
	missing int
	fusion  []l5fusion.RuleStat
}

type stageFunc func(ctx context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error)

// plannedStage is one enabled stage with its lineage version.
type plannedStage struct {
	key     string
	version int
	run     stageFunc
}

// pixelStep is a temporal stage applied where mask is set. A nil mask
// covers the whole raster.
type pixelStep struct {
	stage l3temporal.Stage
	mask  *l2raster.Mask
}

func applySteps(steps []pixelStep, idx int, s l1labels.Series) l1labels.Series {
	for _, st := range steps {
		if st.mask.Get(idx) {
			s = st.stage.Apply(s)
		}
	}
	return s
}

// builder turns rule-set sections into stage functions for one raster
// extent.
type builder struct {
	rs      *config.RuleSet
	layers  LayerReader
	shape   l2raster.Shape
	geo     l2raster.GeoTransform
	years   []int
	workers int
	regions map[string]*l2raster.Mask
	// missing marks pixels with no observation in any year; spatial
	// filters leave them alone.
	missing *l2raster.Mask
}

func newBuilder(rs *config.RuleSet, layers LayerReader, in *l2raster.Stack, workers int) *builder {
	return &builder{
		rs:      rs,
		layers:  layers,
		shape:   in.Shape,
		geo:     in.Geo,
		years:   in.Years(),
		workers: workers,
		regions: map[string]*l2raster.Mask{},
	}
}

// plan builds every enabled stage. All layers and regions are loaded here,
// so configuration and input problems surface before any pixel is touched.
func (b *builder) plan() ([]plannedStage, error) {
	var stages []plannedStage
	for _, key := range stageOrder {
		version, ok := b.rs.Version(key)
		if !ok {
			continue
		}
		fn, err := b.stage(key)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", key, err)
		}
		stages = append(stages, plannedStage{key: key, version: version, run: fn})
	}
	return stages, nil
}

func (b *builder) stage(key string) (stageFunc, error) {
	switch key {
	case config.StageGapFill:
		return b.temporal([]pixelStep{{stage: l3temporal.GapFiller{}}}), nil
	case config.StageIncidence:
		return b.incidence()
	case config.StageAncillary:
		return b.ancillary()
	case config.StageTemporal:
		return b.windowChain()
	case config.StageRegrowth:
		return b.regrowth()
	case config.StageFrequency:
		return b.frequency()
	case config.StageTransition:
		return b.transitions()
	case config.StageSlope:
		return b.slope()
	case config.StageSpatial:
		return b.spatial()
	}
	return nil, fmt.Errorf("unknown stage")
}

func (b *builder) temporal(steps []pixelStep) stageFunc {
	return func(ctx context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, missing, err := mapPixels(ctx, in, b.workers, func(idx int, s l1labels.Series) l1labels.Series {
			return applySteps(steps, idx, s)
		})
		return out, outcome{missing: missing}, err
	}
}

func (b *builder) incidence() (stageFunc, error) {
	cfg := b.rs.Incidence
	if cfg == nil {
		return nil, errNoSection
	}
	agg, err := remapTable(&cfg.Aggregate)
	if err != nil {
		return nil, err
	}
	f := l4spatial.IncidenceFilter{
		Aggregate:        agg,
		Exclude:          classSet(cfg.Exclude),
		MaxSize:          cfg.MaxSize,
		Connectivity:     l4spatial.ParseConnectivity(cfg.EightConnected),
		BorderMaxPixels:  cfg.BorderMaxPixels,
		BorderMinChanges: cfg.BorderMinChanges,
		MinChanges:       cfg.MinChanges,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return func(_ context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, flattened := f.Apply(in)
		diagf("incidence: flattened %d pixels", flattened)
		return out, outcome{}, nil
	}, nil
}

func (b *builder) ancillary() (stageFunc, error) {
	cfg := b.rs.Ancillary
	if cfg == nil {
		return nil, errNoSection
	}
	layers, err := b.layerSet(cfg.Layers)
	if err != nil {
		return nil, err
	}
	rules, err := fusionRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, stats, err := l5fusion.ReclassifyYears(in, rules, layers)
		if err != nil {
			return nil, outcome{}, err
		}
		return out, outcome{fusion: stats}, nil
	}, nil
}

func (b *builder) windowChain() (stageFunc, error) {
	var steps []pixelStep
	if r := b.rs.Remap; r != nil {
		t, err := remapTable(r)
		if err != nil {
			return nil, err
		}
		steps = append(steps, pixelStep{stage: l3temporal.Remap("remap", t)})
	}
	if w := b.rs.Window; w != nil {
		engine, err := l3temporal.NewWindowEngine(labels(w.Classes), w.Spans)
		if err != nil {
			return nil, err
		}
		steps = append(steps, pixelStep{stage: engine})
	}
	if bd := b.rs.Boundary; bd != nil {
		steps = append(steps, pixelStep{stage: l3temporal.NewBoundaryCorrector(
			labels(bd.LastAnchor), labels(bd.LastFalseAppearance), labels(bd.FirstAnchor))})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("needs at least one of remap, window or boundary")
	}
	return b.temporal(steps), nil
}

func (b *builder) regrowth() (stageFunc, error) {
	cfg := b.rs.Regrowth
	if cfg == nil {
		return nil, errNoSection
	}
	r := l4spatial.RegrowthExclusion{
		Native:       classSet(cfg.Native),
		Anthropic:    classSet(cfg.Anthropic),
		TailYears:    cfg.TailYears,
		MinPixels:    cfg.MinPixels,
		MaxSize:      cfg.MaxSize,
		Connectivity: l4spatial.ParseConnectivity(cfg.EightConnected),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return func(_ context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, reverted := r.Apply(in)
		diagf("regrowth: reverted %d pixel-years", reverted)
		return out, outcome{}, nil
	}, nil
}

func (b *builder) frequency() (stageFunc, error) {
	cfg := b.rs.Frequency
	if cfg == nil {
		return nil, errNoSection
	}
	groupOp, err := l3temporal.ParseComparison(cfg.GroupOp)
	if err != nil {
		return nil, err
	}
	f := &l3temporal.FrequencyStabilizer{
		Group:        classSet(cfg.Group),
		GroupPercent: cfg.GroupPercent,
		GroupOp:      groupOp,
		Otherwise:    l1labels.Label(cfg.Otherwise),
	}
	for _, th := range cfg.Thresholds {
		op, err := l3temporal.ParseComparison(th.Op)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", th.Class, err)
		}
		f.Thresholds = append(f.Thresholds, l3temporal.ClassThreshold{
			Class: l1labels.Label(th.Class), Percent: th.Percent, Op: op,
		})
	}
	return b.temporal([]pixelStep{{stage: f}}), nil
}

func (b *builder) transitions() (stageFunc, error) {
	if len(b.rs.Transitions) == 0 {
		return nil, errNoSection
	}
	steps := make([]pixelStep, 0, len(b.rs.Transitions))
	for i, t := range b.rs.Transitions {
		st, err := transitionStage(t)
		if err != nil {
			return nil, fmt.Errorf("transitions[%d]: %w", i, err)
		}
		step := pixelStep{stage: st}
		if t.Region != "" {
			if step.mask, err = b.region(t.Region); err != nil {
				return nil, fmt.Errorf("transitions[%d]: %w", i, err)
			}
			diagf("transition %s gated to region %s (%d pixels)", st.Name(), t.Region, step.mask.Count())
		}
		steps = append(steps, step)
	}
	return b.temporal(steps), nil
}

func transitionStage(t config.Transition) (l3temporal.Stage, error) {
	class := l1labels.Label(t.Class)
	switch t.Kind {
	case "persistent_anthropic":
		return l3temporal.PersistentAnthropic{Class: class, Anthropic: l1labels.Label(t.Anthropic), Years: t.Years}, nil
	case "early_alignment":
		return l3temporal.EarlyAlignment{Class: class, Anchor: t.Anchor}, nil
	case "no_abrupt_appearance":
		return l3temporal.NoAbruptAppearance{Class: class, After: l1labels.Label(t.After), LastOnly: t.LastOnly}, nil
	case "persistence":
		return l3temporal.Persistence{Class: class, MinYears: t.MinYears, Exceptions: classSet(t.Exceptions)}, nil
	case "interruption":
		return l3temporal.Interruption{
			Outer: l1labels.Label(t.Outer), Inner: l1labels.Label(t.Inner), Replace: l1labels.Label(t.Replace),
		}, nil
	case "endpoint_forcing":
		return l3temporal.EndpointForcing{First: l1labels.Label(t.First), Last: l1labels.Label(t.Last), Class: class}, nil
	}
	return nil, fmt.Errorf("unknown transition kind %q", t.Kind)
}

func (b *builder) slope() (stageFunc, error) {
	cfg := b.rs.Slope
	if cfg == nil {
		return nil, errNoSection
	}
	kernel, err := l4spatial.NewKernel(l4spatial.KernelShape(cfg.Kernel.Shape), cfg.Kernel.Radius)
	if err != nil {
		return nil, err
	}
	noData := -1
	if cfg.NoData != nil {
		noData = *cfg.NoData
	}
	slope, err := b.layers.ReadValueLayer(cfg.Layer, noData, scaleOrOne(cfg.Scale))
	if err != nil {
		return nil, err
	}
	if err := b.shape.Check(slope.Shape); err != nil {
		return nil, fmt.Errorf("layer %s: %w", cfg.Layer, err)
	}
	f := l4spatial.SlopeFilter{Kernel: kernel}
	for _, r := range cfg.Rules {
		f.Rules = append(f.Rules, l4spatial.SlopeRule{
			Class: l1labels.Label(r.Class), MinPercent: r.MinPercent, Replace: l1labels.Label(r.Replace),
		})
	}
	return func(ctx context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, err := mapBands(ctx, in, b.workers, func(year int, g *l2raster.Grid) (*l2raster.Grid, error) {
			filtered, changed, err := f.Apply(g, slope)
			if err != nil {
				return nil, err
			}
			tracef("slope %d: %d pixels", year, changed)
			return filtered, nil
		})
		return out, outcome{}, err
	}, nil
}

func (b *builder) spatial() (stageFunc, error) {
	cfg := b.rs.Spatial
	if cfg == nil {
		return nil, errNoSection
	}
	kernel, err := l4spatial.NewKernel(l4spatial.KernelShape(cfg.Kernel.Shape), cfg.Kernel.Radius)
	if err != nil {
		return nil, err
	}
	mmu := l4spatial.MMUFilter{
		Threshold:    cfg.Threshold,
		MaxSize:      cfg.MaxSize,
		Connectivity: l4spatial.ParseConnectivity(cfg.EightConnected),
		Kernel:       kernel,
		Skip:         b.missing,
	}
	if err := mmu.Validate(); err != nil {
		return nil, err
	}
	var closer *l4spatial.GapCloser
	if gc := cfg.GapClose; gc != nil {
		k, err := l4spatial.NewKernel(l4spatial.KernelShape(gc.Shape), gc.Radius)
		if err != nil {
			return nil, fmt.Errorf("gap_close: %w", err)
		}
		closer = &l4spatial.GapCloser{Kernel: k, Skip: b.missing}
	}
	rounds := cfg.Rounds
	return func(ctx context.Context, in *l2raster.Stack) (*l2raster.Stack, outcome, error) {
		out, err := mapBands(ctx, in, b.workers, func(year int, g *l2raster.Grid) (*l2raster.Grid, error) {
			filtered, changed := mmu.Rounds(g, rounds)
			filled := 0
			if closer != nil {
				filtered, filled = closer.Apply(filtered)
			}
			tracef("spatial %d: %d pixels over %d rounds, %d gaps closed", year, changed, rounds, filled)
			return filtered, nil
		})
		return out, outcome{}, err
	}, nil
}

// region rasterizes a named rule-set region once per run.
func (b *builder) region(name string) (*l2raster.Mask, error) {
	if m, ok := b.regions[name]; ok {
		return m, nil
	}
	ring, ok := b.rs.Regions[name]
	if !ok {
		return nil, fmt.Errorf("unknown region %q", name)
	}
	coords := make([][2]float64, len(ring))
	for i, p := range ring {
		coords[i] = [2]float64{p[0], p[1]}
	}
	poly := l2raster.PolygonFromRing(coords)
	m, err := l2raster.RasterizeRegion(orb.MultiPolygon{poly}, b.geo, b.shape)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", name, err)
	}
	b.regions[name] = m
	return m, nil
}

// layerSet loads every declared reference layer. Per-year layers are read
// once for each band year and registered as "<name>_<year>".
func (b *builder) layerSet(decls []config.Layer) (*l5fusion.LayerSet, error) {
	ls := l5fusion.NewLayerSet(b.shape)
	for _, decl := range decls {
		if decl.Kind == "region" {
			m, err := b.region(decl.Region)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", decl.Name, err)
			}
			if err := ls.Add(decl.Name, l5fusion.RegionLayer(m, decl.Value)); err != nil {
				return nil, err
			}
			continue
		}
		if !decl.PerYear {
			v, err := b.readLayer(decl, decl.File)
			if err != nil {
				return nil, err
			}
			if err := ls.Add(decl.Name, v); err != nil {
				return nil, err
			}
			continue
		}
		for _, year := range b.years {
			v, err := b.readLayer(decl, fmt.Sprintf("%s_%d", decl.File, year))
			if err != nil {
				return nil, err
			}
			if err := ls.Add(fmt.Sprintf("%s_%d", decl.Name, year), v); err != nil {
				return nil, err
			}
		}
	}
	diagf("loaded %d reference layers", len(ls.Names()))
	return ls, nil
}

func (b *builder) readLayer(decl config.Layer, file string) (*l2raster.ValueGrid, error) {
	if b.layers == nil {
		return nil, fmt.Errorf("layer %s: no layer directory configured", decl.Name)
	}
	switch decl.Kind {
	case "categorical":
		g, err := b.layers.ReadLabelLayer(file)
		if err != nil {
			return nil, err
		}
		var table *l1labels.RemapTable
		if decl.Remap != nil {
			if table, err = remapTable(decl.Remap); err != nil {
				return nil, fmt.Errorf("layer %s: %w", decl.Name, err)
			}
		}
		return l5fusion.CategoricalLayer(g, table), nil
	case "continuous":
		noData := -1
		if decl.NoData != nil {
			noData = *decl.NoData
		}
		return b.layers.ReadValueLayer(file, noData, scaleOrOne(decl.Scale))
	}
	return nil, fmt.Errorf("layer %s: unsupported kind %q", decl.Name, decl.Kind)
}

func fusionRules(cfg []config.FusionRule) ([]l5fusion.Rule, error) {
	rules := make([]l5fusion.Rule, 0, len(cfg))
	for _, fr := range cfg {
		rb := l5fusion.NewRule(fr.Name).BaseIn(labels(fr.BaseIn)...).BaseNotIn(labels(fr.BaseNotIn)...)
		for _, c := range fr.Where {
			op, err := l5fusion.ParseOp(c.Op)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", fr.Name, err)
			}
			switch op {
			case l5fusion.OpIn:
				rb.WhereIn(c.Layer, c.Values...)
			case l5fusion.OpNotIn:
				rb.WhereNotIn(c.Layer, c.Values...)
			default:
				rb.Where(c.Layer, op, c.Value)
			}
		}
		r := rb.Set(l1labels.Label(fr.Set))
		if err := r.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func remapTable(r *config.Remap) (*l1labels.RemapTable, error) {
	t, err := l1labels.NewRemapTable(r.From, r.To)
	if err != nil {
		return nil, err
	}
	if r.Default != nil {
		t = t.WithDefault(l1labels.Label(*r.Default))
	}
	return t, nil
}

func labels(codes []int) []l1labels.Label {
	out := make([]l1labels.Label, len(codes))
	for i, c := range codes {
		out[i] = l1labels.Label(c)
	}
	return out
}

func classSet(codes []int) l1labels.ClassSet {
	return l1labels.NewClassSet(labels(codes)...)
}

// scaleOrOne treats an unset scale as identity.
func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

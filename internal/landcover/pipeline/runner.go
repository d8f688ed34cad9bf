package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/lineage"
	"github.com/banshee-data/landcover.report/internal/landcover/storage/sqlite"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

// ErrIncompleteOutput marks a stage whose output does not cover its input:
// a missing band, a different shape or a truncated pixel series. The run is
// aborted and nothing downstream is committed.
var ErrIncompleteOutput = errors.New("incomplete stage output")

// Checkpointer persists intermediate stacks by lineage name.
// *sqlite.CheckpointStore satisfies it.
type Checkpointer interface {
	Has(name string) (bool, error)
	Load(name string) (*l2raster.Stack, error)
	Save(a *sqlite.Asset, s *l2raster.Stack) error
}

// Registry records finished assets. *sqlite.AssetStore satisfies it.
type Registry interface {
	Insert(a *sqlite.Asset) error
}

// Options configures a Runner. Only RuleSet is required.
type Options struct {
	RuleSet *config.RuleSet
	// Layers supplies reference rasters for the ancillary, slope and
	// training-mask stages.
	Layers LayerReader
	// Region clips input and output to a study area.
	Region  orb.MultiPolygon
	Workers int

	// Checkpoints, when set, receives the stack after every stage. With
	// Resume the run restarts after the deepest stored stage.
	Checkpoints Checkpointer
	Resume      bool
	Registry    Registry

	Metrics  *monitoring.Metrics
	Clock    timeutil.Clock
	Producer string
}

// Runner executes the post-classification chain of one rule set.
type Runner struct {
	opts Options
}

// Result is a finished run.
type Result struct {
	Stack  *l2raster.Stack
	Name   lineage.Name
	Report *Report
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.RuleSet == nil {
		return nil, errors.New("pipeline: rule set is required")
	}
	if err := opts.RuleSet.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Resume && opts.Checkpoints == nil {
		return nil, errors.New("pipeline: resume requires a checkpoint store")
	}
	return &Runner{opts: opts}, nil
}

// Plan returns the lineage name after each enabled stage, in order.
func (r *Runner) Plan() ([]lineage.Name, error) {
	rs := r.opts.RuleSet
	name := lineage.Name{Prefix: rs.LineagePrefix()}
	var names []lineage.Name
	for _, key := range stageOrder {
		v, ok := rs.Version(key)
		if !ok {
			continue
		}
		next, err := name.Append(key, v)
		if err != nil {
			return nil, err
		}
		names = append(names, next)
		name = next
	}
	return names, nil
}

func (r *Runner) regionMask(in *l2raster.Stack) (*l2raster.Mask, error) {
	if len(r.opts.Region) == 0 {
		return nil, nil
	}
	return l2raster.RasterizeRegion(r.opts.Region, in.Geo, in.Shape)
}

func (r *Runner) checkInput(in *l2raster.Stack) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	rs := r.opts.RuleSet
	if in.StartYear != rs.StartYear || in.EndYear() != rs.EndYear {
		return fmt.Errorf("input covers %d-%d but rule set %s expects %d-%d",
			in.StartYear, in.EndYear(), rs.Name, rs.StartYear, rs.EndYear)
	}
	return nil
}

// Run executes every enabled stage over in and returns the final stack. in
// is not modified.
func (r *Runner) Run(ctx context.Context, in *l2raster.Stack) (*Result, error) {
	rs := r.opts.RuleSet
	if err := r.checkInput(in); err != nil {
		return nil, err
	}
	report := &Report{
		RuleSet:  rs.Name,
		Producer: r.opts.Producer,
		Width:    in.Width,
		Height:   in.Height,
		Years:    in.Years(),
	}

	work := in.Clone()
	mask, err := r.regionMask(in)
	if err != nil {
		return nil, err
	}
	if report.Clipped, err = work.Clip(mask); err != nil {
		return nil, err
	}
	if mask != nil {
		diagf("region clip: %d of %d pixels outside", report.Clipped, in.Pixels())
	}

	// Pixels without any observation stay NoData through every stage.
	missing := work.MissingMask()
	b := newBuilder(rs, r.opts.Layers, in, r.opts.Workers)
	b.missing = missing
	stages, err := b.plan()
	if err != nil {
		return nil, err
	}
	names, err := r.Plan()
	if err != nil {
		return nil, err
	}

	start := 0
	if r.opts.Resume {
		if start, work, err = r.resume(names, work); err != nil {
			return nil, err
		}
		for i := 0; i < start; i++ {
			report.Stages = append(report.Stages, StageReport{
				Stage: stages[i].key, Version: stages[i].version, Asset: names[i].String(), Resumed: true,
			})
		}
	}

	for i := start; i < len(stages); i++ {
		st := stages[i]
		t0 := r.opts.Clock.Now()
		out, oc, err := st.run(ctx, work)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.key, err)
		}
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("stage %s: %w: %v", st.key, ErrIncompleteOutput, err)
		}
		reset, err := out.Blank(missing)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w: %v", st.key, ErrIncompleteOutput, err)
		}
		if reset > 0 {
			opsf("stage %s labelled %d pixel-years without observations; reset to NoData", st.key, reset)
		}
		perYear, err := diffStacks(work, out)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.key, err)
		}
		d := r.opts.Clock.Since(t0)

		sr := StageReport{
			Stage:      st.key,
			Version:    st.version,
			Asset:      names[i].String(),
			DurationMs: d.Milliseconds(),
			Missing:    oc.missing,
			Rules:      oc.fusion,
		}
		sr.summarise(perYear, in.Pixels())
		report.Stages = append(report.Stages, sr)
		if oc.missing > report.Missing {
			report.Missing = oc.missing
		}

		r.opts.Metrics.ObserveStage(st.key, sr.Changed, d)
		for _, rule := range oc.fusion {
			r.opts.Metrics.AddFusionRule(rule.Name, rule.Fired)
		}
		diagf("%s: %d pixel-years changed in %s", sr.Asset, sr.Changed, d)

		if r.opts.Checkpoints != nil {
			if err := r.checkpoint(sr, out); err != nil {
				return nil, err
			}
		}
		work = out
	}

	if _, err := work.Clip(mask); err != nil {
		return nil, err
	}
	r.opts.Metrics.SetMissingObservations(report.Missing)
	if report.Missing > 0 {
		opsf("%d pixels have no valid observation in any year", report.Missing)
	}

	final := names[len(names)-1]
	report.Asset = final.String()
	return &Result{Stack: work, Name: final, Report: report}, nil
}

// resume finds the deepest stored checkpoint of the planned chain and
// returns the index of the first stage still to run.
func (r *Runner) resume(names []lineage.Name, work *l2raster.Stack) (int, *l2raster.Stack, error) {
	for i := len(names) - 1; i >= 0; i-- {
		n := names[i].String()
		ok, err := r.opts.Checkpoints.Has(n)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			continue
		}
		s, err := r.opts.Checkpoints.Load(n)
		if err != nil {
			return 0, nil, err
		}
		if err := work.SameLayout(s); err != nil {
			return 0, nil, fmt.Errorf("checkpoint %s: %w", n, err)
		}
		s.Geo = work.Geo
		diagf("resuming after %s", n)
		return i + 1, s, nil
	}
	diagf("no checkpoint found; starting from the input")
	return 0, work, nil
}

func (r *Runner) checkpoint(sr StageReport, s *l2raster.Stack) error {
	data, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("marshal stage report: %w", err)
	}
	a := &sqlite.Asset{
		Name:          sr.Asset,
		RuleSet:       r.opts.RuleSet.Name,
		Producer:      r.opts.Producer,
		ChangedPixels: int64(sr.Changed),
		ReportJSON:    data,
	}
	if err := r.opts.Checkpoints.Save(a, s); err != nil {
		return fmt.Errorf("checkpoint %s: %w", sr.Asset, err)
	}
	tracef("checkpoint %s stored", sr.Asset)
	return nil
}

// Register records a finished run in the registry. path is where the
// caller wrote the output stack.
func (r *Runner) Register(res *Result, path string) (*sqlite.Asset, error) {
	if r.opts.Registry == nil {
		return nil, errors.New("pipeline: no registry configured")
	}
	data, err := json.Marshal(res.Report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	a := &sqlite.Asset{
		Name:          res.Name.String(),
		RuleSet:       r.opts.RuleSet.Name,
		StartYear:     res.Stack.StartYear,
		EndYear:       res.Stack.EndYear(),
		Width:         res.Stack.Width,
		Height:        res.Stack.Height,
		Producer:      r.opts.Producer,
		Path:          path,
		ChangedPixels: int64(res.Report.Changed()),
		ReportJSON:    data,
	}
	if err := r.opts.Registry.Insert(a); err != nil {
		return nil, err
	}
	return a, nil
}

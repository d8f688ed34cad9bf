package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/l4spatial"
	"github.com/banshee-data/landcover.report/internal/landcover/l5fusion"
	"github.com/banshee-data/landcover.report/internal/landcover/lineage"
)

// StageTrainingMask is the lineage stage of training-mask assets.
const StageTrainingMask = "trainingmask"

// MaskResult is a finished training mask.
type MaskResult struct {
	Mask    *l2raster.Grid
	Name    lineage.Name
	Stable  int
	Removed int
	Rules   []l5fusion.RuleStat
}

// TrainingMask remaps the reference stack, keeps the stable pixels, folds
// the ordered fusion rules over them and drops patches below the minimum
// area.
func (r *Runner) TrainingMask(ctx context.Context, in *l2raster.Stack) (*MaskResult, error) {
	rs := r.opts.RuleSet
	tm := rs.TrainingMask
	if tm == nil {
		return nil, errors.New("training mask: rule set has no training_mask section")
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("training mask input: %w", err)
	}
	name, err := lineage.Name{Prefix: rs.LineagePrefix()}.Append(StageTrainingMask, tm.Version)
	if err != nil {
		return nil, err
	}

	b := newBuilder(rs, r.opts.Layers, in, r.opts.Workers)
	layers, err := b.layerSet(tm.Layers)
	if err != nil {
		return nil, fmt.Errorf("training mask: %w", err)
	}
	rules, err := fusionRules(tm.Rules)
	if err != nil {
		return nil, fmt.Errorf("training mask: %w", err)
	}
	var minArea *l5fusion.MinArea
	if cfg := tm.MinArea; cfg != nil {
		minArea = &l5fusion.MinArea{
			MinPixels:    cfg.MinPixels,
			MaxSize:      cfg.MaxSize,
			Connectivity: l4spatial.ParseConnectivity(cfg.EightConnected),
		}
		if err := minArea.Validate(); err != nil {
			return nil, err
		}
	}

	base := in
	if tm.Remap != nil {
		table, err := remapTable(tm.Remap)
		if err != nil {
			return nil, fmt.Errorf("training mask remap: %w", err)
		}
		base, err = mapBands(ctx, in, r.opts.Workers, func(_ int, g *l2raster.Grid) (*l2raster.Grid, error) {
			return remapStrict(g, table), nil
		})
		if err != nil {
			return nil, err
		}
	}

	stable := l5fusion.StablePixels(base)
	res := &MaskResult{Name: name}
	for _, l := range stable.Cells {
		if l.Valid() {
			res.Stable++
		}
	}
	diagf("training mask: %d of %d pixels stable", res.Stable, stable.Pixels())

	fused, stats, err := l5fusion.Fuse(stable, rules, layers, 0)
	if err != nil {
		return nil, fmt.Errorf("training mask: %w", err)
	}
	res.Rules = stats
	for _, st := range stats {
		r.opts.Metrics.AddFusionRule(st.Name, st.Fired)
		if st.Overwritten > 0 {
			tracef("rule %s overrode %d earlier assignments", st.Name, st.Overwritten)
		}
	}
	if minArea != nil {
		fused, res.Removed = minArea.Apply(fused)
	}

	mask, err := r.regionMask(in)
	if err != nil {
		return nil, err
	}
	if mask != nil {
		for idx := range fused.Cells {
			if !mask.Get(idx) {
				fused.Cells[idx] = l1labels.NoData
			}
		}
	}
	res.Mask = fused
	return res, nil
}

// remapStrict maps every cell through t; codes the table does not cover
// become NoData.
func remapStrict(g *l2raster.Grid, t *l1labels.RemapTable) *l2raster.Grid {
	out := l2raster.NewGrid(g.Width, g.Height)
	for i, l := range g.Cells {
		if m, ok := t.Lookup(l); ok {
			out.Cells[i] = m
		}
	}
	return out
}

package l4spatial

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// SlopeRule reclassifies Class where terrain slope (percent) is at least
// MinPercent. Replace NoData means "neighbourhood mode".
type SlopeRule struct {
	Class      l1labels.Label
	MinPercent float64
	Replace    l1labels.Label
}

// SlopeFilter removes classes that are implausible on steep terrain, such
// as wetlands on hillsides.
type SlopeFilter struct {
	Rules  []SlopeRule
	Kernel Kernel
}

// Apply runs the rules in order over one band. Each rule reads the output
// of the previous one. Pixels outside the slope footprint are untouched.
func (f SlopeFilter) Apply(g *l2raster.Grid, slope *l2raster.ValueGrid) (*l2raster.Grid, int, error) {
	if err := g.Shape.Check(slope.Shape); err != nil {
		return nil, 0, fmt.Errorf("slope filter: %w", err)
	}
	cur := g
	changed := 0
	for _, r := range f.Rules {
		next := cur.Clone()
		for idx, l := range cur.Cells {
			if l != r.Class {
				continue
			}
			v, ok := slope.Get(idx)
			if !ok || v < r.MinPercent {
				continue
			}
			repl := r.Replace
			if !repl.Valid() {
				row, col := cur.RowCol(idx)
				m, ok := f.Kernel.Mode(cur, row, col)
				if !ok {
					continue
				}
				repl = m
			}
			if repl != l {
				next.Cells[idx] = repl
				changed++
			}
		}
		cur = next
	}
	if cur == g {
		cur = g.Clone()
	}
	return cur, changed, nil
}

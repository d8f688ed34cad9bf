package l5fusion

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/l4spatial"
)

// RuleStat reports what one rule did during a fold.
//
// Fired counts the pixels whose label the rule changed. Overwritten counts
// the subset that an earlier rule of the same fold had already changed,
// i.e. pixels where two rules disagreed and order decided.
type RuleStat struct {
	Name        string `json:"name"`
	Fired       int    `json:"fired"`
	Overwritten int    `json:"overwritten"`
}

// Fuse applies rules in order to a copy of base. year selects per-year
// layers (see LayerSet.Lookup); pass 0 for static layers. A rule naming an
// unknown layer is an error, since silently skipping it would change the
// mask without notice.
func Fuse(base *l2raster.Grid, rules []Rule, layers *LayerSet, year int) (*l2raster.Grid, []RuleStat, error) {
	if err := base.Shape.Check(layers.shape); err != nil {
		return nil, nil, fmt.Errorf("fuse: %w", err)
	}
	out := base.Clone()
	writer := make([]int, len(out.Cells))
	for i := range writer {
		writer[i] = -1
	}
	stats := make([]RuleStat, len(rules))

	for ri := range rules {
		r := &rules[ri]
		srcs := make([]*l2raster.ValueGrid, len(r.Sources))
		for ci, c := range r.Sources {
			v, ok := layers.Lookup(c.Layer, year)
			if !ok {
				return nil, nil, fmt.Errorf("fuse: rule %q: unknown layer %q", r.Name, c.Layer)
			}
			srcs[ci] = v
		}
		stats[ri].Name = r.Name
		for idx, l := range out.Cells {
			if l == r.Set || !r.baseMatches(l) || !sourcesHold(r.Sources, srcs, idx) {
				continue
			}
			out.Cells[idx] = r.Set
			stats[ri].Fired++
			if writer[idx] >= 0 {
				stats[ri].Overwritten++
			}
			writer[idx] = ri
		}
	}
	return out, stats, nil
}

func sourcesHold(conds []SourceCondition, srcs []*l2raster.ValueGrid, idx int) bool {
	for i, c := range conds {
		v, ok := srcs[i].Get(idx)
		if !ok || !c.holds(v) {
			return false
		}
	}
	return true
}

// ReclassifyYears runs the rules over every band of a stack, resolving
// per-year layers by band year. Stats are summed across years.
func ReclassifyYears(s *l2raster.Stack, rules []Rule, layers *LayerSet) (*l2raster.Stack, []RuleStat, error) {
	out := l2raster.NewStackLike(s)
	total := make([]RuleStat, len(rules))
	for i, band := range s.Bands {
		fused, stats, err := Fuse(band, rules, layers, s.StartYear+i)
		if err != nil {
			return nil, nil, fmt.Errorf("year %d: %w", s.StartYear+i, err)
		}
		out.Bands[i] = fused
		for ri, st := range stats {
			total[ri].Name = st.Name
			total[ri].Fired += st.Fired
			total[ri].Overwritten += st.Overwritten
		}
	}
	return out, total, nil
}

// MinArea masks out fused patches that are too small to trust as training
// labels: same-label components with fewer than MinPixels pixels become
// NoData. Component sizes are capped at MaxSize.
type MinArea struct {
	MinPixels    int
	MaxSize      int
	Connectivity l4spatial.Connectivity
}

// Validate checks MinPixels against the enumeration cap.
func (m MinArea) Validate() error {
	return l4spatial.CheckBounds("min_area", m.MinPixels, m.MaxSize)
}

// Apply returns the filtered copy and the number of pixels removed.
func (m MinArea) Apply(g *l2raster.Grid) (*l2raster.Grid, int) {
	sizes := l4spatial.ComponentSizes(g, m.Connectivity, m.MaxSize)
	out := g.Clone()
	removed := 0
	for idx, size := range sizes {
		if g.Cells[idx].Valid() && size < m.MinPixels {
			out.Cells[idx] = l1labels.NoData
			removed++
		}
	}
	return out, removed
}

package l4spatial

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	l2 "github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// IncidenceFilter flattens pixels whose aggregated class flips too often.
// Changes are counted on the aggregated series (runs minus one) with the
// excluded classes, and classes Aggregate has no entry for, treated as gaps. Pixels are grouped into components of
// equal change count. A pixel is flattened to its series mode when it sits
// in a component of at most BorderMaxPixels with more than BorderMinChanges
// changes (fringe noise), or in a larger component with at least MinChanges
// changes.
type IncidenceFilter struct {
	Aggregate        *l1labels.RemapTable
	Exclude          l1labels.ClassSet
	MaxSize          int
	Connectivity     Connectivity
	BorderMaxPixels  int
	BorderMinChanges int
	MinChanges       int
}

// Validate checks the component threshold.
func (f IncidenceFilter) Validate() error {
	if f.BorderMinChanges < 0 || f.MinChanges < 0 {
		return fmt.Errorf("incidence: change thresholds must be non-negative")
	}
	return CheckBounds("incidence", f.BorderMaxPixels, f.MaxSize)
}

func (f IncidenceFilter) prepare(s l1labels.Series) l1labels.Series {
	out := make(l1labels.Series, len(s))
	for i, l := range s {
		if f.Exclude.Has(l) {
			continue
		}
		out[i] = l
	}
	return out
}

// aggregate maps s through Aggregate; unmapped classes become NoData.
func (f IncidenceFilter) aggregate(s l1labels.Series) l1labels.Series {
	out := make(l1labels.Series, len(s))
	for i, l := range s {
		if l.Valid() {
			out[i], _ = f.Aggregate.Lookup(l)
		}
	}
	return out
}

// Changes returns the per-pixel change count grid.
func (f IncidenceFilter) Changes(s *l2.Stack) []int {
	counts := make([]int, s.Pixels())
	var buf l1labels.Series
	for idx := range counts {
		buf = s.Series(idx, buf)
		counts[idx] = f.aggregate(f.prepare(buf)).Changes()
	}
	return counts
}

// Apply returns the filtered stack and the number of flattened pixels.
func (f IncidenceFilter) Apply(s *l2.Stack) (*l2.Stack, int) {
	changes := f.Changes(s)
	sizes := ComponentSizes(labelGridFromCounts(s.Shape, changes), f.Connectivity, f.MaxSize)
	out := s.Clone()
	flattened := 0
	var buf l1labels.Series
	for idx, c := range changes {
		border := sizes[idx] <= f.BorderMaxPixels && c > f.BorderMinChanges
		interior := sizes[idx] > f.BorderMaxPixels && c >= f.MinChanges
		if !border && !interior {
			continue
		}
		buf = s.Series(idx, buf)
		mode, ok := f.prepare(buf).Mode()
		if !ok {
			continue
		}
		series := buf.Clone()
		for t, l := range series {
			if l.Valid() {
				series[t] = mode
			}
		}
		out.SetSeries(idx, series)
		flattened++
	}
	return out, flattened
}

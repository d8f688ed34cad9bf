package l3temporal

import "github.com/banshee-data/landcover.report/internal/landcover/l1labels"

// GapFill replaces NoData years with the nearest earlier valid label and,
// for leading gaps, with the nearest later one. A series with no valid
// label is returned unchanged.
func GapFill(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	last := l1labels.NoData
	for i, l := range out {
		if l.Valid() {
			last = l
		} else if last.Valid() {
			out[i] = last
		}
	}
	if !last.Valid() {
		return out
	}
	last = l1labels.NoData
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Valid() {
			last = out[i]
		} else {
			out[i] = last
		}
	}
	return out
}

// GapFiller is GapFill as a Stage.
type GapFiller struct{}

// Name implements Stage.
func (GapFiller) Name() string { return "gapfill" }

// Apply implements Stage.
func (GapFiller) Apply(s l1labels.Series) l1labels.Series { return GapFill(s) }

package l3temporal

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// Comparison selects inclusive or strict threshold tests.
type Comparison int

const (
	// AtLeast passes when percent >= threshold.
	AtLeast Comparison = iota
	// MoreThan passes when percent > threshold.
	MoreThan
)

// ParseComparison accepts "gte" or "gt".
func ParseComparison(op string) (Comparison, error) {
	switch op {
	case "gte", ">=":
		return AtLeast, nil
	case "gt", ">":
		return MoreThan, nil
	default:
		return AtLeast, fmt.Errorf("unknown comparison %q", op)
	}
}

func (c Comparison) String() string {
	if c == MoreThan {
		return ">"
	}
	return ">="
}

// passes compares 100*count/total against percent without floating point
// rounding at the boundary.
func (c Comparison) passes(count, total int, percent float64) bool {
	if total == 0 {
		return false
	}
	lhs := 100 * float64(count)
	rhs := percent * float64(total)
	if c == MoreThan {
		return lhs > rhs
	}
	return lhs >= rhs
}

// ClassThreshold is one candidate of the stabilization check.
type ClassThreshold struct {
	Class   l1labels.Label
	Percent float64
	Op      Comparison
}

// FrequencyStabilizer forces a whole series to one class when a group of
// native classes jointly dominates and one member clears its own threshold.
// Candidates are tested in order and the first that passes wins. Percentages
// are taken over the valid years of the series.
type FrequencyStabilizer struct {
	Group        l1labels.ClassSet
	GroupPercent float64
	GroupOp      Comparison
	Thresholds   []ClassThreshold
	// Otherwise, when valid, overwrites every valid year of a pixel where no
	// candidate wins.
	Otherwise l1labels.Label
}

// Name implements Stage.
func (f *FrequencyStabilizer) Name() string { return "frequency" }

// Winner returns the class that would be forced, if any.
func (f *FrequencyStabilizer) Winner(s l1labels.Series) (l1labels.Label, bool) {
	total := s.ValidCount()
	if total == 0 {
		return l1labels.NoData, false
	}
	if !f.GroupOp.passes(s.CountIn(&f.Group), total, f.GroupPercent) {
		return l1labels.NoData, false
	}
	for _, th := range f.Thresholds {
		if th.Op.passes(s.Count(th.Class), total, th.Percent) {
			return th.Class, true
		}
	}
	return l1labels.NoData, false
}

// Apply implements Stage.
func (f *FrequencyStabilizer) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	winner, ok := f.Winner(s)
	if !ok {
		if !f.Otherwise.Valid() {
			return out
		}
		winner = f.Otherwise
	}
	for i, l := range out {
		if l.Valid() {
			out[i] = winner
		}
	}
	return out
}

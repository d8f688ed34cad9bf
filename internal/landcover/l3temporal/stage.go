package l3temporal

import "github.com/banshee-data/landcover.report/internal/landcover/l1labels"

// Stage transforms one pixel's series. Implementations must not mutate the
// input slice.
type Stage interface {
	Name() string
	Apply(s l1labels.Series) l1labels.Series
}

// StageFunc adapts a function into a Stage.
type StageFunc struct {
	Label string
	Fn    func(l1labels.Series) l1labels.Series
}

// Name returns the stage label.
func (f StageFunc) Name() string { return f.Label }

// Apply runs the wrapped function.
func (f StageFunc) Apply(s l1labels.Series) l1labels.Series { return f.Fn(s) }

// Chain runs stages in order, each reading the previous stage's output.
type Chain []Stage

// Name lists the chained stage names.
func (c Chain) Name() string {
	name := ""
	for i, s := range c {
		if i > 0 {
			name += "+"
		}
		name += s.Name()
	}
	return name
}

// Apply folds s through every stage.
func (c Chain) Apply(s l1labels.Series) l1labels.Series {
	out := s
	for _, st := range c {
		out = st.Apply(out)
	}
	if len(c) == 0 {
		return s.Clone()
	}
	return out
}

// Remap wraps a remap table as a stage.
func Remap(name string, t *l1labels.RemapTable) Stage {
	return StageFunc{Label: name, Fn: t.Apply}
}

package l3temporal

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// PersistentAnthropic stops regrowth inside long-running anthropic use:
// chronologically, a year labelled Class becomes Anthropic when the Years
// preceding years (as already corrected) were all Anthropic.
type PersistentAnthropic struct {
	Class     l1labels.Label
	Anthropic l1labels.Label
	Years     int
}

// Name implements Stage.
func (r PersistentAnthropic) Name() string {
	return fmt.Sprintf("persistent_anthropic_%d", r.Class)
}

// Apply implements Stage.
func (r PersistentAnthropic) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	if r.Years <= 0 {
		return out
	}
	run := 0 // consecutive Anthropic years ending at t-1
	for t := range out {
		if out[t] == r.Class && run >= r.Years {
			out[t] = r.Anthropic
		}
		if out[t] == r.Anthropic {
			run++
		} else {
			run = 0
		}
	}
	return out
}

// EarlyAlignment aligns the years before Anchor with the anchor year for
// one class: a year whose membership in Class disagrees with the anchor
// year's takes the anchor year's label.
type EarlyAlignment struct {
	Class  l1labels.Label
	Anchor int
}

// Name implements Stage.
func (r EarlyAlignment) Name() string { return fmt.Sprintf("early_alignment_%d", r.Class) }

// Apply implements Stage.
func (r EarlyAlignment) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	if r.Anchor <= 0 || r.Anchor >= len(s) {
		return out
	}
	anchor := s[r.Anchor]
	if !anchor.Valid() {
		return out
	}
	for t := 0; t < r.Anchor; t++ {
		if s[t].Valid() && (s[t] == r.Class) != (anchor == r.Class) {
			out[t] = anchor
		}
	}
	return out
}

// NoAbruptAppearance rejects a class that appears from one year to the
// next: chronologically, a year labelled Class whose previous year (as
// already corrected) is not Class takes the previous label. With After set,
// only appearances straight after that class are rejected. With LastOnly
// only the final year is checked.
type NoAbruptAppearance struct {
	Class    l1labels.Label
	After    l1labels.Label
	LastOnly bool
}

// Name implements Stage.
func (r NoAbruptAppearance) Name() string {
	if r.LastOnly {
		return fmt.Sprintf("last_year_appearance_%d", r.Class)
	}
	return fmt.Sprintf("no_abrupt_appearance_%d", r.Class)
}

// Apply implements Stage.
func (r NoAbruptAppearance) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	first := 1
	if r.LastOnly {
		first = len(out) - 1
	}
	if first < 1 {
		return out
	}
	for t := first; t < len(out); t++ {
		prev := out[t-1]
		if out[t] != r.Class || prev == r.Class || !prev.Valid() {
			continue
		}
		if !r.After.Valid() || prev == r.After {
			out[t] = prev
		}
	}
	return out
}

// Persistence forces Class on every valid year when it occurs in at least
// MinYears years and no exception class ever occurs.
type Persistence struct {
	Class      l1labels.Label
	MinYears   int
	Exceptions l1labels.ClassSet
}

// Name implements Stage.
func (r Persistence) Name() string { return fmt.Sprintf("persistence_%d", r.Class) }

// Apply implements Stage.
func (r Persistence) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	if s.Count(r.Class) < r.MinYears || s.CountIn(&r.Exceptions) > 0 {
		return out
	}
	for t, l := range out {
		if l.Valid() {
			out[t] = r.Class
		}
	}
	return out
}

// Interruption replaces a one-year Inner label between two Outer years:
// chronologically, Outer -> Inner -> Outer sets the middle year to Replace.
type Interruption struct {
	Outer   l1labels.Label
	Inner   l1labels.Label
	Replace l1labels.Label
}

// Name implements Stage.
func (r Interruption) Name() string {
	return fmt.Sprintf("interruption_%d_%d", r.Outer, r.Inner)
}

// Apply implements Stage.
func (r Interruption) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	for t := 1; t+1 < len(out); t++ {
		if out[t-1] == r.Outer && out[t] == r.Inner && out[t+1] == r.Outer {
			out[t] = r.Replace
		}
	}
	return out
}

// EndpointForcing sets every valid year to Class when the first year holds
// First and the last year holds Last.
type EndpointForcing struct {
	First l1labels.Label
	Last  l1labels.Label
	Class l1labels.Label
}

// Name implements Stage.
func (r EndpointForcing) Name() string {
	return fmt.Sprintf("endpoint_%d_%d", r.First, r.Last)
}

// Apply implements Stage.
func (r EndpointForcing) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	if len(s) < 2 || s[0] != r.First || s[len(s)-1] != r.Last {
		return out
	}
	for t, l := range out {
		if l.Valid() {
			out[t] = r.Class
		}
	}
	return out
}

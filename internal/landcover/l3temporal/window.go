package l3temporal

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// Condition tests one year of a window against the rule's class.
type Condition struct {
	Offset int  // position within the window
	Match  bool // true: label == class, false: label != class
}

// Placement controls which window positions a rule is evaluated at.
type Placement int

const (
	// Sliding evaluates every position that fits inside the series.
	Sliding Placement = iota
	// AtStart evaluates only the window starting at year 0.
	AtStart
	// AtEnd evaluates only the window ending at the last year.
	AtEnd
)

// WindowRule is a pattern over consecutive years. When every condition
// holds, the pivot year is rewritten: to Class, or to the label found at
// CopyOffset when CopyNeighbor is set. Only the pivot is mutated.
type WindowRule struct {
	Class        l1labels.Label
	Conditions   []Condition
	Pivot        int
	Placement    Placement
	CopyNeighbor bool
	CopyOffset   int
	Label        string
}

// Span returns the window length in years.
func (r WindowRule) Span() int {
	span := r.Pivot + 1
	for _, c := range r.Conditions {
		if c.Offset+1 > span {
			span = c.Offset + 1
		}
	}
	if r.CopyNeighbor && r.CopyOffset+1 > span {
		span = r.CopyOffset + 1
	}
	return span
}

// Validate checks offsets are non-negative.
func (r WindowRule) Validate() error {
	if r.Pivot < 0 || (r.CopyNeighbor && r.CopyOffset < 0) {
		return fmt.Errorf("window rule %s: negative offset", r.Name())
	}
	for _, c := range r.Conditions {
		if c.Offset < 0 {
			return fmt.Errorf("window rule %s: negative condition offset %d", r.Name(), c.Offset)
		}
	}
	return nil
}

// Name implements Stage.
func (r WindowRule) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("window%d_%d", r.Span(), r.Class)
}

// Apply implements Stage. Conditions are evaluated against the input
// series. For dip rules this equals a left-to-right in-place sweep: a
// firing at start a rewrites year a+1 only, and the window starting at a+1
// would need year a+span-1 to differ from the class, which the firing
// excluded.
func (r WindowRule) Apply(s l1labels.Series) l1labels.Series {
	out := s.Clone()
	span := r.Span()
	if len(s) < span {
		return out
	}
	first, last := 0, len(s)-span
	switch r.Placement {
	case AtStart:
		last = 0
	case AtEnd:
		first = last
	}
	for start := first; start <= last; start++ {
		if !r.matches(s, start) {
			continue
		}
		if r.CopyNeighbor {
			out[start+r.Pivot] = s[start+r.CopyOffset]
		} else {
			out[start+r.Pivot] = r.Class
		}
	}
	return out
}

func (r WindowRule) matches(s l1labels.Series, start int) bool {
	for _, c := range r.Conditions {
		if (s[start+c.Offset] == r.Class) != c.Match {
			return false
		}
	}
	return true
}

// DipRule heals an interruption of class over span-2 years: the first and
// last years of the window hold class, every year between differs, and the
// first interrupted year is set to class. Span 3 is the isolated-dip rule.
func DipRule(class l1labels.Label, span int) WindowRule {
	conds := []Condition{{Offset: 0, Match: true}}
	for o := 1; o < span-1; o++ {
		conds = append(conds, Condition{Offset: o, Match: false})
	}
	conds = append(conds, Condition{Offset: span - 1, Match: true})
	return WindowRule{
		Class:      class,
		Conditions: conds,
		Pivot:      1,
		Placement:  Sliding,
		Label:      fmt.Sprintf("dip%d_%d", span, class),
	}
}

// WindowEngine applies dip rules per class in priority order; for each class
// the spans run in the configured order (widest first in shipped rule sets).
type WindowEngine struct {
	rules Chain
}

// NewWindowEngine validates the spans and expands the rule library.
func NewWindowEngine(classes []l1labels.Label, spans []int) (*WindowEngine, error) {
	e := &WindowEngine{}
	for _, span := range spans {
		if span < 3 {
			return nil, fmt.Errorf("window span %d: must be at least 3", span)
		}
	}
	for _, c := range classes {
		if !c.Valid() {
			return nil, fmt.Errorf("window class list contains no-data")
		}
		for _, span := range spans {
			e.rules = append(e.rules, DipRule(c, span))
		}
	}
	return e, nil
}

// Rules returns the expanded rule sequence.
func (e *WindowEngine) Rules() Chain { return e.rules }

// Name implements Stage.
func (e *WindowEngine) Name() string { return "window" }

// Apply implements Stage.
func (e *WindowEngine) Apply(s l1labels.Series) l1labels.Series { return e.rules.Apply(s) }

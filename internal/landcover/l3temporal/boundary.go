package l3temporal

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// FirstYearAnchor sets year 0 to class when it differs while years 1 and 2
// both hold class.
func FirstYearAnchor(class l1labels.Label) WindowRule {
	return WindowRule{
		Class: class,
		Conditions: []Condition{
			{Offset: 0, Match: false},
			{Offset: 1, Match: true},
			{Offset: 2, Match: true},
		},
		Pivot:     0,
		Placement: AtStart,
		Label:     fmt.Sprintf("first_%d", class),
	}
}

// LastYearAnchor sets the last year to class when it differs while the two
// previous years both hold class.
func LastYearAnchor(class l1labels.Label) WindowRule {
	return WindowRule{
		Class: class,
		Conditions: []Condition{
			{Offset: 0, Match: true},
			{Offset: 1, Match: true},
			{Offset: 2, Match: false},
		},
		Pivot:     2,
		Placement: AtEnd,
		Label:     fmt.Sprintf("last_%d", class),
	}
}

// LastYearFalseAppearance reverts a class that shows up only in the last
// year: when the last year holds class and the two previous years do not,
// the last year takes the previous year's label.
func LastYearFalseAppearance(class l1labels.Label) WindowRule {
	return WindowRule{
		Class: class,
		Conditions: []Condition{
			{Offset: 0, Match: false},
			{Offset: 1, Match: false},
			{Offset: 2, Match: true},
		},
		Pivot:        2,
		Placement:    AtEnd,
		CopyNeighbor: true,
		CopyOffset:   1,
		Label:        fmt.Sprintf("last_appearance_%d", class),
	}
}

// BoundaryCorrector applies the first/last-year rules. Last-year anchors
// run first, then last-year false appearances, then first-year anchors,
// each in the order given.
type BoundaryCorrector struct {
	rules Chain
}

// NewBoundaryCorrector builds the rule sequence.
func NewBoundaryCorrector(lastAnchor, lastFalseAppearance, firstAnchor []l1labels.Label) *BoundaryCorrector {
	b := &BoundaryCorrector{}
	for _, c := range lastAnchor {
		b.rules = append(b.rules, LastYearAnchor(c))
	}
	for _, c := range lastFalseAppearance {
		b.rules = append(b.rules, LastYearFalseAppearance(c))
	}
	for _, c := range firstAnchor {
		b.rules = append(b.rules, FirstYearAnchor(c))
	}
	return b
}

// Rules returns the configured sequence.
func (b *BoundaryCorrector) Rules() Chain { return b.rules }

// Name implements Stage.
func (b *BoundaryCorrector) Name() string { return "boundary" }

// Apply implements Stage.
func (b *BoundaryCorrector) Apply(s l1labels.Series) l1labels.Series { return b.rules.Apply(s) }

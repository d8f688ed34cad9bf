package l1labels

import (
	"fmt"
	"strconv"
)

// Label is a categorical class code for one pixel-year.
type Label uint8

// NoData marks a pixel-year without a valid classification.
const NoData Label = 0

// Class codes used by the shipped rule sets. The taxonomy is closed per
// dataset; codes not listed here are still valid labels.
const (
	Forest             Label = 3
	Savanna            Label = 4
	Wetland            Label = 11
	Grassland          Label = 12
	Pasture            Label = 15
	Agriculture        Label = 18
	MosaicOfUses       Label = 21
	NonVegetated       Label = 25
	NonObserved        Label = 27
	RockyOutcrop       Label = 29
	Water              Label = 33
	SandbankVegetation Label = 50
	Ignored            Label = 99
)

var classNames = map[Label]string{
	NoData:             "no_data",
	Forest:             "forest",
	Savanna:            "savanna",
	Wetland:            "wetland",
	Grassland:          "grassland",
	Pasture:            "pasture",
	Agriculture:        "agriculture",
	MosaicOfUses:       "mosaic_of_uses",
	NonVegetated:       "non_vegetated",
	NonObserved:        "non_observed",
	RockyOutcrop:       "rocky_outcrop",
	Water:              "water",
	SandbankVegetation: "sandbank_vegetation",
	Ignored:            "ignored",
}

// Valid reports whether l is a real classification.
func (l Label) Valid() bool { return l != NoData }

// String returns the class name, or the numeric code for unnamed classes.
func (l Label) String() string {
	if name, ok := classNames[l]; ok {
		return name
	}
	return strconv.Itoa(int(l))
}

// ParseLabel converts an integer class code into a Label.
func ParseLabel(v int) (Label, error) {
	if v < 0 || v > 255 {
		return NoData, fmt.Errorf("label %d out of range [0,255]", v)
	}
	return Label(v), nil
}

// ClassSet is a fixed-size membership table over all labels.
type ClassSet [256]bool

// NewClassSet builds a set from the given labels.
func NewClassSet(labels ...Label) ClassSet {
	var s ClassSet
	for _, l := range labels {
		s[l] = true
	}
	return s
}

// Has reports membership.
func (s *ClassSet) Has(l Label) bool { return s[l] }

// Labels returns the members in ascending order.
func (s *ClassSet) Labels() []Label {
	var out []Label
	for i, ok := range s {
		if ok {
			out = append(out, Label(i))
		}
	}
	return out
}

// Len returns the number of members.
func (s *ClassSet) Len() int {
	n := 0
	for _, ok := range s {
		if ok {
			n++
		}
	}
	return n
}

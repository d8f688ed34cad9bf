package l1labels

// Series is the chronological label sequence of one pixel. Index i is the
// i-th year of the stack's year range. Stages treat a Series as an
// immutable value and return fresh slices.
type Series []Label

// Clone returns an independent copy.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Equal reports element-wise equality.
func (s Series) Equal(o Series) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// AllMissing reports whether no year carries a valid label.
func (s Series) AllMissing() bool {
	for _, l := range s {
		if l.Valid() {
			return false
		}
	}
	return true
}

// ValidCount returns the number of years with a valid label.
func (s Series) ValidCount() int {
	n := 0
	for _, l := range s {
		if l.Valid() {
			n++
		}
	}
	return n
}

// Count returns how many years hold label l.
func (s Series) Count(l Label) int {
	n := 0
	for _, v := range s {
		if v == l {
			n++
		}
	}
	return n
}

// CountIn returns how many years hold a member of set.
func (s Series) CountIn(set *ClassSet) int {
	n := 0
	for _, v := range s {
		if set.Has(v) {
			n++
		}
	}
	return n
}

// Contains reports whether l occurs in any year.
func (s Series) Contains(l Label) bool {
	for _, v := range s {
		if v == l {
			return true
		}
	}
	return false
}

// Histogram counts valid labels.
func (s Series) Histogram() [256]int {
	var h [256]int
	for _, l := range s {
		if l.Valid() {
			h[l]++
		}
	}
	return h
}

// Runs returns the number of maximal runs of equal valid labels, skipping
// NoData years. [3,3,0,3,15] has two runs.
func (s Series) Runs() int {
	runs := 0
	prev := NoData
	for _, l := range s {
		if !l.Valid() {
			continue
		}
		if l != prev {
			runs++
			prev = l
		}
	}
	return runs
}

// Changes returns the number of class transitions between valid years.
func (s Series) Changes() int {
	if r := s.Runs(); r > 0 {
		return r - 1
	}
	return 0
}

// Distinct returns the number of distinct valid labels.
func (s Series) Distinct() int {
	var seen ClassSet
	n := 0
	for _, l := range s {
		if l.Valid() && !seen[l] {
			seen[l] = true
			n++
		}
	}
	return n
}

// Mode returns the most frequent valid label. Ties go to the smallest
// code. ok is false when the series has no valid label.
func (s Series) Mode() (mode Label, ok bool) {
	h := s.Histogram()
	return ModeOf(&h)
}

// ModeOf returns the most frequent label of a histogram, smallest code on
// ties, ignoring NoData.
func ModeOf(h *[256]int) (Label, bool) {
	best, bestCount := NoData, 0
	for i := 1; i < len(h); i++ {
		if h[i] > bestCount {
			best, bestCount = Label(i), h[i]
		}
	}
	return best, bestCount > 0
}

package l1labels

import "fmt"

// RemapTable maps source class codes onto a target class set. Codes without
// an entry pass through unchanged unless a default is configured. NoData
// always maps to NoData.
type RemapTable struct {
	table      [256]Label
	mapped     [256]bool
	hasDefault bool
	def        Label
}

// NewRemapTable builds a table from parallel from/to lists.
func NewRemapTable(from, to []int) (*RemapTable, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("remap: from has %d entries, to has %d", len(from), len(to))
	}
	t := &RemapTable{}
	for i := range from {
		src, err := ParseLabel(from[i])
		if err != nil {
			return nil, fmt.Errorf("remap from[%d]: %w", i, err)
		}
		dst, err := ParseLabel(to[i])
		if err != nil {
			return nil, fmt.Errorf("remap to[%d]: %w", i, err)
		}
		if t.mapped[src] && t.table[src] != dst {
			return nil, fmt.Errorf("remap: class %d mapped twice (%d and %d)", src, t.table[src], dst)
		}
		t.table[src] = dst
		t.mapped[src] = true
	}
	return t, nil
}

// MustRemapTable is NewRemapTable for static tables; it panics on error.
func MustRemapTable(from, to []int) *RemapTable {
	t, err := NewRemapTable(from, to)
	if err != nil {
		panic(err)
	}
	return t
}

// WithDefault sets the label used for codes without an explicit entry.
func (t *RemapTable) WithDefault(l Label) *RemapTable {
	t.hasDefault = true
	t.def = l
	return t
}

// Map returns the remapped label.
func (t *RemapTable) Map(l Label) Label {
	if t == nil {
		return l
	}
	if l == NoData && !t.mapped[NoData] {
		return NoData
	}
	return t.MapRaw(l)
}

// MapRaw remaps l treating 0 as an ordinary code. Reference layers carry
// their own validity mask, so a zero value there is data, not a gap.
func (t *RemapTable) MapRaw(l Label) Label {
	if t == nil {
		return l
	}
	if t.mapped[l] {
		return t.table[l]
	}
	if t.hasDefault {
		return t.def
	}
	return l
}

// Apply returns a remapped copy of s.
func (t *RemapTable) Apply(s Series) Series {
	out := make(Series, len(s))
	for i, l := range s {
		out[i] = t.Map(l)
	}
	return out
}

// Lookup returns the explicit or default mapping for l. ok is false when l
// has neither, which reference layers treat as outside their footprint.
func (t *RemapTable) Lookup(l Label) (Label, bool) {
	if t == nil {
		return l, true
	}
	if t.mapped[l] {
		return t.table[l], true
	}
	if t.hasDefault && l != NoData {
		return t.def, true
	}
	return NoData, false
}

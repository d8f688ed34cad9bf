package l2raster

import (
	"errors"
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// ErrShapeMismatch is returned when grids that must align differ in size.
var ErrShapeMismatch = errors.New("raster shape mismatch")

// Shape is the pixel extent shared by every band of a run.
type Shape struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns Width*Height.
func (s Shape) Pixels() int { return s.Width * s.Height }

// Idx returns the row-major cell index.
func (s Shape) Idx(row, col int) int { return row*s.Width + col }

// RowCol inverts Idx.
func (s Shape) RowCol(idx int) (row, col int) { return idx / s.Width, idx % s.Width }

// InBounds reports whether (row, col) lies inside the extent.
func (s Shape) InBounds(row, col int) bool {
	return row >= 0 && row < s.Height && col >= 0 && col < s.Width
}

// Check returns ErrShapeMismatch when o differs from s.
func (s Shape) Check(o Shape) error {
	if s != o {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, s.Width, s.Height, o.Width, o.Height)
	}
	return nil
}

// Grid is a single band of labels in row-major order.
type Grid struct {
	Shape
	Cells []l1labels.Label
}

// NewGrid allocates a NoData-filled grid.
func NewGrid(width, height int) *Grid {
	return &Grid{Shape: Shape{Width: width, Height: height}, Cells: make([]l1labels.Label, width*height)}
}

// GridFromRows builds a grid from a slice of equal-length rows.
func GridFromRows(rows [][]l1labels.Label) (*Grid, error) {
	if len(rows) == 0 {
		return NewGrid(0, 0), nil
	}
	g := NewGrid(len(rows[0]), len(rows))
	for r, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrShapeMismatch, r, len(row), g.Width)
		}
		copy(g.Cells[r*g.Width:], row)
	}
	return g, nil
}

// At returns the label at (row, col).
func (g *Grid) At(row, col int) l1labels.Label { return g.Cells[g.Idx(row, col)] }

// Set stores a label at (row, col).
func (g *Grid) Set(row, col int, l l1labels.Label) { g.Cells[g.Idx(row, col)] = l }

// Fill sets every cell to l.
func (g *Grid) Fill(l l1labels.Label) {
	for i := range g.Cells {
		g.Cells[i] = l
	}
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Shape: g.Shape, Cells: make([]l1labels.Label, len(g.Cells))}
	copy(out.Cells, g.Cells)
	return out
}

// Rows returns the grid as nested rows, mostly for test diffs.
func (g *Grid) Rows() [][]l1labels.Label {
	rows := make([][]l1labels.Label, g.Height)
	for r := range rows {
		rows[r] = append([]l1labels.Label(nil), g.Cells[r*g.Width:(r+1)*g.Width]...)
	}
	return rows
}

// Diff counts cells whose labels differ between g and o.
func (g *Grid) Diff(o *Grid) (int, error) {
	if err := g.Shape.Check(o.Shape); err != nil {
		return 0, err
	}
	n := 0
	for i := range g.Cells {
		if g.Cells[i] != o.Cells[i] {
			n++
		}
	}
	return n, nil
}

// Mask is a boolean grid.
type Mask struct {
	Shape
	Bits []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Shape: Shape{Width: width, Height: height}, Bits: make([]bool, width*height)}
}

// Get returns the bit at idx; a nil mask reads as all-true.
func (m *Mask) Get(idx int) bool {
	if m == nil {
		return true
	}
	return m.Bits[idx]
}

// Count returns the number of set bits.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// ValueGrid is a continuous reference band (canopy height, slope, SAVI)
// with its own validity footprint.
type ValueGrid struct {
	Shape
	Values []float64
	Valid  []bool
}

// NewValueGrid allocates an all-invalid value grid.
func NewValueGrid(width, height int) *ValueGrid {
	return &ValueGrid{
		Shape:  Shape{Width: width, Height: height},
		Values: make([]float64, width*height),
		Valid:  make([]bool, width*height),
	}
}

// Set stores a valid value at idx.
func (v *ValueGrid) Set(idx int, value float64) {
	v.Values[idx] = value
	v.Valid[idx] = true
}

// Get returns the value at idx and whether it lies inside the footprint.
func (v *ValueGrid) Get(idx int) (float64, bool) {
	return v.Values[idx], v.Valid[idx]
}

// FromLabels converts a label grid into a value grid; NoData cells are
// outside the footprint.
func FromLabels(g *Grid) *ValueGrid {
	v := NewValueGrid(g.Width, g.Height)
	for i, l := range g.Cells {
		if l.Valid() {
			v.Set(i, float64(l))
		}
	}
	return v
}

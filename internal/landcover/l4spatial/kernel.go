package l4spatial

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// KernelShape selects the neighbourhood footprint.
type KernelShape string

const (
	Square    KernelShape = "square"
	Manhattan KernelShape = "manhattan"
)

// Kernel is a fixed set of pixel offsets around (and including) the centre.
type Kernel struct {
	Shape   KernelShape
	Radius  int
	offsets [][2]int
}

// NewKernel builds a square (Chebyshev) or Manhattan (diamond) kernel.
func NewKernel(shape KernelShape, radius int) (Kernel, error) {
	if radius < 0 {
		return Kernel{}, fmt.Errorf("kernel radius %d must be non-negative", radius)
	}
	k := Kernel{Shape: shape, Radius: radius}
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			switch shape {
			case Square:
			case Manhattan:
				if abs(dr)+abs(dc) > radius {
					continue
				}
			default:
				return Kernel{}, fmt.Errorf("unknown kernel shape %q", shape)
			}
			k.offsets = append(k.offsets, [2]int{dr, dc})
		}
	}
	return k, nil
}

// MustKernel is NewKernel for static kernels.
func MustKernel(shape KernelShape, radius int) Kernel {
	k, err := NewKernel(shape, radius)
	if err != nil {
		panic(err)
	}
	return k
}

// Size returns the number of cells in the footprint.
func (k Kernel) Size() int { return len(k.offsets) }

// Mode returns the most frequent valid label around (row, col), the centre
// included, smallest code on ties. Cells beyond the raster edge and NoData
// cells do not vote; ok is false when nothing votes.
func (k Kernel) Mode(g *l2raster.Grid, row, col int) (l1labels.Label, bool) {
	var hist [256]int
	for _, d := range k.offsets {
		r, c := row+d[0], col+d[1]
		if !g.InBounds(r, c) {
			continue
		}
		if l := g.Cells[g.Idx(r, c)]; l.Valid() {
			hist[l]++
		}
	}
	return l1labels.ModeOf(&hist)
}

// ModeGrid evaluates Mode at every pixel; undefined cells are NoData.
func (k Kernel) ModeGrid(g *l2raster.Grid) *l2raster.Grid {
	out := l2raster.NewGrid(g.Width, g.Height)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if m, ok := k.Mode(g, row, col); ok {
				out.Set(row, col, m)
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

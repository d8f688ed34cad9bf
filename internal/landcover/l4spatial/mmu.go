package l4spatial

import (
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// MMUFilter is the minimum-mapping-unit filter: pixels whose same-label
// component has at most Threshold pixels take the neighbourhood mode.
//
// Pixels set in Skip (typically those with no observation in any year) are
// neither sized nor rewritten, so they stay as they are.
type MMUFilter struct {
	Threshold    int
	MaxSize      int
	Connectivity Connectivity
	Kernel       Kernel
	Skip         *l2raster.Mask
}

// Validate checks the threshold against the enumeration cap.
func (f MMUFilter) Validate() error {
	return CheckBounds("mmu", f.Threshold, f.MaxSize)
}

// Apply runs one round over a band and returns the filtered copy with the
// number of pixels changed. Sizes and modes are both taken from the input,
// so the result does not depend on scan order. Pixels whose neighbourhood
// has no valid label keep their value.
func (f MMUFilter) Apply(g *l2raster.Grid) (*l2raster.Grid, int) {
	sizes := componentSizes(g.Shape, f.Connectivity, f.MaxSize,
		func(i int) bool { return !skipped(f.Skip, i) },
		func(a, b int) bool { return g.Cells[a] == g.Cells[b] })
	out := g.Clone()
	changed := 0
	for idx, size := range sizes {
		if !IsSmall(size, f.Threshold, f.MaxSize) {
			continue
		}
		row, col := g.RowCol(idx)
		mode, ok := f.Kernel.Mode(g, row, col)
		if !ok || mode == g.Cells[idx] {
			continue
		}
		out.Cells[idx] = mode
		changed++
	}
	return out, changed
}

// Rounds applies n full rounds; round k+1 reads round k's complete output.
func (f MMUFilter) Rounds(g *l2raster.Grid, n int) (*l2raster.Grid, int) {
	out := g
	total := 0
	for i := 0; i < n; i++ {
		var changed int
		out, changed = f.Apply(out)
		total += changed
	}
	if out == g {
		out = g.Clone()
	}
	return out, total
}

// GapCloser fills NoData pixels with the mode of a (typically wider)
// kernel; pixels whose neighbourhood is entirely NoData stay NoData, as do
// pixels set in Skip.
type GapCloser struct {
	Kernel Kernel
	Skip   *l2raster.Mask
}

// Apply returns the filled copy and the number of pixels filled.
func (c GapCloser) Apply(g *l2raster.Grid) (*l2raster.Grid, int) {
	out := g.Clone()
	filled := 0
	for idx, l := range g.Cells {
		if l.Valid() || skipped(c.Skip, idx) {
			continue
		}
		row, col := g.RowCol(idx)
		if mode, ok := c.Kernel.Mode(g, row, col); ok {
			out.Cells[idx] = mode
			filled++
		}
	}
	return out, filled
}

// skipped treats a nil mask as empty, unlike Mask.Get.
func skipped(m *l2raster.Mask, idx int) bool {
	return m != nil && m.Bits[idx]
}

package l5fusion

import (
	"fmt"
	"sort"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// CategoricalLayer normalizes a class-coded reference raster through remap.
// With a table, codes that have neither an entry nor a default fall outside
// the layer footprint, and a source 0 counts only when mapped explicitly.
// A mapped value of 0 is data. A nil table keeps every non-zero code.
func CategoricalLayer(g *l2raster.Grid, remap *l1labels.RemapTable) *l2raster.ValueGrid {
	v := l2raster.NewValueGrid(g.Width, g.Height)
	for i, l := range g.Cells {
		if remap == nil {
			if l.Valid() {
				v.Set(i, float64(l))
			}
			continue
		}
		if m, ok := remap.Lookup(l); ok {
			v.Set(i, float64(m))
		}
	}
	return v
}

// RegionLayer turns a rasterized polygon into a constant-valued layer whose
// footprint is the polygon.
func RegionLayer(m *l2raster.Mask, value float64) *l2raster.ValueGrid {
	v := l2raster.NewValueGrid(m.Width, m.Height)
	for i, in := range m.Bits {
		if in {
			v.Set(i, value)
		}
	}
	return v
}

// LayerSet holds the reference layers of one run by name. Per-year layers
// are stored as "<name>_<year>" and resolved by Lookup.
type LayerSet struct {
	shape  l2raster.Shape
	layers map[string]*l2raster.ValueGrid
}

// NewLayerSet returns an empty set for rasters of the given shape.
func NewLayerSet(shape l2raster.Shape) *LayerSet {
	return &LayerSet{shape: shape, layers: map[string]*l2raster.ValueGrid{}}
}

// Add registers a layer. Layers must match the set's shape.
func (ls *LayerSet) Add(name string, v *l2raster.ValueGrid) error {
	if err := ls.shape.Check(v.Shape); err != nil {
		return fmt.Errorf("layer %q: %w", name, err)
	}
	ls.layers[name] = v
	return nil
}

// Lookup returns the layer for year when a "<name>_<year>" layer exists,
// otherwise the plain layer. year <= 0 skips the per-year lookup.
func (ls *LayerSet) Lookup(name string, year int) (*l2raster.ValueGrid, bool) {
	if year > 0 {
		if v, ok := ls.layers[fmt.Sprintf("%s_%d", name, year)]; ok {
			return v, true
		}
	}
	v, ok := ls.layers[name]
	return v, ok
}

// Names returns the registered layer names in sorted order.
func (ls *LayerSet) Names() []string {
	names := make([]string, 0, len(ls.layers))
	for n := range ls.layers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

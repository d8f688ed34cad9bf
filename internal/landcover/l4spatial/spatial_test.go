package l4spatial

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

type L = l1labels.Label

func grid(t *testing.T, rows [][]L) *l2raster.Grid {
	t.Helper()
	g, err := l2raster.GridFromRows(rows)
	require.NoError(t, err)
	return g
}

func uniform(w, h int, l L) *l2raster.Grid {
	g := l2raster.NewGrid(w, h)
	g.Fill(l)
	return g
}

func TestComponentSizes(t *testing.T) {
	t.Parallel()

	g := grid(t, [][]L{
		{3, 3, 4},
		{4, 3, 4},
		{3, 4, 4},
	})

	four := ComponentSizes(g, Four, 100)
	assert.Equal(t, []int{3, 3, 4, 1, 3, 4, 1, 4, 4}, four)

	eight := ComponentSizes(g, Eight, 100)
	// Diagonals join: the 3s form one component of 4 and the 4s one of 5.
	assert.Equal(t, []int{4, 4, 5, 5, 4, 5, 4, 5, 5}, eight)

	capped := ComponentSizes(g, Eight, 2)
	for _, s := range capped {
		assert.Equal(t, 2, s)
	}
}

func TestComponentSizesLargeUniformRegion(t *testing.T) {
	t.Parallel()

	// A raster-sized component must not recurse; every pixel reports the cap.
	g := uniform(512, 512, 3)
	sizes := ComponentSizes(g, Eight, 100)
	assert.Equal(t, 100, sizes[0])
	assert.Equal(t, 100, sizes[len(sizes)-1])
}

func TestMaskComponentSizes(t *testing.T) {
	t.Parallel()

	m := l2raster.NewMask(3, 1)
	m.Bits[0], m.Bits[2] = true, true
	assert.Equal(t, []int{1, 0, 1}, MaskComponentSizes(m, Eight, 10))
}

func TestIsSmallAndBounds(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSmall(3, 8, 100))
	assert.False(t, IsSmall(9, 8, 100))
	assert.False(t, IsSmall(100, 100, 100), "a component at the cap is large enough")
	assert.False(t, IsSmall(0, 8, 100))

	assert.NoError(t, CheckBounds("x", 8, 100))
	assert.Error(t, CheckBounds("x", 101, 100))
	assert.Error(t, CheckBounds("x", -1, 100))
	assert.Error(t, CheckBounds("x", 0, 0))
}

func TestKernels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 9, MustKernel(Square, 1).Size())
	assert.Equal(t, 81, MustKernel(Square, 4).Size())
	assert.Equal(t, 5, MustKernel(Manhattan, 1).Size())
	assert.Equal(t, 145, MustKernel(Manhattan, 8).Size())

	_, err := NewKernel("circle", 1)
	assert.Error(t, err)
	_, err = NewKernel(Square, -1)
	assert.Error(t, err)
}

func TestKernelMode(t *testing.T) {
	t.Parallel()

	g := grid(t, [][]L{
		{4, 4, 0},
		{3, 3, 0},
		{0, 0, 0},
	})
	k := MustKernel(Square, 1)

	m, ok := k.Mode(g, 0, 0)
	require.True(t, ok)
	assert.Equal(t, L(3), m, "2-2 tie resolves to the smaller code")

	m, ok = k.Mode(g, 2, 2)
	require.True(t, ok)
	assert.Equal(t, L(3), m, "no-data never votes")

	empty := uniform(3, 3, 0)
	_, ok = k.Mode(empty, 1, 1)
	assert.False(t, ok)

	modes := k.ModeGrid(empty)
	assert.Equal(t, make([]L, 9), modes.Cells)
}

func TestMMUReplacesIsland(t *testing.T) {
	t.Parallel()

	g := uniform(5, 5, 3)
	g.Set(2, 2, 15)

	f := MMUFilter{Threshold: 2, MaxSize: 100, Connectivity: Four, Kernel: MustKernel(Square, 1)}
	require.NoError(t, f.Validate())

	out, changed := f.Apply(g)
	assert.Equal(t, 1, changed)
	assert.Equal(t, uniform(5, 5, 3).Cells, out.Cells)
	assert.Equal(t, L(15), g.At(2, 2), "input untouched")
}

func TestMMUKeepsLargePatches(t *testing.T) {
	t.Parallel()

	g := uniform(6, 6, 3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g.Set(r, c, 12)
		}
	}
	f := MMUFilter{Threshold: 8, MaxSize: 100, Connectivity: Four, Kernel: MustKernel(Square, 1)}
	out, changed := f.Apply(g)
	assert.Equal(t, 0, changed)
	assert.Equal(t, g.Cells, out.Cells)
}

func TestMMUSecondRoundRemovesFirstRoundArtifact(t *testing.T) {
	t.Parallel()

	// A savanna pixel whose four diagonal neighbours are isolated forest
	// pixels in a grassland field. Round one turns the savanna pixel into
	// forest (4 forest, 4 grassland, forest < grassland) while the diagonal
	// forest pixels revert to grassland, leaving a new forest singleton
	// that only round two removes.
	g := uniform(7, 7, 12)
	g.Set(3, 3, 4)
	for _, d := range [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
		g.Set(3+d[0], 3+d[1], 3)
	}
	f := MMUFilter{Threshold: 2, MaxSize: 100, Connectivity: Four, Kernel: MustKernel(Square, 1)}

	round1, _ := f.Apply(g)
	assert.Equal(t, L(3), round1.At(3, 3), "round one creates a forest singleton")
	assert.Equal(t, L(12), round1.At(2, 2))

	round2, changed := f.Apply(round1)
	assert.Equal(t, 1, changed)
	assert.Equal(t, uniform(7, 7, 12).Cells, round2.Cells)

	both, total := f.Rounds(g, 2)
	assert.Equal(t, round2.Cells, both.Cells)
	assert.Equal(t, 6, total)
}

func TestMMUUndefinedNeighbourhood(t *testing.T) {
	t.Parallel()

	g := uniform(3, 3, 0)
	g.Set(1, 1, 3)
	f := MMUFilter{Threshold: 2, MaxSize: 100, Connectivity: Four, Kernel: MustKernel(Square, 1)}
	out, changed := f.Apply(g)
	assert.Equal(t, 0, changed)
	assert.Equal(t, L(3), out.At(1, 1), "the island is its own only voter")
}

func TestGapCloser(t *testing.T) {
	t.Parallel()

	g := grid(t, [][]L{
		{3, 0, 0, 0, 0, 0, 0},
	})
	out, filled := GapCloser{Kernel: MustKernel(Square, 4)}.Apply(g)
	assert.Equal(t, 4, filled)
	assert.Equal(t, []L{3, 3, 3, 3, 3, 0, 0}, out.Cells)
}

func TestSkipLeavesMissingPixels(t *testing.T) {
	t.Parallel()

	g := uniform(3, 3, 3)
	g.Set(1, 1, 0)
	skip := l2raster.NewMask(3, 3)
	skip.Bits[g.Idx(1, 1)] = true

	f := MMUFilter{Threshold: 2, MaxSize: 100, Connectivity: Four, Kernel: MustKernel(Square, 1)}
	out, changed := f.Apply(g)
	assert.Equal(t, 1, changed, "without a skip mask the hole is a small component")
	assert.Equal(t, L(3), out.At(1, 1))

	f.Skip = skip
	out, changed = f.Rounds(g, 2)
	assert.Equal(t, 0, changed)
	assert.Equal(t, L(0), out.At(1, 1))

	out, filled := GapCloser{Kernel: MustKernel(Square, 2), Skip: skip}.Apply(out)
	assert.Equal(t, 0, filled)
	assert.Equal(t, L(0), out.At(1, 1))
}

func TestSlopeFilter(t *testing.T) {
	t.Parallel()

	g := grid(t, [][]L{
		{12, 11, 12},
		{12, 12, 21},
	})
	slope := l2raster.NewValueGrid(3, 2)
	slope.Set(1, 15) // wetland on a hillside
	slope.Set(5, 45) // mosaic on a cliff
	slope.Set(3, 50) // grassland is not targeted

	f := SlopeFilter{
		Rules: []SlopeRule{
			{Class: 11, MinPercent: 9},
			{Class: 21, MinPercent: 40, Replace: 12},
		},
		Kernel: MustKernel(Manhattan, 1),
	}
	out, changed, err := f.Apply(g, slope)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	if diff := cmp.Diff([][]L{{12, 12, 12}, {12, 12, 12}}, out.Rows()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, _, err = f.Apply(g, l2raster.NewValueGrid(1, 1))
	assert.Error(t, err)
}

func TestRegrowthExclusion(t *testing.T) {
	t.Parallel()

	s, err := l2raster.NewStack(2020, 2022, 6, 3)
	require.NoError(t, err)
	for _, b := range s.Bands {
		b.Fill(21)
	}
	// Small three-pixel regrowth in the last year.
	for c := 0; c < 3; c++ {
		s.Bands[2].Set(0, c, 3)
	}
	// Large regrowth patch (6 pixels) in the last year.
	for c := 0; c < 6; c++ {
		s.Bands[2].Set(2, c, 4)
	}

	r := RegrowthExclusion{
		Native:       l1labels.NewClassSet(3, 4, 11, 12),
		Anthropic:    l1labels.NewClassSet(21),
		TailYears:    1,
		MinPixels:    5,
		MaxSize:      20,
		Connectivity: Eight,
	}
	require.NoError(t, r.Validate())

	out, reverted := r.Apply(s)
	assert.Equal(t, 3, reverted)
	assert.Equal(t, []L{21, 21, 21, 21, 21, 21}, out.Bands[2].Rows()[0])
	assert.Equal(t, []L{4, 4, 4, 4, 4, 4}, out.Bands[2].Rows()[2], "corroborated regrowth kept")
	assert.Equal(t, L(3), s.Bands[2].At(0, 0), "input untouched")

	assert.Error(t, RegrowthExclusion{TailYears: 3, MaxSize: 10}.Validate())
}

func TestIncidenceFilter(t *testing.T) {
	t.Parallel()

	s, err := l2raster.NewStack(2000, 2005, 3, 3)
	require.NoError(t, err)
	for _, b := range s.Bands {
		b.Fill(3)
	}
	// Centre pixel flips every year between forest and pasture: 5 changes.
	s.SetSeries(4, l1labels.Series{3, 15, 3, 15, 3, 15})
	// A water/non-vegetated flip is ignored because 25 is excluded.
	s.SetSeries(0, l1labels.Series{3, 25, 3, 25, 3, 3})
	// Rocky outcrop has no aggregate class, so its years are gaps.
	s.SetSeries(8, l1labels.Series{3, 29, 3, 29, 3, 29})

	f := IncidenceFilter{
		Aggregate:        l1labels.MustRemapTable([]int{3, 4, 11, 12, 15, 18, 25, 33, 27}, []int{2, 2, 2, 2, 1, 1, 1, 7, 7}),
		Exclude:          l1labels.NewClassSet(25),
		MaxSize:          100,
		Connectivity:     Eight,
		BorderMaxPixels:  1,
		BorderMinChanges: 3,
		MinChanges:       10,
	}
	require.NoError(t, f.Validate())

	changes := f.Changes(s)
	assert.Equal(t, 5, changes[4])
	assert.Equal(t, 0, changes[0])
	assert.Equal(t, 0, changes[8])

	out, flattened := f.Apply(s)
	assert.Equal(t, 1, flattened)
	assert.Equal(t, l1labels.Series{3, 29, 3, 29, 3, 29}, out.Series(8, nil))
	assert.Equal(t, l1labels.Series{3, 3, 3, 3, 3, 3}, out.Series(4, nil))
	assert.Equal(t, l1labels.Series{3, 25, 3, 25, 3, 3}, out.Series(0, nil))
}

package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestSeries(t *testing.T) {
	t.Parallel()

	got := Series(3, 0, 15)
	want := l1labels.Series{l1labels.Forest, l1labels.NoData, l1labels.Pasture}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Series mismatch (-want +got):\n%s", diff)
	}
}

func TestUniformGrid(t *testing.T) {
	t.Parallel()

	g := UniformGrid(3, 2, l1labels.Savanna)
	if g.Pixels() != 6 {
		t.Fatalf("Pixels() = %d, want 6", g.Pixels())
	}
	for i, l := range g.Cells {
		if l != l1labels.Savanna {
			t.Errorf("cell %d = %v, want savanna", i, l)
		}
	}
}

func TestGridFromRows(t *testing.T) {
	t.Parallel()

	g := GridFromRows(t, []int{3, 4}, []int{12, 15})
	if g.At(1, 0) != l1labels.Grassland {
		t.Errorf("At(1,0) = %v, want grassland", g.At(1, 0))
	}
}

func TestUniformStack(t *testing.T) {
	t.Parallel()

	s := UniformStack(t, 2001, 2, 2, Series(3, 3, 15))
	if s.EndYear() != 2003 {
		t.Fatalf("EndYear() = %d, want 2003", s.EndYear())
	}
	if diff := cmp.Diff(Series(3, 3, 15), s.Series(3, nil)); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

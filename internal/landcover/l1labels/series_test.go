package l1labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesCounting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		series   Series
		runs     int
		changes  int
		distinct int
		valid    int
	}{
		{"empty", Series{}, 0, 0, 0, 0},
		{"all missing", Series{0, 0, 0}, 0, 0, 0, 0},
		{"stable", Series{3, 3, 3, 3}, 1, 0, 1, 4},
		{"gap inside run", Series{3, 0, 3, 15}, 2, 1, 2, 3},
		{"flip flop", Series{3, 15, 3, 15}, 4, 3, 2, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.runs, tt.series.Runs(), "runs")
			assert.Equal(t, tt.changes, tt.series.Changes(), "changes")
			assert.Equal(t, tt.distinct, tt.series.Distinct(), "distinct")
			assert.Equal(t, tt.valid, tt.series.ValidCount(), "valid")
		})
	}
}

func TestSeriesMode(t *testing.T) {
	t.Parallel()

	mode, ok := Series{4, 3, 4, 3, 12}.Mode()
	assert.True(t, ok)
	assert.Equal(t, Forest, mode, "ties resolve to the smallest code")

	mode, ok = Series{0, 12, 12, 0, 0}.Mode()
	assert.True(t, ok)
	assert.Equal(t, Grassland, mode, "no-data never wins")

	_, ok = Series{0, 0}.Mode()
	assert.False(t, ok)
}

func TestSeriesAllMissing(t *testing.T) {
	t.Parallel()
	assert.True(t, Series{0, 0, 0}.AllMissing())
	assert.False(t, Series{0, 3, 0}.AllMissing())
}

func TestRemapTable(t *testing.T) {
	t.Parallel()

	rt := MustRemapTable([]int{15, 18}, []int{21, 21})
	got := rt.Apply(Series{3, 15, 0, 18, 4})
	assert.Equal(t, Series{3, 21, 0, 21, 4}, got)

	withDefault := MustRemapTable([]int{3, 4}, []int{3, 3}).WithDefault(NoData)
	assert.Equal(t, Series{3, 3, 0, 0}, withDefault.Apply(Series{3, 4, 12, 0}))

	layer := MustRemapTable([]int{1}, []int{11}).WithDefault(Label(7))
	assert.Equal(t, Label(7), layer.MapRaw(0), "raw mapping treats zero as data")
	assert.Equal(t, NoData, layer.Map(0))

	var nilTable *RemapTable
	assert.Equal(t, Forest, nilTable.Map(Forest))

	l, ok := layer.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, Wetland, l)
	l, ok = layer.Lookup(5)
	assert.True(t, ok)
	assert.Equal(t, Label(7), l)
	_, ok = layer.Lookup(0)
	assert.False(t, ok, "zero needs an explicit entry")
	_, ok = rt.Lookup(3)
	assert.False(t, ok, "no entry and no default")
}

func TestNewRemapTableErrors(t *testing.T) {
	t.Parallel()

	_, err := NewRemapTable([]int{1, 2}, []int{1})
	assert.Error(t, err)

	_, err = NewRemapTable([]int{300}, []int{1})
	assert.Error(t, err)

	_, err = NewRemapTable([]int{3, 3}, []int{3, 4})
	assert.Error(t, err)
}

func TestClassSet(t *testing.T) {
	t.Parallel()

	s := NewClassSet(Wetland, Forest, Forest)
	assert.True(t, s.Has(Forest))
	assert.False(t, s.Has(Savanna))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Label{Forest, Wetland}, s.Labels())
}

func TestLabelString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "forest", Forest.String())
	assert.Equal(t, "42", Label(42).String())
	_, err := ParseLabel(-1)
	assert.Error(t, err)
}

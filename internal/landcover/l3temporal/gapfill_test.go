package l3temporal

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

func TestGapFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   l1labels.Series
		want l1labels.Series
	}{
		{"no gaps", l1labels.Series{3, 4, 3}, l1labels.Series{3, 4, 3}},
		{"interior gap takes earlier label", l1labels.Series{3, 0, 0, 15}, l1labels.Series{3, 3, 3, 15}},
		{"leading gap takes later label", l1labels.Series{0, 0, 12, 12}, l1labels.Series{12, 12, 12, 12}},
		{"trailing gap", l1labels.Series{4, 11, 0}, l1labels.Series{4, 11, 11}},
		{"single valid", l1labels.Series{0, 0, 33, 0}, l1labels.Series{33, 33, 33, 33}},
		{"all missing stays missing", l1labels.Series{0, 0, 0}, l1labels.Series{0, 0, 0}},
		{"empty", l1labels.Series{}, l1labels.Series{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := tt.in.Clone()
			got := GapFill(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GapFill mismatch (-want +got):\n%s", diff)
			}
			if !in.Equal(tt.in) {
				t.Errorf("GapFill mutated its input: %v", tt.in)
			}
		})
	}
}

func TestGapFillProperties(t *testing.T) {
	t.Parallel()

	inputs := []l1labels.Series{
		{0, 3, 0, 0, 4, 0},
		{0, 0, 0, 0, 0, 25},
		{11, 0, 11, 0, 11},
		{0, 0},
	}
	for _, in := range inputs {
		once := GapFill(in)
		if !in.AllMissing() && once.ValidCount() != len(once) {
			t.Errorf("GapFill(%v) = %v still has gaps", in, once)
		}
		if twice := GapFill(once); !twice.Equal(once) {
			t.Errorf("GapFill not idempotent: %v then %v", once, twice)
		}
	}
}

package l4spatial

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	l2 "github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// RegrowthExclusion reverts late anthropic-to-native flips that lack
// spatial support. For each of the last TailYears years t, pixels native at
// t and anthropic at t-1 form the regrowth mask; regrowth components of at
// most MinPixels pixels take year t-1's label at year t.
type RegrowthExclusion struct {
	Native       l1labels.ClassSet
	Anthropic    l1labels.ClassSet
	TailYears    int
	MinPixels    int
	MaxSize      int
	Connectivity Connectivity
}

// Validate checks the size threshold and tail length.
func (r RegrowthExclusion) Validate() error {
	if r.TailYears < 1 || r.TailYears > 2 {
		return fmt.Errorf("regrowth: tail_years must be 1 or 2, got %d", r.TailYears)
	}
	return CheckBounds("regrowth", r.MinPixels, r.MaxSize)
}

// Apply returns a corrected copy of the stack and the number of reverted
// pixel-years. Tail years are processed chronologically, so the second
// tail year sees the first one's reversions.
func (r RegrowthExclusion) Apply(s *l2.Stack) (*l2.Stack, int) {
	out := s.Clone()
	reverted := 0
	n := out.Len()
	for t := n - r.TailYears; t < n; t++ {
		if t < 1 {
			continue
		}
		prev, cur := out.Bands[t-1], out.Bands[t]
		mask := l2.NewMask(s.Width, s.Height)
		for idx := range mask.Bits {
			mask.Bits[idx] = r.Native.Has(cur.Cells[idx]) && r.Anthropic.Has(prev.Cells[idx])
		}
		sizes := MaskComponentSizes(mask, r.Connectivity, r.MaxSize)
		for idx, size := range sizes {
			if IsSmall(size, r.MinPixels, r.MaxSize) {
				cur.Cells[idx] = prev.Cells[idx]
				reverted++
			}
		}
	}
	return out, reverted
}

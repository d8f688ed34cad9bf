package l5fusion

import (
	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// StablePixels returns the base grid of a training mask. A pixel is stable
// when its valid years hold exactly one distinct class; its value is that
// class, even when the first year is missing. Every other pixel, including
// all-missing ones, is NoData.
func StablePixels(s *l2raster.Stack) *l2raster.Grid {
	out := l2raster.NewGrid(s.Width, s.Height)
	var buf l1labels.Series
	for idx := range out.Cells {
		buf = s.Series(idx, buf)
		if buf.Distinct() != 1 {
			continue
		}
		for _, l := range buf {
			if l.Valid() {
				out.Cells[idx] = l
				break
			}
		}
	}
	return out
}

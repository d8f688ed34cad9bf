package l2raster

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// Stack is the annual classification time series: one band per year over a
// contiguous range with step 1. Bands[i] holds year StartYear+i.
type Stack struct {
	Shape
	StartYear int
	Bands     []*Grid
	Geo       GeoTransform
}

// NewStack allocates NoData bands for every year in [startYear, endYear].
func NewStack(startYear, endYear, width, height int) (*Stack, error) {
	if endYear < startYear {
		return nil, fmt.Errorf("invalid year range %d-%d", startYear, endYear)
	}
	s := &Stack{Shape: Shape{Width: width, Height: height}, StartYear: startYear}
	for y := startYear; y <= endYear; y++ {
		s.Bands = append(s.Bands, NewGrid(width, height))
	}
	return s, nil
}

// NewStackLike allocates an empty stack with the same years, shape and
// georeferencing as s.
func NewStackLike(s *Stack) *Stack {
	out := &Stack{Shape: s.Shape, StartYear: s.StartYear, Geo: s.Geo, Bands: make([]*Grid, len(s.Bands))}
	for i := range out.Bands {
		out.Bands[i] = NewGrid(s.Width, s.Height)
	}
	return out
}

// Len returns the number of years.
func (s *Stack) Len() int { return len(s.Bands) }

// EndYear returns the last year in the range.
func (s *Stack) EndYear() int { return s.StartYear + len(s.Bands) - 1 }

// Years returns the year labels of every band.
func (s *Stack) Years() []int {
	years := make([]int, len(s.Bands))
	for i := range years {
		years[i] = s.StartYear + i
	}
	return years
}

// YearIndex converts a calendar year into a band index.
func (s *Stack) YearIndex(year int) (int, bool) {
	i := year - s.StartYear
	return i, i >= 0 && i < len(s.Bands)
}

// Band returns the grid of a calendar year.
func (s *Stack) Band(year int) (*Grid, error) {
	i, ok := s.YearIndex(year)
	if !ok {
		return nil, fmt.Errorf("year %d outside %d-%d", year, s.StartYear, s.EndYear())
	}
	return s.Bands[i], nil
}

// Series copies the time series of pixel idx into dst (grown as needed)
// and returns it.
func (s *Stack) Series(idx int, dst l1labels.Series) l1labels.Series {
	if cap(dst) < len(s.Bands) {
		dst = make(l1labels.Series, len(s.Bands))
	}
	dst = dst[:len(s.Bands)]
	for t, b := range s.Bands {
		dst[t] = b.Cells[idx]
	}
	return dst
}

// SetSeries writes a time series back into pixel idx.
func (s *Stack) SetSeries(idx int, series l1labels.Series) {
	for t, b := range s.Bands {
		b.Cells[idx] = series[t]
	}
}

// Clone deep-copies every band.
func (s *Stack) Clone() *Stack {
	out := &Stack{Shape: s.Shape, StartYear: s.StartYear, Geo: s.Geo, Bands: make([]*Grid, len(s.Bands))}
	for i, b := range s.Bands {
		out.Bands[i] = b.Clone()
	}
	return out
}

// Validate checks that every band matches the stack shape.
func (s *Stack) Validate() error {
	if len(s.Bands) == 0 {
		return fmt.Errorf("stack has no bands")
	}
	for i, b := range s.Bands {
		if b == nil {
			return fmt.Errorf("band %d is nil", s.StartYear+i)
		}
		if err := s.Shape.Check(b.Shape); err != nil {
			return fmt.Errorf("band %d: %w", s.StartYear+i, err)
		}
		if len(b.Cells) != b.Pixels() {
			return fmt.Errorf("band %d: %w: %d cells for %dx%d", s.StartYear+i, ErrShapeMismatch, len(b.Cells), b.Width, b.Height)
		}
	}
	return nil
}

// SameLayout reports whether o has the same years and shape as s.
func (s *Stack) SameLayout(o *Stack) error {
	if err := s.Shape.Check(o.Shape); err != nil {
		return err
	}
	if s.StartYear != o.StartYear || len(s.Bands) != len(o.Bands) {
		return fmt.Errorf("%w: years %d-%d vs %d-%d", ErrShapeMismatch, s.StartYear, s.EndYear(), o.StartYear, o.EndYear())
	}
	return nil
}

// Clip sets every pixel outside mask to NoData in all bands, returning the
// number of pixels cleared.
func (s *Stack) Clip(mask *Mask) (int, error) {
	if mask == nil {
		return 0, nil
	}
	if err := s.Shape.Check(mask.Shape); err != nil {
		return 0, err
	}
	cleared := 0
	for idx, in := range mask.Bits {
		if in {
			continue
		}
		cleared++
		for _, b := range s.Bands {
			b.Cells[idx] = l1labels.NoData
		}
	}
	return cleared, nil
}

// MissingMask marks the pixels that are NoData in every band.
func (s *Stack) MissingMask() *Mask {
	m := NewMask(s.Width, s.Height)
	for idx := range m.Bits {
		m.Bits[idx] = true
		for _, b := range s.Bands {
			if b.Cells[idx].Valid() {
				m.Bits[idx] = false
				break
			}
		}
	}
	return m
}

// Blank sets every pixel inside mask back to NoData in all bands and
// returns the number of pixel-years that held a label.
func (s *Stack) Blank(mask *Mask) (int, error) {
	if err := s.Shape.Check(mask.Shape); err != nil {
		return 0, err
	}
	reset := 0
	for idx, set := range mask.Bits {
		if !set {
			continue
		}
		for _, b := range s.Bands {
			if b.Cells[idx].Valid() {
				b.Cells[idx] = l1labels.NoData
				reset++
			}
		}
	}
	return reset, nil
}

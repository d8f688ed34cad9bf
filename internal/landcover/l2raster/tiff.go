package l2raster

import (
	"fmt"
	"image"
	"io"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// EncodeBand writes a label grid as a deflate-compressed 8-bit grayscale
// TIFF.
func EncodeBand(w io.Writer, g *Grid) error {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, l := range g.Cells {
		img.Pix[i] = uint8(l)
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode band: %w", err)
	}
	return nil
}

// DecodeBand reads a label grid from an 8-bit grayscale, paletted, or
// 16-bit grayscale TIFF. 16-bit samples above 255 are rejected.
func DecodeBand(r io.Reader) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode band: %w", err)
	}
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	switch m := img.(type) {
	case *image.Gray:
		for row := 0; row < g.Height; row++ {
			copy(labelRow(g, row), grayRow(m.Pix[row*m.Stride:], g.Width))
		}
	case *image.Paletted:
		for row := 0; row < g.Height; row++ {
			copy(labelRow(g, row), grayRow(m.Pix[row*m.Stride:], g.Width))
		}
	case *image.Gray16:
		for row := 0; row < g.Height; row++ {
			for col := 0; col < g.Width; col++ {
				v := m.Gray16At(b.Min.X+col, b.Min.Y+row).Y
				if v > 255 {
					return nil, fmt.Errorf("decode band: class code %d at (%d,%d) exceeds 255", v, row, col)
				}
				g.Set(row, col, l1labels.Label(v))
			}
		}
	default:
		return nil, fmt.Errorf("decode band: unsupported image type %T", img)
	}
	return g, nil
}

func labelRow(g *Grid, row int) []l1labels.Label {
	return g.Cells[row*g.Width : (row+1)*g.Width]
}

func grayRow(pix []uint8, width int) []l1labels.Label {
	out := make([]l1labels.Label, width)
	for i := range out {
		out[i] = l1labels.Label(pix[i])
	}
	return out
}

// DecodeValues reads a continuous reference band from an 8- or 16-bit
// grayscale TIFF. Samples equal to noData are outside the footprint; pass a
// negative noData to treat every sample as valid. scale multiplies raw
// samples (slope stored as percent*100, for example).
func DecodeValues(r io.Reader, noData int, scale float64) (*ValueGrid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	if scale == 0 {
		scale = 1
	}
	b := img.Bounds()
	v := NewValueGrid(b.Dx(), b.Dy())
	sample := func(row, col int) (int, error) {
		switch m := img.(type) {
		case *image.Gray:
			return int(m.GrayAt(b.Min.X+col, b.Min.Y+row).Y), nil
		case *image.Gray16:
			return int(m.Gray16At(b.Min.X+col, b.Min.Y+row).Y), nil
		case *image.Paletted:
			return int(m.ColorIndexAt(b.Min.X+col, b.Min.Y+row)), nil
		default:
			return 0, fmt.Errorf("decode values: unsupported image type %T", img)
		}
	}
	for row := 0; row < v.Height; row++ {
		for col := 0; col < v.Width; col++ {
			s, err := sample(row, col)
			if err != nil {
				return nil, err
			}
			if noData >= 0 && s == noData {
				continue
			}
			v.Set(v.Idx(row, col), float64(s)*scale)
		}
	}
	return v, nil
}

// EncodeValues writes a value grid as a 16-bit TIFF, dividing by scale and
// storing cells outside the footprint as noData.
func EncodeValues(w io.Writer, v *ValueGrid, noData uint16, scale float64) error {
	if scale == 0 {
		scale = 1
	}
	img := image.NewGray16(image.Rect(0, 0, v.Width, v.Height))
	for i := range v.Values {
		raw := noData
		if v.Valid[i] {
			s := v.Values[i] / scale
			if s < 0 || s > 65535 {
				return fmt.Errorf("encode values: sample %g at %d out of 16-bit range", s, i)
			}
			raw = uint16(s + 0.5)
		}
		img.Pix[2*i] = uint8(raw >> 8)
		img.Pix[2*i+1] = uint8(raw)
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	return nil
}

package l2raster

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// GeoTransform maps pixel coordinates onto map coordinates, north-up:
// x = OriginX + col*PixelWidth, y = OriginY + row*PixelHeight.
// PixelHeight is negative for north-up rasters.
type GeoTransform struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
}

// Defined reports whether the transform has a non-degenerate pixel size.
func (g GeoTransform) Defined() bool {
	return g.PixelWidth != 0 && g.PixelHeight != 0
}

// PixelCenter returns the map coordinate of the centre of (row, col).
func (g GeoTransform) PixelCenter(row, col int) orb.Point {
	return orb.Point{
		g.OriginX + (float64(col)+0.5)*g.PixelWidth,
		g.OriginY + (float64(row)+0.5)*g.PixelHeight,
	}
}

// ParseRegion collects every polygonal geometry of a GeoJSON feature
// collection into one multipolygon. Non-polygonal features are ignored.
func ParseRegion(data []byte) (orb.MultiPolygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse region geojson: %w", err)
	}
	var region orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			region = append(region, g)
		case orb.MultiPolygon:
			region = append(region, g...)
		}
	}
	if len(region) == 0 {
		return nil, fmt.Errorf("region geojson has no polygon features")
	}
	return region, nil
}

// PolygonFromRing builds a single-ring polygon from (x, y) pairs, closing
// the ring when needed.
func PolygonFromRing(coords [][2]float64) orb.Polygon {
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, orb.Point{c[0], c[1]})
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// RasterizeRegion marks every pixel whose centre lies inside region.
func RasterizeRegion(region orb.MultiPolygon, geo GeoTransform, shape Shape) (*Mask, error) {
	if !geo.Defined() {
		return nil, fmt.Errorf("rasterize region: geotransform is undefined")
	}
	mask := NewMask(shape.Width, shape.Height)
	bound := region.Bound()
	for row := 0; row < shape.Height; row++ {
		for col := 0; col < shape.Width; col++ {
			p := geo.PixelCenter(row, col)
			if !bound.Contains(p) {
				continue
			}
			if planar.MultiPolygonContains(region, p) {
				mask.Bits[shape.Idx(row, col)] = true
			}
		}
	}
	return mask, nil
}

package l4spatial

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// Connectivity selects 4- or 8-adjacency.
type Connectivity int

const (
	Four Connectivity = iota
	Eight
)

// ParseConnectivity maps a boolean rule-set flag onto Connectivity.
func ParseConnectivity(eightConnected bool) Connectivity {
	if eightConnected {
		return Eight
	}
	return Four
}

func (c Connectivity) String() string {
	if c == Eight {
		return "eight"
	}
	return "four"
}

var (
	fourNeighbors  = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	eightNeighbors = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

func (c Connectivity) neighbors() [][2]int {
	if c == Eight {
		return eightNeighbors
	}
	return fourNeighbors
}

// componentSizes labels every eligible pixel with the size of its component,
// capped at maxSize. Pixels i and j join when both are eligible and
// same(i, j). Ineligible pixels get 0. Components are grown with an explicit
// FIFO queue; each pixel is enqueued at most once.
func componentSizes(shape l2raster.Shape, conn Connectivity, maxSize int, eligible func(int) bool, same func(a, b int) bool) []int {
	n := shape.Pixels()
	sizes := make([]int, n)
	visited := make([]bool, n)
	queue := make([]int, 0, 64)
	nbrs := conn.neighbors()

	for seed := 0; seed < n; seed++ {
		if visited[seed] || !eligible(seed) {
			continue
		}
		queue = append(queue[:0], seed)
		visited[seed] = true
		for head := 0; head < len(queue); head++ {
			cur := queue[head]
			row, col := shape.RowCol(cur)
			for _, d := range nbrs {
				nr, nc := row+d[0], col+d[1]
				if !shape.InBounds(nr, nc) {
					continue
				}
				next := shape.Idx(nr, nc)
				if visited[next] || !eligible(next) || !same(cur, next) {
					continue
				}
				visited[next] = true
				queue = append(queue, next)
			}
		}
		size := len(queue)
		if size > maxSize {
			size = maxSize
		}
		for _, idx := range queue {
			sizes[idx] = size
		}
	}
	return sizes
}

// ComponentSizes returns, per pixel, the size of its same-label component
// capped at maxSize. NoData pixels form components like any other label.
func ComponentSizes(g *l2raster.Grid, conn Connectivity, maxSize int) []int {
	return componentSizes(g.Shape, conn, maxSize,
		func(int) bool { return true },
		func(a, b int) bool { return g.Cells[a] == g.Cells[b] })
}

// MaskComponentSizes sizes the components of set bits; unset pixels get 0.
func MaskComponentSizes(m *l2raster.Mask, conn Connectivity, maxSize int) []int {
	return componentSizes(m.Shape, conn, maxSize,
		func(i int) bool { return m.Bits[i] },
		func(int, int) bool { return true })
}

// IsSmall reports whether a capped component size falls inside threshold.
// A component that reached the cap counts as large enough, whatever the
// threshold.
func IsSmall(size, threshold, maxSize int) bool {
	return size > 0 && size <= threshold && size < maxSize
}

// CheckBounds validates a size threshold against its enumeration cap.
func CheckBounds(name string, threshold, maxSize int) error {
	if maxSize <= 0 {
		return fmt.Errorf("%s: max size must be positive, got %d", name, maxSize)
	}
	if threshold < 0 || threshold > maxSize {
		return fmt.Errorf("%s: threshold %d outside [0, %d]", name, threshold, maxSize)
	}
	return nil
}

// labelGridFromCounts encodes small non-negative integers as labels so they
// can be sized with ComponentSizes. Values above 255 saturate.
func labelGridFromCounts(shape l2raster.Shape, counts []int) *l2raster.Grid {
	g := l2raster.NewGrid(shape.Width, shape.Height)
	for i, c := range counts {
		if c > 255 {
			c = 255
		}
		g.Cells[i] = l1labels.Label(c)
	}
	return g
}

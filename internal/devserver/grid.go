package devserver

import (
	"math"
	"slices"
)

// Bodies live in -10..110 percent before pruning; the grid covers that span.
const (
	gridOrigin = -10.0
	gridSpan   = 120.0
	gridCell   = 10.0 // >= AsteroidSize + ProjectileSize
)

// grid is a broad-phase index of bodies by cell. Entries are indices into
// the slice passed to rebuild, so nothing is retained between ticks.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type grid struct {
	invCell float64
	cols    int
	cells   [][]int
	scratch []int // reused query result
}

func newGrid() *grid {
	cols := int(math.Ceil(gridSpan / gridCell))
	cells := make([][]int, cols*cols)
	for i := range cells {
		cells[i] = make([]int, 0, 4)
	}
	return &grid{
		invCell: 1 / gridCell,
		cols:    cols,
		cells:   cells,
		scratch: make([]int, 0, 16),
	}
}

// rebuild indexes the live bodies. O(cells + bodies).
func (g *grid) rebuild(bodies []*body) {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0] // Keep capacity, reset length
	}
	for i, b := range bodies {
		if b.dead {
			continue
		}
		idx := g.row(b.y)*g.cols + g.col(b.x)
		g.cells[idx] = append(g.cells[idx], i)
	}
}

// near returns indices of bodies possibly within radius of (x, y), ascending.
// The slice is reused by the next call; callers do the precise check.
func (g *grid) near(x, y, radius float64) []int {
	g.scratch = g.scratch[:0]
	for row := g.row(y - radius); row <= g.row(y+radius); row++ {
		for col := g.col(x - radius); col <= g.col(x+radius); col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	slices.Sort(g.scratch)
	return g.scratch
}

func (g *grid) col(x float64) int {
	return clampIndex(int((x-gridOrigin)*g.invCell), g.cols)
}

func (g *grid) row(y float64) int {
	return clampIndex(int((y-gridOrigin)*g.invCell), g.cols)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

package lattice

import "fmt"

// Coord addresses a lattice cell by row and column.
type Coord struct {
	Row, Col int
}

// Neighbors returns the Moore neighbourhood of (row, col) on a height×width
// lattice without wraparound. Corners yield 3 coordinates, edges 5 and
// interior cells 8, in scan order (dr then dc, both -1..1). On a one-cell
// wide strip the counts shrink: end cells have 1 neighbour and the rest 2.
func Neighbors(height, width, row, col int) []Coord {
	if row < 0 || row >= height || col < 0 || col >= width {
		panic(fmt.Sprintf("lattice: cell (%d,%d) outside %dx%d", row, col, height, width))
	}
	out := make([]Coord, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		nr := row + dr
		if nr < 0 || nr >= height {
			continue
		}
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nc := col + dc
			if nc < 0 || nc >= width {
				continue
			}
			out = append(out, Coord{Row: nr, Col: nc})
		}
	}
	return out
}

// Topology is a precomputed neighbour table in compressed row form:
// the neighbours of cell i are index[offset[i]:offset[i+1]].
type Topology struct {
	height, width int
	offset        []int
	index         []int
}

// NewTopology builds the neighbour table for a height×width lattice.
func NewTopology(height, width int) *Topology {
	n := height * width
	t := &Topology{
		height: height,
		width:  width,
		offset: make([]int, n+1),
		index:  make([]int, 0, 8*n),
	}
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			for _, nb := range Neighbors(height, width, r, c) {
				t.index = append(t.index, nb.Row*width+nb.Col)
			}
			t.offset[r*width+c+1] = len(t.index)
		}
	}
	return t
}

// Neighbors returns the flat neighbour indices of cell i. The slice aliases
// the table and must not be modified.
func (t *Topology) Neighbors(i int) []int {
	return t.index[t.offset[i]:t.offset[i+1]]
}

// Degree returns the neighbour count of cell i.
func (t *Topology) Degree(i int) int {
	return t.offset[i+1] - t.offset[i]
}

// Len returns the number of cells covered by the table.
func (t *Topology) Len() int { return t.height * t.width }

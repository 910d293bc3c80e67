// Package lattice holds the per-cell state of the cooperation lattice and its
// fixed Moore neighbour topology.
package lattice

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidConfig is wrapped by every constructor validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Lattice stores cooperation levels and accumulated payoffs in row-major order.
type Lattice struct {
	height, width int

	cb  float64 // cost paid per unit of donor cooperation
	dur int     // donations initiated per cell per generation

	coop   []float64
	next   []float64
	payoff []float64

	topo *Topology
}

// New validates the parameters and builds a lattice from a row-major
// cooperation slice of length height*width. The slice is copied.
func New(height, width int, cb float64, dur int, coop []float64) (*Lattice, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidConfig, height, width)
	}
	if height == 1 && width == 1 {
		return nil, fmt.Errorf("%w: a 1x1 lattice has no neighbours", ErrInvalidConfig)
	}
	if !(cb > 0) || math.IsInf(cb, 0) {
		return nil, fmt.Errorf("%w: cost-benefit ratio must be > 0, got %v", ErrInvalidConfig, cb)
	}
	if dur < 1 {
		return nil, fmt.Errorf("%w: interactions per generation must be >= 1, got %d", ErrInvalidConfig, dur)
	}
	n := height * width
	if len(coop) != n {
		return nil, fmt.Errorf("%w: cooperation has %d entries, want %d", ErrInvalidConfig, len(coop), n)
	}
	for i, v := range coop {
		if !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("%w: cooperation[%d,%d] = %v outside [0,1]", ErrInvalidConfig, i/width, i%width, v)
		}
	}

	l := &Lattice{
		height: height,
		width:  width,
		cb:     cb,
		dur:    dur,
		coop:   make([]float64, n),
		next:   make([]float64, n),
		payoff: make([]float64, n),
		topo:   NewTopology(height, width),
	}
	copy(l.coop, coop)
	return l, nil
}

// FromRows builds a lattice from a row-major matrix.
func FromRows(rows [][]float64, cb float64, dur int) (*Lattice, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty cooperation matrix", ErrInvalidConfig)
	}
	h, w := len(rows), len(rows[0])
	flat := make([]float64, 0, h*w)
	for r, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidConfig, r, len(row), w)
		}
		flat = append(flat, row...)
	}
	return New(h, w, cb, dur, flat)
}

// Height returns the number of rows.
func (l *Lattice) Height() int { return l.height }

// Width returns the number of columns.
func (l *Lattice) Width() int { return l.width }

// Len returns the number of cells.
func (l *Lattice) Len() int { return len(l.coop) }

// CostBenefit returns the cost-benefit ratio.
func (l *Lattice) CostBenefit() float64 { return l.cb }

// Interactions returns the number of donations each cell initiates per generation.
func (l *Lattice) Interactions() int { return l.dur }

// Topology returns the neighbour table.
func (l *Lattice) Topology() *Topology { return l.topo }

// Index converts (row, col) to a flat index.
func (l *Lattice) Index(row, col int) int { return row*l.width + col }

// Coord converts a flat index back to (row, col).
func (l *Lattice) Coord(i int) Coord { return Coord{Row: i / l.width, Col: i % l.width} }

// Neighbors returns the flat neighbour indices of cell i.
func (l *Lattice) Neighbors(i int) []int { return l.topo.Neighbors(i) }

// At returns the cooperation level at (row, col).
func (l *Lattice) At(row, col int) float64 { return l.coop[l.Index(row, col)] }

// PayoffAt returns the accumulated payoff at (row, col).
func (l *Lattice) PayoffAt(row, col int) float64 { return l.payoff[l.Index(row, col)] }

// Cooperation exposes the live cooperation buffer. Callers must not modify it.
func (l *Lattice) Cooperation() []float64 { return l.coop }

// Payoffs exposes the live payoff buffer. Callers must not modify it.
func (l *Lattice) Payoffs() []float64 { return l.payoff }

// View returns a read-only view of the current cooperation matrix.
func (l *Lattice) View() View { return View{height: l.height, width: l.width, data: l.coop} }

// Donate applies one donation: the donor pays cb*c[donor] and the recipient
// gains c[donor].
func (l *Lattice) Donate(donor, recipient int) {
	c := l.coop[donor]
	l.payoff[donor] -= l.cb * c
	l.payoff[recipient] += c
}

// PayoffRange returns the minimum and maximum payoff over the whole lattice.
func (l *Lattice) PayoffRange() (lo, hi float64) {
	return floats.Min(l.payoff), floats.Max(l.payoff)
}

// NextBuffer returns the scratch buffer for the next generation, pre-filled
// with the current cooperation levels.
func (l *Lattice) NextBuffer() []float64 {
	copy(l.next, l.coop)
	return l.next
}

// Commit clips next to [0,1], installs it as the cooperation matrix and
// zeroes every payoff. next must be the slice returned by NextBuffer. It
// returns the number of entries that had to be clipped.
func (l *Lattice) Commit(next []float64) int {
	clipped := 0
	for i, v := range next {
		switch {
		case v < 0:
			next[i] = 0
			clipped++
		case v > 1:
			next[i] = 1
			clipped++
		case math.IsNaN(v):
			next[i] = l.coop[i]
			clipped++
		}
	}
	l.coop, l.next = next, l.coop
	l.ResetPayoffs()
	return clipped
}

// ResetPayoffs sets every payoff to zero.
func (l *Lattice) ResetPayoffs() {
	for i := range l.payoff {
		l.payoff[i] = 0
	}
}

// Rows returns a deep copy of the cooperation matrix.
func (l *Lattice) Rows() [][]float64 {
	return l.View().Rows()
}

// Clone returns an independent copy sharing only the immutable topology.
func (l *Lattice) Clone() *Lattice {
	c := &Lattice{
		height: l.height,
		width:  l.width,
		cb:     l.cb,
		dur:    l.dur,
		coop:   append([]float64(nil), l.coop...),
		next:   make([]float64, len(l.coop)),
		payoff: append([]float64(nil), l.payoff...),
		topo:   l.topo,
	}
	return c
}

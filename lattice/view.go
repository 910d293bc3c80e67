package lattice

// View is a read-only window onto a cooperation matrix. It aliases the
// lattice buffer and is only valid until the next generation commits.
type View struct {
	height, width int
	data          []float64
}

// NewView wraps a row-major slice. It is mainly useful in tests and for
// rendering data that does not come from a live lattice.
func NewView(height, width int, data []float64) View {
	return View{height: height, width: width, data: data}
}

// Height returns the number of rows.
func (v View) Height() int { return v.height }

// Width returns the number of columns.
func (v View) Width() int { return v.width }

// Len returns the number of cells.
func (v View) Len() int { return len(v.data) }

// At returns the value at (row, col).
func (v View) At(row, col int) float64 { return v.data[row*v.width+col] }

// Value returns the value at flat index i.
func (v View) Value(i int) float64 { return v.data[i] }

// Values returns a copy of the row-major data.
func (v View) Values() []float64 {
	return append([]float64(nil), v.data...)
}

// Rows returns a deep copy as a matrix.
func (v View) Rows() [][]float64 {
	rows := make([][]float64, v.height)
	for r := range rows {
		rows[r] = append([]float64(nil), v.data[r*v.width:(r+1)*v.width]...)
	}
	return rows
}

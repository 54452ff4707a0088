package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Scaler maps every column independently onto [0,1] using the min and max of
// the batch it was fitted on. Constant columns map to 0.
type Scaler struct {
	Min []float64 `msgpack:"min" json:"min"`
	Max []float64 `msgpack:"max" json:"max"`
}

// FitScaler computes per-column min/max over data
func FitScaler(data mat.Matrix) *Scaler {
	rows, cols := data.Dims()
	s := &Scaler{
		Min: make([]float64, cols),
		Max: make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := data.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.Min[j], s.Max[j] = lo, hi
	}
	return s
}

// Width is the number of columns the scaler was fitted on
func (s *Scaler) Width() int {
	return len(s.Min)
}

func (s *Scaler) scale(col int) float64 {
	r := s.Max[col] - s.Min[col]
	if r == 0 {
		return 1
	}
	return r
}

// Value scales a single value of column col
func (s *Scaler) Value(col int, v float64) float64 {
	return (v - s.Min[col]) / s.scale(col)
}

// InverseValue maps a scaled value of column col back to original units
func (s *Scaler) InverseValue(col int, v float64) float64 {
	return v*s.scale(col) + s.Min[col]
}

// Transform returns a scaled copy of data. Values outside the fitted range
// are not clipped.
func (s *Scaler) Transform(data mat.Matrix) (*mat.Dense, error) {
	rows, cols := data.Dims()
	if cols != s.Width() {
		return nil, fmt.Errorf("scaler fitted on %d columns, got %d", s.Width(), cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return s.Value(j, v)
	}, data)
	return out, nil
}

// InverseRow maps a full scaled row back to original units
func (s *Scaler) InverseRow(row []float64) ([]float64, error) {
	if len(row) != s.Width() {
		return nil, fmt.Errorf("scaler fitted on %d columns, got %d", s.Width(), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = s.InverseValue(j, v)
	}
	return out, nil
}

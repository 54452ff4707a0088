package features

import (
	"fmt"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"gonum.org/v1/gonum/mat"
)

// DateUnit is the epoch resolution used for the draw date column
type DateUnit int

const (
	Seconds DateUnit = iota
	Milliseconds
	Nanoseconds
)

func (u DateUnit) String() string {
	switch u {
	case Milliseconds:
		return "ms"
	case Nanoseconds:
		return "ns"
	default:
		return "s"
	}
}

// Epoch converts t to the unit's epoch value
func (u DateUnit) Epoch(t time.Time) float64 {
	switch u {
	case Milliseconds:
		return float64(t.UnixMilli())
	case Nanoseconds:
		return float64(t.UnixNano())
	default:
		return float64(t.Unix())
	}
}

// Fixed leading columns of every feature row
const (
	DateColumn    = 0
	JackpotColumn = 1
	firstNumber   = 2
)

// FeatureMatrix is one scaled row per draw:
// [draw_date, jackpot, num_1 .. num_K]
type FeatureMatrix struct {
	Columns     []string
	Data        *mat.Dense
	Scaler      *Scaler
	NumberCount int
}

// Rows is the number of encoded draws
func (m *FeatureMatrix) Rows() int {
	r, _ := m.Data.Dims()
	return r
}

// Row returns a copy of row i
func (m *FeatureMatrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Data)
}

// NumberSpan returns the half-open column range holding num_1..num_K
func (m *FeatureMatrix) NumberSpan() (start, end int) {
	return firstNumber, firstNumber + m.NumberCount
}

// Columns names the feature columns for draws of k numbers
func Columns(k int) []string {
	cols := make([]string, 0, k+firstNumber)
	cols = append(cols, "draw_date", "jackpot")
	for i := 1; i <= k; i++ {
		cols = append(cols, fmt.Sprintf("num_%d", i))
	}
	return cols
}

// Encoder turns draw records into a fixed-width feature matrix.
// Records must be ordered oldest first (see OldestFirst); numbers are laid
// out in the order given and never re-sorted.
type Encoder struct {
	unit DateUnit
}

// NewEncoder creates an encoder using one date unit for every call
func NewEncoder(unit DateUnit) *Encoder {
	return &Encoder{unit: unit}
}

// Unit returns the encoder's date unit
func (e *Encoder) Unit() DateUnit {
	return e.unit
}

// Raw builds the unscaled matrix
func (e *Encoder) Raw(records []models.DrawRecord) (*mat.Dense, int, error) {
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("encode: %w", ErrInsufficientRows)
	}
	k := len(records[0].Numbers)
	if k == 0 {
		return nil, 0, fmt.Errorf("encode draw %s: %w", records[0].DrawDate.Format("2006-01-02"), ErrMissingNumbers)
	}

	data := mat.NewDense(len(records), k+firstNumber, nil)
	for i, rec := range records {
		if len(rec.Numbers) != k {
			return nil, 0, fmt.Errorf("encode draw %s: %w: want %d, got %d",
				rec.DrawDate.Format("2006-01-02"), ErrRaggedNumbers, k, len(rec.Numbers))
		}
		row := data.RawRowView(i)
		row[DateColumn] = e.unit.Epoch(rec.DrawDate)
		row[JackpotColumn] = float64(rec.Jackpot)
		for j, n := range rec.Numbers {
			row[firstNumber+j] = float64(n)
		}
	}
	return data, k, nil
}

// Encode fits a fresh scaler over this batch and applies it
func (e *Encoder) Encode(records []models.DrawRecord) (*FeatureMatrix, error) {
	raw, k, err := e.Raw(records)
	if err != nil {
		return nil, err
	}
	return e.scale(raw, k, FitScaler(raw))
}

// EncodeWith applies a previously fitted scaler instead of fitting one
func (e *Encoder) EncodeWith(records []models.DrawRecord, scaler *Scaler) (*FeatureMatrix, error) {
	if scaler == nil {
		return nil, fmt.Errorf("encode: no scaler given")
	}
	raw, k, err := e.Raw(records)
	if err != nil {
		return nil, err
	}
	return e.scale(raw, k, scaler)
}

func (e *Encoder) scale(raw *mat.Dense, k int, scaler *Scaler) (*FeatureMatrix, error) {
	scaled, err := scaler.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return &FeatureMatrix{
		Columns:     Columns(k),
		Data:        scaled,
		Scaler:      scaler,
		NumberCount: k,
	}, nil
}

// TrainingPair holds inputs and next-draw targets: Y[i] is the row after X[i]
type TrainingPair struct {
	X *mat.Dense
	Y *mat.Dense
}

// Len is the number of input/target pairs
func (p *TrainingPair) Len() int {
	r, _ := p.X.Dims()
	return r
}

// NewTrainingPair offsets the matrix by one draw
func NewTrainingPair(m *FeatureMatrix) (*TrainingPair, error) {
	rows, cols := m.Data.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("training pair needs 2 draws, got %d: %w", rows, ErrInsufficientRows)
	}
	return &TrainingPair{
		X: mat.DenseCopyOf(m.Data.Slice(0, rows-1, 0, cols)),
		Y: mat.DenseCopyOf(m.Data.Slice(1, rows, 0, cols)),
	}, nil
}

// OutputNumbers extracts num_1..num_k from a model output row. With a scaler
// the values are mapped back to original units; nil leaves them scaled.
func OutputNumbers(row []float64, k int, scaler *Scaler) ([]float64, error) {
	if k < 1 || len(row) < firstNumber+k {
		return nil, fmt.Errorf("output row of %d values has no %d number columns", len(row), k)
	}
	out := make([]float64, k)
	for j := range out {
		col := firstNumber + j
		out[j] = row[col]
		if scaler != nil {
			if col >= scaler.Width() {
				return nil, fmt.Errorf("scaler fitted on %d columns, need %d", scaler.Width(), col+1)
			}
			out[j] = scaler.InverseValue(col, row[col])
		}
	}
	return out, nil
}

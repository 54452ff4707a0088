package features

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(day int, jackpot int64, numbers ...int) models.DrawRecord {
	return models.DrawRecord{
		DrawDate: time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC),
		Jackpot:  jackpot,
		Numbers:  numbers,
	}
}

func sampleRecords() []models.DrawRecord {
	return []models.DrawRecord{
		draw(3, 2000000, 4, 11, 19, 23, 31, 40),
		draw(6, 3500000, 2, 9, 17, 28, 36, 44),
		draw(10, 5000000, 7, 14, 22, 30, 38, 49),
		draw(13, 2000000, 1, 5, 12, 27, 33, 41),
	}
}

func TestEncodeShapeAndRange(t *testing.T) {
	records := sampleRecords()
	m, err := NewEncoder(Seconds).Encode(records)
	require.NoError(t, err)

	rows, cols := m.Data.Dims()
	assert.Equal(t, len(records), rows)
	assert.Equal(t, 6+2, cols)
	assert.Equal(t, []string{"draw_date", "jackpot", "num_1", "num_2", "num_3", "num_4", "num_5", "num_6"}, m.Columns)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.Data.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	// oldest draw has the smallest date, newest the largest
	assert.Equal(t, 0.0, m.Data.At(0, DateColumn))
	assert.Equal(t, 1.0, m.Data.At(rows-1, DateColumn))

	start, end := m.NumberSpan()
	assert.Equal(t, 2, start)
	assert.Equal(t, 8, end)
}

func TestEncodeKeepsGivenNumberOrder(t *testing.T) {
	records := []models.DrawRecord{
		draw(1, 10, 30, 20, 10),
		draw(2, 20, 10, 20, 30),
	}
	m, err := NewEncoder(Seconds).Encode(records)
	require.NoError(t, err)

	raw, err := m.Scaler.InverseRow(m.Row(0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{30, 20, 10}, raw[2:], 1e-9)
}

func TestEncodeConstantColumnMapsToZero(t *testing.T) {
	records := []models.DrawRecord{
		draw(1, 500, 1, 2),
		draw(2, 500, 3, 4),
	}
	m, err := NewEncoder(Seconds).Encode(records)
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.Data.At(0, JackpotColumn))
	assert.Equal(t, 0.0, m.Data.At(1, JackpotColumn))
}

func TestEncodeRejectsRaggedNumbers(t *testing.T) {
	records := []models.DrawRecord{
		draw(1, 10, 1, 2, 3, 4, 5, 6),
		draw(2, 10, 1, 2, 3, 4, 5, 6, 7),
	}
	_, err := NewEncoder(Seconds).Encode(records)
	assert.ErrorIs(t, err, ErrRaggedNumbers)
	assert.True(t, IsDataError(err))
}

func TestEncodeRejectsEmptyInput(t *testing.T) {
	_, err := NewEncoder(Seconds).Encode(nil)
	assert.ErrorIs(t, err, ErrInsufficientRows)

	_, err = NewEncoder(Seconds).Encode([]models.DrawRecord{draw(1, 10)})
	assert.ErrorIs(t, err, ErrMissingNumbers)
}

func TestDateUnitOnlyChangesRawScale(t *testing.T) {
	records := sampleRecords()

	rawSec, _, err := NewEncoder(Seconds).Raw(records)
	require.NoError(t, err)
	rawNs, _, err := NewEncoder(Nanoseconds).Raw(records)
	require.NoError(t, err)
	assert.InEpsilon(t, rawSec.At(1, DateColumn)*1e9, rawNs.At(1, DateColumn), 1e-12)

	sec, err := NewEncoder(Seconds).Encode(records)
	require.NoError(t, err)
	ns, err := NewEncoder(Nanoseconds).Encode(records)
	require.NoError(t, err)
	for i := range records {
		assert.InDelta(t, sec.Data.At(i, DateColumn), ns.Data.At(i, DateColumn), 1e-9)
	}
}

func TestEncodeWithReusesScaler(t *testing.T) {
	records := sampleRecords()
	enc := NewEncoder(Seconds)

	full, err := enc.Encode(records)
	require.NoError(t, err)

	tail, err := enc.EncodeWith(records[2:], full.Scaler)
	require.NoError(t, err)
	assert.Equal(t, full.Row(2), tail.Row(0))
	assert.Equal(t, full.Row(3), tail.Row(1))

	refit, err := enc.Encode(records[2:])
	require.NoError(t, err)
	assert.NotEqual(t, full.Row(2), refit.Row(0))

	_, err = enc.EncodeWith(records, nil)
	assert.Error(t, err)
}

func TestEncodeWithRejectsWidthMismatch(t *testing.T) {
	enc := NewEncoder(Seconds)
	six, err := enc.Encode(sampleRecords())
	require.NoError(t, err)

	seven := []models.DrawRecord{draw(1, 10, 1, 2, 3, 4, 5, 6, 7)}
	_, err = enc.EncodeWith(seven, six.Scaler)
	assert.Error(t, err)
}

func TestNewTrainingPair(t *testing.T) {
	records := sampleRecords()
	m, err := NewEncoder(Seconds).Encode(records)
	require.NoError(t, err)

	pair, err := NewTrainingPair(m)
	require.NoError(t, err)

	xr, xc := pair.X.Dims()
	yr, yc := pair.Y.Dims()
	assert.Equal(t, len(records)-1, xr)
	assert.Equal(t, len(records)-1, yr)
	assert.Equal(t, len(records)-1, pair.Len())
	assert.Equal(t, xc, yc)

	for i := 0; i < yr-1; i++ {
		for j := 0; j < yc; j++ {
			assert.Equal(t, pair.X.At(i+1, j), pair.Y.At(i, j))
		}
	}
	for j := 0; j < yc; j++ {
		assert.Equal(t, m.Data.At(len(records)-1, j), pair.Y.At(yr-1, j))
		assert.Equal(t, m.Data.At(0, j), pair.X.At(0, j))
	}
}

func TestNewTrainingPairNeedsTwoRows(t *testing.T) {
	m, err := NewEncoder(Seconds).Encode(sampleRecords()[:1])
	require.NoError(t, err)

	_, err = NewTrainingPair(m)
	assert.ErrorIs(t, err, ErrInsufficientRows)
}

func TestRecordsIgnoresAuditColumns(t *testing.T) {
	date := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	rows := []models.DrawRow{
		{ID: 7, DrawDate: date, Jackpot: 100, Numbers: sql.NullString{String: "3,8,15", Valid: true}, CreatedAt: time.Now()},
		{ID: 9, DrawDate: date.AddDate(0, 0, 3), Jackpot: 200, Numbers: sql.NullString{String: "1,2,49", Valid: true}},
	}

	records, err := Records(rows)
	require.NoError(t, err)
	assert.Equal(t, []models.DrawRecord{
		{DrawDate: date, Jackpot: 100, Numbers: []int{3, 8, 15}},
		{DrawDate: date.AddDate(0, 0, 3), Jackpot: 200, Numbers: []int{1, 2, 49}},
	}, records)
}

func TestRecordsErrors(t *testing.T) {
	date := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		numbers sql.NullString
		want    error
	}{
		{name: "null", numbers: sql.NullString{}, want: ErrMissingNumbers},
		{name: "empty", numbers: sql.NullString{Valid: true}, want: ErrMissingNumbers},
		{name: "wrong delimiter", numbers: sql.NullString{String: "1;2;3", Valid: true}, want: ErrMalformedNumbers},
		{name: "whitespace", numbers: sql.NullString{String: "1, 2, 3", Valid: true}, want: ErrMalformedNumbers},
		{name: "non numeric", numbers: sql.NullString{String: "1,x,3", Valid: true}, want: ErrMalformedNumbers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Records([]models.DrawRow{{DrawDate: date, Numbers: tt.numbers}})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOldestFirst(t *testing.T) {
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.DrawRow{
		{ID: 3, DrawDate: base.AddDate(0, 0, 7)},
		{ID: 2, DrawDate: base.AddDate(0, 0, 3)},
		{ID: 1, DrawDate: base},
	}

	ordered := OldestFirst(rows)
	assert.Equal(t, int64(1), ordered[0].ID)
	assert.Equal(t, int64(2), ordered[1].ID)
	assert.Equal(t, int64(3), ordered[2].ID)
	// input untouched
	assert.Equal(t, int64(3), rows[0].ID)
}

func TestHasNumbers(t *testing.T) {
	assert.False(t, HasNumbers(nil))
	assert.False(t, HasNumbers([]models.DrawRow{{}, {}}))
	assert.True(t, HasNumbers([]models.DrawRow{{}, {Numbers: sql.NullString{String: "1", Valid: true}}}))
}

func TestOutputNumbers(t *testing.T) {
	m, err := NewEncoder(Seconds).Encode(sampleRecords())
	require.NoError(t, err)

	row := m.Row(2)
	scaled, err := OutputNumbers(row, m.NumberCount, nil)
	require.NoError(t, err)
	start, end := m.NumberSpan()
	assert.Equal(t, row[start:end], scaled)

	restored, err := OutputNumbers(row, m.NumberCount, m.Scaler)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{7, 14, 22, 30, 38, 49}, restored, 1e-9)

	_, err = OutputNumbers(row[:4], m.NumberCount, nil)
	assert.Error(t, err)
}

package features

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Alias1177/LottoPredictor/models"
)

// Delimiter joins the numbers of one draw in the store
const Delimiter = ","

var (
	ErrMissingNumbers   = errors.New("numbers field missing")
	ErrMalformedNumbers = errors.New("numbers field malformed")
	ErrRaggedNumbers    = errors.New("draws have differing number counts")
	ErrInsufficientRows = errors.New("not enough draws")
)

// IsDataError reports whether err comes from bad draw data rather than infrastructure
func IsDataError(err error) bool {
	return errors.Is(err, ErrMissingNumbers) ||
		errors.Is(err, ErrMalformedNumbers) ||
		errors.Is(err, ErrRaggedNumbers)
}

// ParseNumbers splits a delimiter-joined list of integers. Whitespace is not tolerated.
func ParseNumbers(raw string) ([]int, error) {
	if raw == "" {
		return nil, ErrMissingNumbers
	}
	parts := strings.Split(raw, Delimiter)
	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedNumbers, raw)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// HasNumbers reports whether at least one row carries a numbers field
func HasNumbers(rows []models.DrawRow) bool {
	for _, row := range rows {
		if row.Numbers.Valid {
			return true
		}
	}
	return false
}

// OldestFirst returns a copy of rows ordered by draw date ascending.
// Both drivers encode in this order.
func OldestFirst(rows []models.DrawRow) []models.DrawRow {
	ordered := make([]models.DrawRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DrawDate.Before(ordered[j].DrawDate)
	})
	return ordered
}

// Records parses store rows into draw records, keeping their order
func Records(rows []models.DrawRow) ([]models.DrawRecord, error) {
	records := make([]models.DrawRecord, 0, len(rows))
	for _, row := range rows {
		if !row.Numbers.Valid {
			return nil, fmt.Errorf("draw %s: %w", row.DrawDate.Format("2006-01-02"), ErrMissingNumbers)
		}
		numbers, err := ParseNumbers(row.Numbers.String)
		if err != nil {
			return nil, fmt.Errorf("draw %s: %w", row.DrawDate.Format("2006-01-02"), err)
		}
		records = append(records, models.DrawRecord{
			DrawDate: row.DrawDate,
			Jackpot:  row.Jackpot,
			Numbers:  numbers,
		})
	}
	return records, nil
}

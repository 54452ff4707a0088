package models

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// Draw sources for PredictedDraw
const (
	SourceModel     = "model"
	SourceFrequency = "frequency"
)

// DrawRow is one draw as returned by the store, before the numbers are parsed.
// ID and CreatedAt are audit columns and never reach the feature matrix.
type DrawRow struct {
	ID        int64          `db:"id"`
	DrawDate  time.Time      `db:"draw_date"`
	Jackpot   int64          `db:"jackpot"`
	Numbers   sql.NullString `db:"numbers"` // comma-joined, ascending
	CreatedAt time.Time      `db:"created_at"`
}

// DrawRecord is a historical draw with its numbers expanded
type DrawRecord struct {
	DrawDate time.Time `json:"draw_date"`
	Jackpot  int64     `json:"jackpot"`
	Numbers  []int     `json:"numbers"`
}

// ScrapedDraw is a published result as read from the results site
type ScrapedDraw struct {
	DrawDate  time.Time `json:"draw_date"`
	Numbers   []int     `json:"numbers"`
	BonusBall int       `json:"bonus_ball"`
	Jackpot   int64     `json:"jackpot"`
}

// PredictedDraw is the terminal output of a generation run
type PredictedDraw struct {
	Numbers     []int     `json:"numbers"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Empty reports whether no numbers were produced
func (p PredictedDraw) Empty() bool {
	return len(p.Numbers) == 0
}

// SavedNumbers is a draw a user kept for later
type SavedNumbers struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Numbers   []int     `json:"numbers"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

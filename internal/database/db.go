package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DB represents a database connection
type DB struct {
	*sqlx.DB
	includeBonus bool
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// IncludeBonus adds bonus balls to the aggregated numbers
	IncludeBonus bool
}

// ParamsFromConfig maps the store settings of cfg
func ParamsFromConfig(cfg *config.Config) ConnectionParams {
	return ConnectionParams{
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		DBName:       cfg.DBName,
		SSLMode:      cfg.DBSSLMode,
		IncludeBonus: cfg.DBIncludeBonus,
	}
}

// ConnString builds the lib/pq connection string
func (p ConnectionParams) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection and brings the schema up to date
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", params.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%s/%s: %w", params.Host, params.Port, params.DBName, err)
	}

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, includeBonus: params.IncludeBonus}, nil
}

// RecentDraws returns up to limit draws, most recent first. Numbers are
// comma-joined in ascending order; a draw without numbers has a NULL field.
func (db *DB) RecentDraws(ctx context.Context, limit int) ([]models.DrawRow, error) {
	var rows []models.DrawRow
	err := db.SelectContext(ctx, &rows, `
		SELECT
			r.id, r.draw_date, r.jackpot, r.created_at,
			string_agg(n.number::text, ',' ORDER BY n.number) AS numbers
		FROM lottery_results r
		LEFT JOIN lottery_numbers n
			ON n.result_id = r.id AND (NOT n.is_bonus OR $2)
		GROUP BY r.id
		ORDER BY r.draw_date DESC
		LIMIT $1
	`, limit, db.includeBonus)
	if err != nil {
		return nil, fmt.Errorf("query recent draws: %w", err)
	}
	return rows, nil
}

// HasDraw reports whether a result for drawDate is stored
func (db *DB) HasDraw(ctx context.Context, drawDate time.Time) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM lottery_results WHERE draw_date = $1)`,
		drawDate.Format(time.DateOnly))
	if err != nil {
		return false, fmt.Errorf("check draw %s: %w", drawDate.Format(time.DateOnly), err)
	}
	return exists, nil
}

// InsertDraw stores a draw with its numbers in one transaction. It reports
// false without error when the draw date is already stored.
func (db *DB) InsertDraw(ctx context.Context, draw models.ScrapedDraw) (bool, error) {
	date := draw.DrawDate.Format(time.DateOnly)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin insert %s: %w", date, err)
	}
	defer tx.Rollback()

	var resultID int64
	err = tx.GetContext(ctx, &resultID, `
		INSERT INTO lottery_results (draw_date, jackpot)
		VALUES ($1, $2)
		ON CONFLICT (draw_date) DO NOTHING
		RETURNING id
	`, date, draw.Jackpot)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", date, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO lottery_numbers (result_id, number, is_bonus) VALUES ($1, $2, $3)`)
	if err != nil {
		return false, fmt.Errorf("prepare numbers %s: %w", date, err)
	}
	defer stmt.Close()

	main := append([]int(nil), draw.Numbers...)
	sort.Ints(main)
	for _, n := range main {
		if _, err := stmt.ExecContext(ctx, resultID, n, false); err != nil {
			return false, fmt.Errorf("insert number %d for %s: %w", n, date, err)
		}
	}
	if draw.BonusBall > 0 {
		if _, err := stmt.ExecContext(ctx, resultID, draw.BonusBall, true); err != nil {
			return false, fmt.Errorf("insert bonus ball for %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s: %w", date, err)
	}
	return true, nil
}

// AllNumbers returns every stored number, following the bonus ball setting
func (db *DB) AllNumbers(ctx context.Context) ([]int, error) {
	var numbers []int
	err := db.SelectContext(ctx, &numbers,
		`SELECT number FROM lottery_numbers WHERE NOT is_bonus OR $1`, db.includeBonus)
	if err != nil {
		return nil, fmt.Errorf("query numbers: %w", err)
	}
	return numbers, nil
}

type savedNumbersRow struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	Numbers   pq.Int64Array `db:"numbers"`
	Source    string        `db:"source"`
	CreatedAt time.Time     `db:"created_at"`
}

// SavedNumbers returns the latest draw saved by userID, or models.ErrNotFound
func (db *DB) SavedNumbers(ctx context.Context, userID int64) (models.SavedNumbers, error) {
	var row savedNumbersRow
	err := db.GetContext(ctx, &row, `
		SELECT id, user_id, numbers, source, created_at
		FROM saved_numbers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedNumbers{}, fmt.Errorf("saved numbers for user %d: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return models.SavedNumbers{}, fmt.Errorf("query saved numbers for user %d: %w", userID, err)
	}

	numbers := make([]int, len(row.Numbers))
	for i, n := range row.Numbers {
		numbers[i] = int(n)
	}
	return models.SavedNumbers{
		ID:        row.ID,
		UserID:    row.UserID,
		Numbers:   numbers,
		Source:    row.Source,
		CreatedAt: row.CreatedAt,
	}, nil
}

// SaveNumbers keeps draw for userID and returns the stored record
func (db *DB) SaveNumbers(ctx context.Context, userID int64, draw models.PredictedDraw) (models.SavedNumbers, error) {
	numbers := make(pq.Int64Array, len(draw.Numbers))
	for i, n := range draw.Numbers {
		numbers[i] = int64(n)
	}

	var row savedNumbersRow
	err := db.GetContext(ctx, &row, `
		INSERT INTO saved_numbers (user_id, numbers, source)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, numbers, source, created_at
	`, userID, numbers, draw.Source)
	if err != nil {
		return models.SavedNumbers{}, fmt.Errorf("save numbers for user %d: %w", userID, err)
	}
	return models.SavedNumbers{
		ID:        row.ID,
		UserID:    row.UserID,
		Numbers:   append([]int(nil), draw.Numbers...),
		Source:    row.Source,
		CreatedAt: row.CreatedAt,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/Alias1177/LottoPredictor/internal/scraper"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, database.ParamsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	s, err := scraper.New(scraper.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize scraper: %w", err)
	}

	draws, err := s.Archive(ctx)
	if err != nil {
		return fmt.Errorf("scrape archive: %w", err)
	}

	var inserted, skipped, failed int
	for _, draw := range draws {
		ok, err := db.InsertDraw(ctx, draw)
		switch {
		case err != nil:
			log.Error().Err(err).Str("draw_date", draw.DrawDate.Format(time.DateOnly)).Msg("Failed to save draw")
			failed++
		case ok:
			inserted++
		default:
			skipped++
		}
	}

	log.Info().
		Int("scraped", len(draws)).
		Int("inserted", inserted).
		Int("already_stored", skipped).
		Int("failed", failed).
		Msg("Backfill complete")
	return nil
}

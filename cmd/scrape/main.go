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
		log.Fatal().Err(err).Msg("Latest scrape failed")
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

	draw, inserted, err := s.WaitForLatest(ctx, db)
	if err != nil {
		// the next scheduled run tries again
		log.Error().Err(err).Msg("Giving up on latest results")
		return nil
	}
	log.Info().
		Str("draw_date", draw.DrawDate.Format(time.DateOnly)).
		Bool("inserted", inserted).
		Msg("Latest scrape finished")
	return nil
}

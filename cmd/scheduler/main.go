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
	"github.com/Alias1177/LottoPredictor/internal/scheduler"
	"github.com/Alias1177/LottoPredictor/internal/scraper"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Scheduler failed")
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

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sched := scheduler.New(log.Logger, loc)
	job := scheduler.NewLatestScrapeJob(scheduler.LatestScrapeConfig{
		Log:     log.Logger,
		Context: ctx,
		Scraper: s,
		Sink:    db,
		// polling must finish before the next draw night
		Timeout: cfg.ScrapeRetryInterval*time.Duration(cfg.ScrapeMaxRetries+1) + time.Hour,
	})
	if err := sched.AddJob(cfg.ScrapeSchedule, job); err != nil {
		return fmt.Errorf("register scrape job: %w", err)
	}

	sched.Start()
	defer sched.Stop()
	log.Info().Str("schedule", cfg.ScrapeSchedule).Str("timezone", loc.String()).Msg("Scheduler started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/Alias1177/LottoPredictor/internal/training"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx := context.Background()
	db, err := database.New(ctx, database.ParamsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	opts, err := training.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid training options: %w", err)
	}
	log.Info().
		Int("limit", opts.Limit).
		Int("epochs", opts.Fit.Epochs).
		Int("batch_size", opts.Fit.BatchSize).
		Int("patience", opts.Fit.Patience).
		Int64("seed", opts.Seed).
		Str("model_path", opts.ModelPath).
		Msg("Starting training")

	report, err := training.NewDriver(db, opts).Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Float64("test_loss", report.TestLoss).
		Float64("test_accuracy", report.TestMAE).
		Int("epochs_run", len(report.Artifact.History.Loss)).
		Msg("Training complete")
	return nil
}

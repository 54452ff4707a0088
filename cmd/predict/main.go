package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/Alias1177/LottoPredictor/internal/prediction"
	"github.com/Alias1177/LottoPredictor/internal/regressor"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
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

	opts, err := prediction.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid prediction options: %w", err)
	}
	driver, err := prediction.NewDriver(db, regressor.NewLoader(cfg.ModelPath), opts,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return fmt.Errorf("invalid prediction options: %w", err)
	}

	draw, err := driver.PredictNext(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Predicted Numbers: %v\n", draw.Numbers)
	return nil
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/charts"
	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/frequency"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
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

	history, err := db.AllNumbers(ctx)
	if err != nil {
		return fmt.Errorf("load number history: %w", err)
	}

	opts := frequency.DefaultOptions()
	opts.Size = cfg.PredictDrawSize
	gen, err := frequency.NewGenerator(opts, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return fmt.Errorf("invalid generator options: %w", err)
	}
	draw := gen.Generate(history)

	counts := make(map[int]int)
	for _, f := range frequency.Frequencies(history) {
		counts[f.Number] = f.Count
	}
	chart := charts.DefaultChartConfig()
	chart.Title = "Number frequencies"
	chartPath := filepath.Join(filepath.Dir(cfg.LossChartPath), "frequencies.html")
	if err := charts.RenderFrequencies(counts, chart, chartPath); err != nil {
		log.Warn().Err(err).Msg("Failed to render frequency chart")
	}

	fmt.Printf("Generated Numbers: %v\n", draw.Numbers)
	return nil
}

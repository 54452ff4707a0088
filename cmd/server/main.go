package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/api"
	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/frequency"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/Alias1177/LottoPredictor/internal/prediction"
	"github.com/Alias1177/LottoPredictor/internal/regressor"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel)

	auth, err := api.NewAuthenticator(cfg.JWTSecret, log.Logger)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, database.ParamsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	genOpts := frequency.DefaultOptions()
	genOpts.Size = cfg.PredictDrawSize
	gen, err := frequency.NewGenerator(genOpts, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return fmt.Errorf("invalid generator options: %w", err)
	}

	predOpts, err := prediction.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid prediction options: %w", err)
	}
	predictor, err := prediction.NewDriver(db, regressor.NewLoader(cfg.ModelPath), predOpts,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return fmt.Errorf("invalid prediction options: %w", err)
	}

	server := api.New(api.Config{
		Port:    cfg.ServerPort,
		Log:     log.Logger,
		Handler: api.NewHandler(db, gen, predictor, db, log.Logger),
		Auth:    auth,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

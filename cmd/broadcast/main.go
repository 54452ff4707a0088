package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/database"
	"github.com/Alias1177/LottoPredictor/internal/notify"
	"github.com/Alias1177/LottoPredictor/internal/platform/logging"
	"github.com/Alias1177/LottoPredictor/internal/prediction"
	"github.com/Alias1177/LottoPredictor/internal/regressor"
	"github.com/rs/zerolog/log"
)

// Telegram allows 30 messages per second for bots
const sendDelay = 50 * time.Millisecond

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Broadcast failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN not set in environment")
	}
	bot, err := notify.NewBot(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("initialize Telegram bot: %w", err)
	}
	tg, err := notify.NewTelegram(bot, cfg.TelegramChatIDs, sendDelay)
	if err != nil {
		return fmt.Errorf("initialize notifier: %w", err)
	}

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
		return fmt.Errorf("prediction: %w", err)
	}
	if draw.Empty() {
		return errors.New("no prediction to broadcast")
	}

	res, err := tg.SendDraw(draw)
	if err != nil {
		return err
	}

	log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("Broadcast completed")
	fmt.Printf("Broadcast completed: %d sent, %d failed out of %d chats\n",
		res.Sent, res.Failed, len(cfg.TelegramChatIDs))
	return nil
}

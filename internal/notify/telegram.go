package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender delivers one Telegram message; *tgbotapi.BotAPI implements it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends predicted draws to a fixed set of chats
type Telegram struct {
	sender  Sender
	chatIDs []int64
	delay   time.Duration
	logger  zerolog.Logger
}

// Result summarises one broadcast
type Result struct {
	Sent   int
	Failed int
}

// NewTelegram creates a notifier. delay is the pause between messages;
// Telegram allows about 30 messages per second per bot.
func NewTelegram(sender Sender, chatIDs []int64, delay time.Duration) (*Telegram, error) {
	if sender == nil {
		return nil, errors.New("telegram: nil sender")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("telegram: no chat ids configured")
	}
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		delay:   delay,
		logger:  log.With().Str("component", "telegram").Logger(),
	}, nil
}

// NewBot connects to the Bot API with token
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return bot, nil
}

// FormatDraw renders a draw as a Markdown message
func FormatDraw(draw models.PredictedDraw) string {
	nums := make([]string, len(draw.Numbers))
	for i, n := range draw.Numbers {
		nums[i] = fmt.Sprintf("%d", n)
	}

	var b strings.Builder
	b.WriteString("🎱 *Next draw prediction*\n\n")
	fmt.Fprintf(&b, "*Numbers:* %s\n", strings.Join(nums, " - "))
	fmt.Fprintf(&b, "*Method:* %s\n", draw.Source)
	if !draw.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "*Generated:* %s\n", draw.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\n_For entertainment only._")
	return b.String()
}

// SendDraw sends draw to every chat. Individual failures are logged and
// counted; an error is returned only when nothing could be delivered.
func (t *Telegram) SendDraw(draw models.PredictedDraw) (Result, error) {
	if draw.Empty() {
		return Result{}, errors.New("telegram: empty draw")
	}
	text := FormatDraw(draw)

	var res Result
	var lastErr error
	for i, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := t.sender.Send(msg); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
			res.Failed++
			lastErr = err
		} else {
			t.logger.Info().Int64("chat_id", chatID).Msgf("Message sent [%d/%d]", i+1, len(t.chatIDs))
			res.Sent++
		}

		if t.delay > 0 && i < len(t.chatIDs)-1 {
			time.Sleep(t.delay)
		}
	}

	if res.Sent == 0 {
		return res, fmt.Errorf("telegram: no message delivered: %w", lastErr)
	}
	return res, nil
}

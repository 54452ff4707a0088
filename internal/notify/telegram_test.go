package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []tgbotapi.MessageConfig
	failOn map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.failOn[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func sampleDraw() models.PredictedDraw {
	return models.PredictedDraw{
		Numbers:     []int{3, 11, 17, 26, 38, 42, 49},
		Source:      models.SourceModel,
		GeneratedAt: time.Date(2024, 3, 16, 19, 0, 0, 0, time.UTC),
	}
}

func TestFormatDraw(t *testing.T) {
	text := FormatDraw(sampleDraw())
	assert.Contains(t, text, "3 - 11 - 17 - 26 - 38 - 42 - 49")
	assert.Contains(t, text, "model")
	assert.Contains(t, text, "2024-03-16 19:00 UTC")
}

func TestSendDraw(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{2: true}}
	tg, err := NewTelegram(sender, []int64{1, 2, 3}, 0)
	require.NoError(t, err)

	res, err := tg.SendDraw(sampleDraw())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2, Failed: 1}, res)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, int64(1), sender.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, sender.sent[0].ParseMode)
}

func TestSendDrawAllFail(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{1: true}}
	tg, err := NewTelegram(sender, []int64{1}, 0)
	require.NoError(t, err)

	res, err := tg.SendDraw(sampleDraw())
	assert.Error(t, err)
	assert.Equal(t, 1, res.Failed)
}

func TestSendDrawRejectsEmpty(t *testing.T) {
	tg, err := NewTelegram(&fakeSender{}, []int64{1}, 0)
	require.NoError(t, err)

	_, err = tg.SendDraw(models.PredictedDraw{})
	assert.Error(t, err)
}

func TestNewTelegramValidates(t *testing.T) {
	_, err := NewTelegram(nil, []int64{1}, 0)
	assert.Error(t, err)
	_, err = NewTelegram(&fakeSender{}, nil, 0)
	assert.Error(t, err)
	_, err = NewBot("")
	assert.Error(t, err)
}

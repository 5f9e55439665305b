package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender is the minimal send capability the core hands out: deliver text to
// a chat, fire-and-forget.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramSender delivers messages through the Bot API behind a token-bucket
// limiter (Telegram allows ~30 msg/s bot-wide).
type TelegramSender struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewTelegramSender(api *tgbotapi.BotAPI, logger *zerolog.Logger) *TelegramSender {
	return &TelegramSender{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		logger:  logger,
	}
}

// Send delivers text to the chat. Blocks on the rate limiter; returns the
// API error as-is so callers can log and drop it.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	s.logger.Debug().Int64("chat_id", chatID).Msg("Message sent")
	return nil
}

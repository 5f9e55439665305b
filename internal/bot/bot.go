package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/M5rkn/NailsBot/internal/cache"
	"github.com/M5rkn/NailsBot/internal/config"
	"github.com/M5rkn/NailsBot/internal/events"
	"github.com/M5rkn/NailsBot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// pendingBooking is the in-memory selection a client has made so far in the
// booking dialog. It is deliberately not persisted: a restart just restarts
// the dialog.
type pendingBooking struct {
	ServiceID *int64
	Date      string
}

// Bot routes Telegram updates to the booking core. It is a thin I/O wrapper:
// all invariants live in the store and the reminder scheduler.
type Bot struct {
	api       *tgbotapi.BotAPI
	store     Store
	reminders ReminderPlanner
	bus       EventPublisher
	cache     *cache.AvailabilityCache
	cfg       *config.Config
	loc       *time.Location
	grid      []string
	logger    *zerolog.Logger

	mu      sync.Mutex
	pending map[int64]*pendingBooking
}

func New(
	api *tgbotapi.BotAPI,
	store Store,
	reminders ReminderPlanner,
	bus EventPublisher,
	availability *cache.AvailabilityCache,
	cfg *config.Config,
	loc *time.Location,
	logger *zerolog.Logger,
) (*Bot, error) {
	grid, err := models.SlotGrid(cfg.Workday.Start, cfg.Workday.End)
	if err != nil {
		return nil, err
	}
	b := &Bot{
		api:       api,
		store:     store,
		reminders: reminders,
		bus:       bus,
		cache:     availability,
		cfg:       cfg,
		loc:       loc,
		grid:      grid,
		logger:    logger,
		pending:   make(map[int64]*pendingBooking),
	}
	return b, nil
}

// SubscribeEvents registers the announcement handlers: new and cancelled
// bookings are posted to the schedule channel and to the admin chat.
func (b *Bot) SubscribeEvents(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, func(e events.Event) {
		booking, ok := e.Payload.(*models.Booking)
		if !ok {
			return
		}
		b.announce("🆕 Новая запись: " + booking.Date + " " + booking.Time + " — " + booking.Name)
	})
	bus.Subscribe(events.BookingCancelled, func(e events.Event) {
		booking, ok := e.Payload.(*models.Booking)
		if !ok {
			return
		}
		b.announce("❌ Отмена записи: " + booking.Date + " " + booking.Time + " — " + booking.Name)
	})
}

func (b *Bot) announce(text string) {
	if b.cfg.Telegram.ScheduleChannelID != 0 {
		b.send(b.cfg.Telegram.ScheduleChannelID, text)
	}
	if b.cfg.Telegram.AdminID != 0 {
		b.send(b.cfg.Telegram.AdminID, text)
	}
}

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.api.Self.UserName).Msg("Bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if b.isAdmin(userID) {
		if handled := b.handleAdminCommand(ctx, msg); handled {
			return
		}
	}

	switch msg.Command() {
	case "start":
		b.send(msg.Chat.ID, startMessage)
	case "book":
		b.cmdBook(ctx, msg)
	case "my":
		b.cmdMyBooking(ctx, msg)
	case "cancel":
		b.cmdCancel(ctx, msg)
	case "prices":
		b.cmdPrices(ctx, msg)
	default:
		b.send(msg.Chat.ID, "Неизвестная команда. Попробуйте /book, /my, /cancel или /prices.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Always answer to clear the spinner; errors here are cosmetic.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Callback ack failed")
	}

	parts := strings.Split(cb.Data, ":")
	switch parts[0] {
	case "svc":
		b.cbService(ctx, cb, parts)
	case "bdate":
		b.cbDate(ctx, cb, parts)
	case "bslot":
		b.cbSlot(ctx, cb, parts)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.cfg.Telegram.AdminID != 0 && userID == b.cfg.Telegram.AdminID
}

// isSubscribed checks the required-channel gate. A zero channel id disables
// the gate; lookup failures fail open so a Telegram hiccup cannot block
// booking.
func (b *Bot) isSubscribed(userID int64) bool {
	if b.cfg.Telegram.ChannelID == 0 {
		return true
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: b.cfg.Telegram.ChannelID,
			UserID: userID,
		},
	})
	if err != nil {
		b.logger.Warn().Err(err).Int64("user_id", userID).Msg("Subscription check failed")
		return true
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

func (b *Bot) setPending(userID int64, p *pendingBooking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p == nil {
		delete(b.pending, userID)
		return
	}
	b.pending[userID] = p
}

func (b *Bot) getPending(userID int64) *pendingBooking {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[userID]
}

// freeSlots lists free slot times for a date through the availability cache.
func (b *Bot) freeSlots(ctx context.Context, date string) ([]string, error) {
	if times, ok := b.cache.GetFreeSlots(ctx, date); ok {
		return times, nil
	}
	times, err := b.store.ListFreeSlots(ctx, date)
	if err != nil {
		return nil, err
	}
	b.cache.SetFreeSlots(ctx, date, times)
	return times, nil
}

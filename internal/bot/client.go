package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/events"
	"github.com/M5rkn/NailsBot/internal/metrics"
	"github.com/M5rkn/NailsBot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// bookingHorizonDays bounds how far ahead the date picker looks.
const bookingHorizonDays = 30

// cmdBook starts the booking dialog: service picker first, then date, then
// slot. Gated behind the required channel subscription.
func (b *Bot) cmdBook(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isSubscribed(msg.From.ID) {
		b.send(msg.Chat.ID, subscribeMessage(b.cfg.Telegram.ChannelLink))
		return
	}

	if existing, err := b.store.GetActiveBookingByClient(ctx, msg.From.ID); err == nil && existing != nil {
		b.send(msg.Chat.ID, alreadyBookedMessage(existing))
		return
	}

	services, err := b.store.ListServices(ctx, true)
	if err != nil {
		b.logger.Error().Err(err).Msg("List services failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if len(services) == 0 {
		// No catalog yet: book without a service, straight to dates.
		b.setPending(msg.From.ID, &pendingBooking{})
		b.showDates(ctx, msg.Chat.ID)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range services {
		label := fmt.Sprintf("%s — %d ₽ (%d мин)", s.Name, s.Price, s.DurationMinutes)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "svc:"+strconv.FormatInt(s.ID, 10)),
		))
	}
	b.sendWithKeyboard(msg.Chat.ID, "Выберите услугу:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) cbService(ctx context.Context, cb *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) != 2 {
		return
	}
	serviceID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	if _, err := b.store.GetService(ctx, serviceID); err != nil {
		b.send(cb.Message.Chat.ID, "Услуга больше недоступна, начните заново: /book")
		return
	}

	b.setPending(cb.From.ID, &pendingBooking{ServiceID: &serviceID})
	b.showDates(ctx, cb.Message.Chat.ID)
}

func (b *Bot) showDates(ctx context.Context, chatID int64) {
	now := time.Now().In(b.loc)
	from := now.Format(models.DateLayout)
	to := now.AddDate(0, 0, bookingHorizonDays).Format(models.DateLayout)

	dates, err := b.store.ListAvailableDates(ctx, from, to)
	if err != nil {
		b.logger.Error().Err(err).Msg("List available dates failed")
		b.send(chatID, errInternalMessage)
		return
	}
	if len(dates) == 0 {
		b.send(chatID, "Свободных дат пока нет. Загляните позже 💅")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range dates {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(formatDate(d), "bdate:"+d),
		))
	}
	b.sendWithKeyboard(chatID, "Выберите дату:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) cbDate(ctx context.Context, cb *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) != 2 || !models.ValidDate(parts[1]) {
		return
	}
	date := parts[1]

	p := b.getPending(cb.From.ID)
	if p == nil {
		b.send(cb.Message.Chat.ID, "Сессия записи истекла, начните заново: /book")
		return
	}
	p.Date = date
	b.setPending(cb.From.ID, p)

	var times []string
	var err error
	if p.ServiceID != nil {
		svc, serr := b.store.GetService(ctx, *p.ServiceID)
		if serr != nil {
			b.send(cb.Message.Chat.ID, "Услуга больше недоступна, начните заново: /book")
			return
		}
		// Service duration filters out start times whose slot run is broken.
		times, err = b.store.ListFreeSlotsFor(ctx, date, svc.DurationMinutes)
	} else {
		times, err = b.freeSlots(ctx, date)
	}
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("List free slots failed")
		b.send(cb.Message.Chat.ID, errInternalMessage)
		return
	}
	if len(times) == 0 {
		b.send(cb.Message.Chat.ID, "На эту дату свободного времени нет, выберите другую: /book")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, t := range times {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t, "bslot:"+date+":"+t))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	b.sendWithKeyboard(cb.Message.Chat.ID, "Выберите время на "+formatDate(date)+":", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) cbSlot(ctx context.Context, cb *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) != 3 || !models.ValidDate(parts[1]) || !models.ValidSlotTime(parts[2]) {
		return
	}
	date, slotTime := parts[1], parts[2]

	p := b.getPending(cb.From.ID)
	if p == nil || p.Date != date {
		b.send(cb.Message.Chat.ID, "Сессия записи истекла, начните заново: /book")
		return
	}

	name := strings.TrimSpace(cb.From.FirstName + " " + cb.From.LastName)
	if cb.From.UserName != "" {
		name += " (@" + cb.From.UserName + ")"
	}

	booking, err := b.store.CreateBooking(ctx, database.CreateBookingParams{
		ClientID:  cb.From.ID,
		Date:      date,
		Time:      slotTime,
		ServiceID: p.ServiceID,
		Name:      name,
		Now:       time.Now().In(b.loc),
	})
	if err != nil {
		if r, ok := database.AsRejection(err); ok {
			metrics.IncBookingRejected(string(r.Kind))
			b.send(cb.Message.Chat.ID, rejectionMessage(r))
			return
		}
		b.logger.Error().Err(err).Int64("client_id", cb.From.ID).Msg("Create booking failed")
		b.send(cb.Message.Chat.ID, errInternalMessage)
		return
	}
	b.setPending(cb.From.ID, nil)
	metrics.IncBookingCreated()

	if err := b.reminders.PlanForBooking(ctx, booking); err != nil {
		// The booking stands either way; reminders are best-effort.
		b.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Plan reminder failed")
	}
	b.cache.InvalidateDate(ctx, date)
	b.bus.Publish(events.Event{Type: events.BookingCreated, Payload: booking})

	b.send(cb.Message.Chat.ID, confirmedMessage(booking))
}

func (b *Bot) cmdMyBooking(ctx context.Context, msg *tgbotapi.Message) {
	booking, err := b.store.GetActiveBookingByClient(ctx, msg.From.ID)
	if err == database.ErrNotFound {
		b.send(msg.Chat.ID, "У вас нет активной записи. Записаться: /book")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("client_id", msg.From.ID).Msg("Get booking failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	b.send(msg.Chat.ID, myBookingMessage(booking))
}

func (b *Bot) cmdCancel(ctx context.Context, msg *tgbotapi.Message) {
	booking, err := b.store.CancelBookingByClient(ctx, msg.From.ID)
	if err == database.ErrNotFound {
		b.send(msg.Chat.ID, "У вас нет активной записи, отменять нечего.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("client_id", msg.From.ID).Msg("Cancel booking failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	metrics.IncBookingCancelled("client")

	if err := b.reminders.DeleteForBooking(ctx, booking); err != nil {
		b.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Delete reminder failed")
	}
	b.cache.InvalidateDate(ctx, booking.Date)
	b.bus.Publish(events.Event{Type: events.BookingCancelled, Payload: booking})

	b.send(msg.Chat.ID, "Запись на "+formatDate(booking.Date)+" "+booking.Time+" отменена.")
}

func (b *Bot) cmdPrices(ctx context.Context, msg *tgbotapi.Message) {
	services, err := b.store.ListServices(ctx, true)
	if err != nil {
		b.logger.Error().Err(err).Msg("List services failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if len(services) == 0 {
		b.send(msg.Chat.ID, "Прайс пока пуст.")
		return
	}
	var sb strings.Builder
	sb.WriteString("💅 Прайс-лист:\n\n")
	for _, s := range services {
		fmt.Fprintf(&sb, "• %s — %d ₽, %d мин\n", s.Name, s.Price, s.DurationMinutes)
	}
	b.send(msg.Chat.ID, sb.String())
}

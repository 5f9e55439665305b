package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/M5rkn/NailsBot/internal/audit"
	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/events"
	"github.com/M5rkn/NailsBot/internal/metrics"
	"github.com/M5rkn/NailsBot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const adminHelpMessage = `Команды администратора:

/open ГГГГ-ММ-ДД — открыть день (слоты по сетке)
/close ГГГГ-ММ-ДД — закрыть день
/reopen ГГГГ-ММ-ДД — снова открыть день
/addslot ГГГГ-ММ-ДД ЧЧ:ММ — добавить слот
/delslot ГГГГ-ММ-ДД ЧЧ:ММ — удалить свободный слот
/day ГГГГ-ММ-ДД — записи на день
/dates — дни со слотами на месяц вперёд
/cancelid N — отменить запись по номеру
/export ГГГГ-ММ-ДД — выгрузка дня в Excel
/addservice Название;Цена;Минуты — добавить услугу
/services — все услуги
/togglesvc N — скрыть/показать услугу`

// handleAdminCommand dispatches admin-only commands. Returns false for
// commands shared with clients so the regular handler picks them up.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "admin":
		b.send(msg.Chat.ID, adminHelpMessage)
	case "open":
		b.adminOpenDay(ctx, msg, args)
	case "close":
		b.adminSetClosed(ctx, msg, args, true)
	case "reopen":
		b.adminSetClosed(ctx, msg, args, false)
	case "addslot":
		b.adminAddSlot(ctx, msg, args)
	case "delslot":
		b.adminDeleteSlot(ctx, msg, args)
	case "day":
		b.adminDay(ctx, msg, args)
	case "dates":
		b.adminDates(ctx, msg)
	case "cancelid":
		b.adminCancelByID(ctx, msg, args)
	case "export":
		b.adminExport(ctx, msg, args)
	case "addservice":
		b.adminAddService(ctx, msg)
	case "services":
		b.adminServices(ctx, msg)
	case "togglesvc":
		b.adminToggleService(ctx, msg, args)
	default:
		return false
	}
	return true
}

func (b *Bot) adminOpenDay(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 || !models.ValidDate(args[0]) {
		b.send(msg.Chat.ID, "Формат: /open ГГГГ-ММ-ДД")
		return
	}
	date := args[0]

	created, err := b.store.AddDaySlots(ctx, date, b.grid)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("Open day failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	b.cache.InvalidateDate(ctx, date)
	b.bus.Publish(events.Event{Type: events.DayChanged, Payload: date})
	b.send(msg.Chat.ID, fmt.Sprintf("День %s открыт, добавлено слотов: %d.", formatDate(date), created))
}

func (b *Bot) adminSetClosed(ctx context.Context, msg *tgbotapi.Message, args []string, closed bool) {
	if len(args) != 1 || !models.ValidDate(args[0]) {
		b.send(msg.Chat.ID, "Формат: /close ГГГГ-ММ-ДД")
		return
	}
	date := args[0]

	if err := b.store.SetDayClosed(ctx, date, closed); err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("Set day closed failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	b.cache.InvalidateDate(ctx, date)
	b.bus.Publish(events.Event{Type: events.DayChanged, Payload: date})
	if closed {
		b.send(msg.Chat.ID, "День "+formatDate(date)+" закрыт для записи.")
	} else {
		b.send(msg.Chat.ID, "День "+formatDate(date)+" снова открыт.")
	}
}

func (b *Bot) adminAddSlot(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 2 || !models.ValidDate(args[0]) || !models.ValidSlotTime(args[1]) {
		b.send(msg.Chat.ID, "Формат: /addslot ГГГГ-ММ-ДД ЧЧ:ММ (шаг 30 минут)")
		return
	}
	date, slotTime := args[0], args[1]

	created, err := b.store.AddSlot(ctx, date, slotTime)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Str("time", slotTime).Msg("Add slot failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if !created {
		b.send(msg.Chat.ID, "Слот "+slotTime+" уже существует или день закрыт.")
		return
	}
	b.cache.InvalidateDate(ctx, date)
	b.bus.Publish(events.Event{Type: events.DayChanged, Payload: date})
	b.send(msg.Chat.ID, "Слот "+formatDate(date)+" "+slotTime+" добавлен.")
}

func (b *Bot) adminDeleteSlot(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 2 || !models.ValidDate(args[0]) || !models.ValidSlotTime(args[1]) {
		b.send(msg.Chat.ID, "Формат: /delslot ГГГГ-ММ-ДД ЧЧ:ММ")
		return
	}
	date, slotTime := args[0], args[1]

	deleted, err := b.store.DeleteSlot(ctx, date, slotTime)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Str("time", slotTime).Msg("Delete slot failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if !deleted {
		b.send(msg.Chat.ID, "Слот не удалён: не существует или занят. Сначала отмените запись (/cancelid).")
		return
	}
	b.cache.InvalidateDate(ctx, date)
	b.bus.Publish(events.Event{Type: events.DayChanged, Payload: date})
	b.send(msg.Chat.ID, "Слот "+formatDate(date)+" "+slotTime+" удалён.")
}

func (b *Bot) adminDay(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 || !models.ValidDate(args[0]) {
		b.send(msg.Chat.ID, "Формат: /day ГГГГ-ММ-ДД")
		return
	}
	date := args[0]

	bookings, err := b.store.ListActiveBookingsByDate(ctx, date)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("List bookings failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	free, err := b.store.ListFreeSlots(ctx, date)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("List free slots failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s\n\nЗаписи (%d):\n", formatDate(date), len(bookings))
	if len(bookings) == 0 {
		sb.WriteString("— нет\n")
	}
	for _, bk := range bookings {
		fmt.Fprintf(&sb, "#%d %s — %s", bk.ID, bk.Time, bk.Name)
		if bk.Phone != "" {
			sb.WriteString(" " + bk.Phone)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nСвободно: %s", strings.Join(free, ", "))
	if len(free) == 0 {
		sb.WriteString("—")
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) adminDates(ctx context.Context, msg *tgbotapi.Message) {
	now := time.Now().In(b.loc)
	from := now.Format(models.DateLayout)
	to := now.AddDate(0, 0, bookingHorizonDays).Format(models.DateLayout)

	dates, err := b.store.ListDatesWithSlots(ctx, from, to)
	if err != nil {
		b.logger.Error().Err(err).Msg("List dates failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if len(dates) == 0 {
		b.send(msg.Chat.ID, "Слотов впереди нет. Откройте день: /open ГГГГ-ММ-ДД")
		return
	}
	var sb strings.Builder
	sb.WriteString("Дни со слотами:\n")
	for _, d := range dates {
		sb.WriteString("• " + formatDate(d) + "\n")
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) adminCancelByID(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 {
		b.send(msg.Chat.ID, "Формат: /cancelid N")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.send(msg.Chat.ID, "Формат: /cancelid N")
		return
	}

	booking, err := b.store.CancelBooking(ctx, id)
	if err == database.ErrNotFound {
		b.send(msg.Chat.ID, "Активной записи с таким номером нет.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("booking_id", id).Msg("Admin cancel failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	metrics.IncBookingCancelled("admin")

	if err := b.reminders.DeleteForBooking(ctx, booking); err != nil {
		b.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Delete reminder failed")
	}
	b.cache.InvalidateDate(ctx, booking.Date)
	b.bus.Publish(events.Event{Type: events.BookingCancelled, Payload: booking})

	// The client learns about an admin cancellation right away.
	b.send(booking.ClientID, "К сожалению, ваша запись на "+formatDate(booking.Date)+" "+booking.Time+" отменена мастером. Выбрать другое время: /book")
	b.send(msg.Chat.ID, fmt.Sprintf("Запись #%d отменена, слоты освобождены.", booking.ID))
}

func (b *Bot) adminExport(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 || !models.ValidDate(args[0]) {
		b.send(msg.Chat.ID, "Формат: /export ГГГГ-ММ-ДД")
		return
	}
	date := args[0]

	bookings, err := b.store.ListActiveBookingsByDate(ctx, date)
	if err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("List bookings failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	services, err := b.store.ListServices(ctx, false)
	if err != nil {
		b.logger.Error().Err(err).Msg("List services failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	byID := make(map[int64]models.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}

	var buf bytes.Buffer
	if err := audit.WriteBookingsXLSX(&buf, date, bookings, byID); err != nil {
		b.logger.Error().Err(err).Str("date", date).Msg("Export failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "bookings_" + date + ".xlsx",
		Bytes: buf.Bytes(),
	})
	doc.Caption = "Записи на " + formatDate(date)
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error().Err(err).Msg("Send export failed")
	}
}

func (b *Bot) adminAddService(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.SplitN(msg.CommandArguments(), ";", 3)
	if len(parts) != 3 {
		b.send(msg.Chat.ID, "Формат: /addservice Название;Цена;Минуты")
		return
	}
	name := strings.TrimSpace(parts[0])
	price, errP := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	duration, errD := strconv.Atoi(strings.TrimSpace(parts[2]))
	if name == "" || errP != nil || errD != nil || price < 0 || duration <= 0 {
		b.send(msg.Chat.ID, "Формат: /addservice Название;Цена;Минуты")
		return
	}

	svc := &models.Service{Name: name, Price: price, DurationMinutes: duration, IsActive: true}
	if err := b.store.CreateService(ctx, svc); err != nil {
		b.logger.Error().Err(err).Str("name", name).Msg("Create service failed")
		b.send(msg.Chat.ID, "Не удалось добавить услугу (возможно, имя уже занято).")
		return
	}
	b.send(msg.Chat.ID, fmt.Sprintf("Услуга #%d «%s» добавлена: %d ₽, %d мин (%d слот(а)).",
		svc.ID, svc.Name, svc.Price, svc.DurationMinutes, svc.SlotsRequired()))
}

func (b *Bot) adminServices(ctx context.Context, msg *tgbotapi.Message) {
	services, err := b.store.ListServices(ctx, false)
	if err != nil {
		b.logger.Error().Err(err).Msg("List services failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if len(services) == 0 {
		b.send(msg.Chat.ID, "Услуг пока нет. Добавить: /addservice Название;Цена;Минуты")
		return
	}
	var sb strings.Builder
	sb.WriteString("Услуги:\n")
	for _, s := range services {
		mark := "✅"
		if !s.IsActive {
			mark = "🚫"
		}
		fmt.Fprintf(&sb, "%s #%d %s — %d ₽, %d мин\n", mark, s.ID, s.Name, s.Price, s.DurationMinutes)
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) adminToggleService(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 {
		b.send(msg.Chat.ID, "Формат: /togglesvc N")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.send(msg.Chat.ID, "Формат: /togglesvc N")
		return
	}

	svc, err := b.store.GetService(ctx, id)
	if err == database.ErrNotFound {
		b.send(msg.Chat.ID, "Услуги с таким номером нет.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("service_id", id).Msg("Get service failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}

	if err := b.store.SetServiceActive(ctx, id, !svc.IsActive); err != nil {
		b.logger.Error().Err(err).Int64("service_id", id).Msg("Toggle service failed")
		b.send(msg.Chat.ID, errInternalMessage)
		return
	}
	if svc.IsActive {
		b.send(msg.Chat.ID, "Услуга «"+svc.Name+"» скрыта из записи.")
	} else {
		b.send(msg.Chat.ID, "Услуга «"+svc.Name+"» снова доступна для записи.")
	}
}

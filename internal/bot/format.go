package bot

import (
	"fmt"
	"time"

	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/models"
)

const startMessage = `Привет! Это бот записи в студию маникюра 💅

/book — записаться
/my — моя запись
/cancel — отменить запись
/prices — прайс-лист`

const errInternalMessage = "Что-то пошло не так, попробуйте ещё раз чуть позже."

var weekdayNames = [...]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}

// formatDate renders a stored date with a short Russian weekday suffix.
func formatDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s (%s)", t.Format("02.01.2006"), weekdayNames[t.Weekday()])
}

func subscribeMessage(channelLink string) string {
	msg := "Для записи подпишитесь на наш канал"
	if channelLink != "" {
		msg += ": " + channelLink
	}
	return msg + "\n\nПосле подписки снова отправьте /book."
}

func confirmedMessage(b *models.Booking) string {
	return fmt.Sprintf("✅ Вы записаны на %s в %s.\nЗа сутки придёт напоминание. Ждём вас!", formatDate(b.Date), b.Time)
}

func alreadyBookedMessage(b *models.Booking) string {
	return fmt.Sprintf("У вас уже есть запись на %s в %s.\nСначала отмените её: /cancel", formatDate(b.Date), b.Time)
}

func myBookingMessage(b *models.Booking) string {
	return fmt.Sprintf("Ваша запись: %s в %s.\nОтменить: /cancel", formatDate(b.Date), b.Time)
}

// rejectionMessage maps a business refusal to the client-facing text.
func rejectionMessage(r *database.Rejection) string {
	switch r.Kind {
	case database.RejectClientAlreadyBooked:
		return "У вас уже есть активная запись. Сначала отмените её: /cancel"
	case database.RejectDayUnavailable:
		return "Этот день недоступен для записи, выберите другой: /book"
	case database.RejectSlotMissing, database.RejectSlotTaken:
		if r.SlotTime != "" {
			return "Время " + r.SlotTime + " уже занято, выберите другое: /book"
		}
		return "Это время уже занято, выберите другое: /book"
	}
	return errInternalMessage
}

package reminders

import (
	"context"

	"github.com/M5rkn/NailsBot/internal/models"
)

// BookingStore is the slice of the storage layer the scheduler needs. The
// persisted reminder fields on bookings are the source of truth; the
// in-memory timer registry is only a cache over them.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	SetBookingReminder(ctx context.Context, bookingID int64, jobID, remindAt string) error
	ClearBookingReminder(ctx context.Context, bookingID int64) error
	// MarkReminderSent must be idempotent: it returns false when the flag
	// was already set by a concurrent fire.
	MarkReminderSent(ctx context.Context, bookingID int64) (bool, error)
	ListPendingReminders(ctx context.Context) ([]models.Booking, error)
}

// Notifier delivers a text message to a client chat. Delivery is
// best-effort: the scheduler logs failures and never retries.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

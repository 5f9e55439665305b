package bot

import (
	"context"

	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/events"
	"github.com/M5rkn/NailsBot/internal/models"
)

// Store is the slice of the storage layer the dialogs call. Every Rejection
// kind coming back from it is a user-facing message, never a crash.
type Store interface {
	// Calendar / slots.
	SetDayClosed(ctx context.Context, date string, closed bool) error
	AddSlot(ctx context.Context, date, slotTime string) (bool, error)
	AddDaySlots(ctx context.Context, date string, times []string) (int, error)
	DeleteSlot(ctx context.Context, date, slotTime string) (bool, error)
	ListFreeSlots(ctx context.Context, date string) ([]string, error)
	ListFreeSlotsFor(ctx context.Context, date string, durationMinutes int) ([]string, error)
	ListAvailableDates(ctx context.Context, from, to string) ([]string, error)
	ListDatesWithSlots(ctx context.Context, from, to string) ([]string, error)

	// Catalog.
	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	SetServiceActive(ctx context.Context, id int64, active bool) error

	// Bookings.
	CreateBooking(ctx context.Context, p database.CreateBookingParams) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	CancelBookingByClient(ctx context.Context, clientID int64) (*models.Booking, error)
	GetActiveBookingByClient(ctx context.Context, clientID int64) (*models.Booking, error)
	ListActiveBookingsByDate(ctx context.Context, date string) ([]models.Booking, error)
}

// ReminderPlanner is the scheduler surface the dialogs drive: plan on every
// successful create, delete on every cancellation.
type ReminderPlanner interface {
	PlanForBooking(ctx context.Context, b *models.Booking) error
	DeleteForBooking(ctx context.Context, b *models.Booking) error
}

// EventPublisher fans booking lifecycle events out to the announcement
// handlers.
type EventPublisher interface {
	Publish(event events.Event)
}

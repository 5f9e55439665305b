package models

import (
	"fmt"
	"time"
)

// Layouts used everywhere in persisted state. All values are naive local
// datetimes in the single configured salon timezone.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// SlotStep is the fixed slot grid granularity.
const SlotStep = 30 * time.Minute

// Booking statuses. A booking is created active and can only move to
// cancelled, once.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// WorkingDay marks a date as open (or explicitly closed) for booking.
type WorkingDay struct {
	Date     string
	IsClosed bool
}

// Slot is a single 30-minute cell on a working day. BookingID is a weak
// back-reference: the booking owns its slots, never the other way around.
type Slot struct {
	ID        int64
	Date      string
	Time      string
	IsBooked  bool
	BookingID *int64
}

// Service is a catalog entry: a named offering with a price and a duration
// that maps to a count of contiguous slots.
type Service struct {
	ID              int64
	Name            string
	Price           int64
	DurationMinutes int
	IsActive        bool
}

// SlotsRequired returns how many grid slots the service consumes.
func (s *Service) SlotsRequired() int {
	return SlotsRequired(s.DurationMinutes)
}

// Booking is an appointment reservation. ReminderJobID/RemindAt/RemindSent
// carry enough state to rebuild reminder timers after a restart.
type Booking struct {
	ID            int64
	ClientID      int64
	Date          string
	Time          string
	ServiceID     *int64
	Name          string
	Phone         string
	Status        string
	CreatedAt     string
	ReminderJobID *string
	RemindAt      *string
	RemindSent    bool
}

// IsActive reports whether the booking still holds its slots.
func (b *Booking) IsActive() bool {
	return b.Status == StatusActive
}

// AppointmentAt parses the booking's date and time in the given location.
func (b *Booking) AppointmentAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, b.Date+" "+b.Time, loc)
}

// RemindAtIn parses the persisted remind_at value in the given location.
// Returns false if no reminder is stored.
func (b *Booking) RemindAtIn(loc *time.Location) (time.Time, bool, error) {
	if b.RemindAt == nil || *b.RemindAt == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, *b.RemindAt, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse remind_at %q: %w", *b.RemindAt, err)
	}
	return t, true, nil
}

// SlotsRequired returns ceil(durationMinutes/30), at least one slot.
func SlotsRequired(durationMinutes int) int {
	if durationMinutes <= 0 {
		return 1
	}
	step := int(SlotStep.Minutes())
	return (durationMinutes + step - 1) / step
}

// RequiredSlotTimes returns the ordered half-hour slot times a booking
// starting at start must hold to cover durationMinutes. The sequence is
// truncated so it never crosses midnight: a service booked late enough in
// the day reserves only the slots that fit before 23:59.
func RequiredSlotTimes(start string, durationMinutes int) ([]string, error) {
	t, err := time.Parse(TimeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse slot time %q: %w", start, err)
	}

	count := SlotsRequired(durationMinutes)
	times := make([]string, 0, count)
	day := t.Day()
	for i := 0; i < count; i++ {
		if t.Day() != day {
			break
		}
		times = append(times, t.Format(TimeLayout))
		t = t.Add(SlotStep)
	}
	return times, nil
}

// SlotGrid returns every slot time from start to end (exclusive) on the
// 30-minute grid. Used by the admin bulk day-opening flow.
func SlotGrid(start, end string) ([]string, error) {
	from, err := time.Parse(TimeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse grid start %q: %w", start, err)
	}
	to, err := time.Parse(TimeLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse grid end %q: %w", end, err)
	}

	var times []string
	for t := from; t.Before(to); t = t.Add(SlotStep) {
		times = append(times, t.Format(TimeLayout))
	}
	return times, nil
}

// ValidDate reports whether s is a well-formed calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidSlotTime reports whether s is a well-formed half-hour-aligned time.
func ValidSlotTime(s string) bool {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return false
	}
	return t.Minute()%30 == 0
}

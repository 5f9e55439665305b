package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/metrics"
	"github.com/M5rkn/NailsBot/internal/models"
	"github.com/rs/zerolog"
)

// DefaultLead is how long before the appointment the reminder fires.
const DefaultLead = 24 * time.Hour

const fireTimeout = 30 * time.Second

// Scheduler plans one-shot reminder timers for bookings. Each job is keyed
// by a deterministic id derived from the booking id, and its {jobId,
// remindAt, remindSent} trio is persisted on the booking row so RestoreJobs
// can rebuild every timer after a restart.
type Scheduler struct {
	store    BookingStore
	notifier Notifier
	loc      *time.Location
	lead     time.Duration
	logger   *zerolog.Logger

	// now is swapped in tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler firing lead before each appointment in
// the given location. A non-positive lead falls back to DefaultLead.
func NewScheduler(store BookingStore, notifier Notifier, loc *time.Location, lead time.Duration, logger *zerolog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultLead
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		loc:      loc,
		lead:     lead,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(loc) },
		timers:   make(map[string]*time.Timer),
	}
}

// JobID returns the deterministic reminder job id for a booking.
func JobID(bookingID int64) string {
	return fmt.Sprintf("reminder:%d", bookingID)
}

// PlanForBooking schedules the booking's reminder. A booking made less than
// lead before the appointment gets no reminder at all (the business rule is
// no late reminders, not immediate ones); any stale reminder fields are
// cleared in that case.
func (s *Scheduler) PlanForBooking(ctx context.Context, b *models.Booking) error {
	visitAt, err := b.AppointmentAt(s.loc)
	if err != nil {
		return fmt.Errorf("appointment time: %w", err)
	}

	remindAt := visitAt.Add(-s.lead)
	if !remindAt.After(s.now()) {
		return s.store.ClearBookingReminder(ctx, b.ID)
	}

	jobID := JobID(b.ID)
	s.schedule(jobID, remindAt.Sub(s.now()), b.ID)
	if err := s.store.SetBookingReminder(ctx, b.ID, jobID, remindAt.Format(models.DateTimeLayout)); err != nil {
		// Keep the store authoritative: without persisted state the timer
		// would not survive a restart, so drop it.
		s.cancelTimer(jobID)
		return fmt.Errorf("persist reminder: %w", err)
	}

	metrics.IncReminderPlanned()
	s.logger.Info().
		Int64("booking_id", b.ID).
		Time("remind_at", remindAt).
		Msg("Reminder planned")
	return nil
}

// DeleteForBooking cancels the booking's timer, if any, and clears the
// persisted reminder fields. A missing timer is not an error: after a
// restart only persisted, still-future reminders get re-created.
func (s *Scheduler) DeleteForBooking(ctx context.Context, b *models.Booking) error {
	if b.ReminderJobID != nil {
		s.cancelTimer(*b.ReminderJobID)
	} else {
		s.cancelTimer(JobID(b.ID))
	}
	return s.store.ClearBookingReminder(ctx, b.ID)
}

// RestoreJobs rebuilds timers from persisted booking state. Run once at
// startup after the store is ready. Reminders whose fire time passed while
// the process was down are skipped, not fired late. Returns how many timers
// were restored.
func (s *Scheduler) RestoreJobs(ctx context.Context) (int, error) {
	bookings, err := s.store.ListPendingReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending reminders: %w", err)
	}

	restored := 0
	for i := range bookings {
		b := &bookings[i]
		remindAt, ok, err := b.RemindAtIn(s.loc)
		if err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("Skipping unparseable reminder")
			continue
		}
		if !ok || b.ReminderJobID == nil {
			continue
		}
		if !remindAt.After(s.now()) {
			metrics.IncReminderSkipped()
			s.logger.Warn().
				Int64("booking_id", b.ID).
				Time("remind_at", remindAt).
				Msg("Reminder elapsed while down, skipping")
			continue
		}
		s.schedule(*b.ReminderJobID, remindAt.Sub(s.now()), b.ID)
		restored++
	}

	metrics.AddRemindersRestored(restored)
	s.logger.Info().Int("restored", restored).Msg("Reminder jobs restored")
	return restored, nil
}

// Stop cancels all pending timers. In-flight fires may still complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// PendingJobs returns the number of timers currently registered.
func (s *Scheduler) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// schedule registers a one-shot timer, replacing any existing one with the
// same job id so restore and re-plan stay idempotent.
func (s *Scheduler) schedule(jobID string, d time.Duration, bookingID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[jobID]; ok {
		old.Stop()
	}
	s.timers[jobID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, jobID)
		s.mu.Unlock()
		s.fire(bookingID)
	})
}

func (s *Scheduler) cancelTimer(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
		delete(s.timers, jobID)
	}
}

// fire delivers the reminder for a booking. Reload-and-check makes duplicate
// fires and fire/cancel races harmless: a booking that is gone, no longer
// active, or already marked sent is silently skipped.
func (s *Scheduler) fire(bookingID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("Reminder fire: load failed")
		}
		return
	}
	if !b.IsActive() || b.RemindSent {
		return
	}

	text := fmt.Sprintf("Напоминаем: вы записаны завтра в %s. Ждём вас! 💅", b.Time)
	if err := s.notifier.Send(ctx, b.ClientID, text); err != nil {
		// Best-effort delivery: the timer already fired, so a failed send
		// is logged and dropped, never retried.
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("Reminder send failed")
		return
	}

	marked, err := s.store.MarkReminderSent(ctx, bookingID)
	if err != nil {
		// Delivery succeeded but the mark failed; a future duplicate fire
		// is caught by the reload guard above.
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("Reminder mark-sent failed")
		return
	}
	if marked {
		metrics.IncReminderSent()
		s.logger.Info().Int64("booking_id", bookingID).Msg("Reminder sent")
	}
}

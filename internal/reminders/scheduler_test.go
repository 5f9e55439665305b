package reminders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	bookings map[int64]*models.Booking
}

func newFakeStore(bookings ...*models.Booking) *fakeStore {
	s := &fakeStore{bookings: make(map[int64]*models.Booking)}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *fakeStore) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *fakeStore) SetBookingReminder(_ context.Context, id int64, jobID, remindAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return database.ErrNotFound
	}
	b.ReminderJobID = &jobID
	b.RemindAt = &remindAt
	b.RemindSent = false
	return nil
}

func (s *fakeStore) ClearBookingReminder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.ReminderJobID = nil
		b.RemindAt = nil
		b.RemindSent = false
	}
	return nil
}

func (s *fakeStore) MarkReminderSent(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.RemindSent {
		return false, nil
	}
	b.RemindSent = true
	return true, nil
}

func (s *fakeStore) ListPendingReminders(context.Context) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.IsActive() && b.ReminderJobID != nil && b.RemindAt != nil && !b.RemindSent {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, chatID)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestScheduler(store *fakeStore, notifier *fakeNotifier, now time.Time) *Scheduler {
	logger := zerolog.Nop()
	s := NewScheduler(store, notifier, time.UTC, DefaultLead, &logger)
	s.now = func() time.Time { return now }
	return s
}

func activeBooking(id int64, visitAt time.Time) *models.Booking {
	return &models.Booking{
		ID:       id,
		ClientID: id * 10,
		Date:     visitAt.Format(models.DateLayout),
		Time:     visitAt.Format(models.TimeLayout),
		Status:   models.StatusActive,
	}
}

func TestJobIDDeterministic(t *testing.T) {
	assert.Equal(t, "reminder:42", JobID(42))
}

func TestPlanForBookingPersistsTrio(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(25*time.Hour))
	store := newFakeStore(b)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	defer s.Stop()

	require.NoError(t, s.PlanForBooking(context.Background(), b))

	got := store.bookings[1]
	require.NotNil(t, got.ReminderJobID)
	assert.Equal(t, "reminder:1", *got.ReminderJobID)
	require.NotNil(t, got.RemindAt)
	// The reminder lands exactly lead before the appointment.
	assert.Equal(t, now.Add(time.Hour).Format(models.DateTimeLayout), *got.RemindAt)
	assert.Equal(t, 1, s.PendingJobs())
}

func TestPlanForBookingTooCloseGetsNoReminder(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(23*time.Hour))
	jobID := "reminder:1"
	b.ReminderJobID = &jobID // stale state from an earlier plan
	store := newFakeStore(b)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	defer s.Stop()

	require.NoError(t, s.PlanForBooking(context.Background(), b))

	got := store.bookings[1]
	assert.Nil(t, got.ReminderJobID)
	assert.Nil(t, got.RemindAt)
	assert.Zero(t, s.PendingJobs())
}

func TestRestoreJobsRebuildsFutureTimersOnly(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	future := activeBooking(1, now.Add(48*time.Hour))
	elapsed := activeBooking(2, now.Add(-time.Hour))
	cancelled := activeBooking(3, now.Add(48*time.Hour))
	cancelled.Status = models.StatusCancelled
	sent := activeBooking(4, now.Add(48*time.Hour))
	sent.RemindSent = true

	for _, b := range []*models.Booking{future, elapsed, cancelled, sent} {
		jobID := JobID(b.ID)
		remindAt := now.Add(time.Duration(b.ID) * time.Hour).Format(models.DateTimeLayout)
		if b.ID == 2 {
			remindAt = now.Add(-25 * time.Hour).Format(models.DateTimeLayout)
		}
		b.ReminderJobID = &jobID
		b.RemindAt = &remindAt
	}

	store := newFakeStore(future, elapsed, cancelled, sent)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	defer s.Stop()

	restored, err := s.RestoreJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, s.PendingJobs())
}

func TestRestoreJobsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(48*time.Hour))
	jobID := JobID(1)
	remindAt := now.Add(24 * time.Hour).Format(models.DateTimeLayout)
	b.ReminderJobID = &jobID
	b.RemindAt = &remindAt

	store := newFakeStore(b)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		_, err := s.RestoreJobs(context.Background())
		require.NoError(t, err)
	}
	// Re-running replaces the timer instead of stacking duplicates.
	assert.Equal(t, 1, s.PendingJobs())
}

func TestFireSendsOnce(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(25*time.Hour))
	store := newFakeStore(b)
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, notifier, now)
	defer s.Stop()

	// Duplicate fires collapse on the persisted remind_sent flag.
	s.fire(1)
	s.fire(1)

	assert.Equal(t, 1, notifier.count())
	assert.True(t, store.bookings[1].RemindSent)
}

func TestFireSkipsInactiveAndMissing(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cancelled := activeBooking(1, now.Add(25*time.Hour))
	cancelled.Status = models.StatusCancelled
	store := newFakeStore(cancelled)
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, notifier, now)
	defer s.Stop()

	s.fire(1)
	s.fire(999) // long gone

	assert.Zero(t, notifier.count())
}

func TestDeleteForBookingWithoutTimer(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(25*time.Hour))
	jobID := JobID(1)
	b.ReminderJobID = &jobID
	store := newFakeStore(b)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	defer s.Stop()

	// No timer exists (fresh process); delete still clears persisted state.
	require.NoError(t, s.DeleteForBooking(context.Background(), b))
	assert.Nil(t, store.bookings[1].ReminderJobID)
}

func TestScheduledTimerFires(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := activeBooking(1, now.Add(25*time.Hour))
	store := newFakeStore(b)
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, notifier, now)
	defer s.Stop()

	s.schedule(JobID(1), 10*time.Millisecond, 1)

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, time.Second, 10*time.Millisecond, "timer should fire and deliver")
	assert.Zero(t, s.PendingJobs())
}

func TestStopCancelsEverything(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	s := newTestScheduler(store, &fakeNotifier{}, now)

	for i := int64(1); i <= 5; i++ {
		s.schedule(fmt.Sprintf("reminder:%d", i), time.Hour, i)
	}
	require.Equal(t, 5, s.PendingJobs())

	s.Stop()
	assert.Zero(t, s.PendingJobs())
}

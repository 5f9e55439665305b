package database

import (
	"context"
	"testing"

	"github.com/M5rkn/NailsBot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingSingleSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30")

	booking, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", Name: "Аня", Phone: "+79990000001", Now: testNow(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, booking.Status)
	assert.Equal(t, "2026-09-01", booking.Date)
	assert.Equal(t, "10:00", booking.Time)

	free, err := db.ListFreeSlots(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30"}, free)

	bySlot, err := db.GetBookingBySlot(ctx, "2026-09-01", "10:00")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, bySlot.ID)
}

func TestCreateBookingMultiSlotService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30", "11:00", "11:30")
	svcID := addService(t, db, "Маникюр с покрытием", 90)

	booking, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", ServiceID: &svcID, Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)

	// 90 minutes holds 10:00, 10:30 and 11:00.
	free, err := db.ListFreeSlots(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30"}, free)

	for _, tm := range []string{"10:00", "10:30", "11:00"} {
		got, err := db.GetBookingBySlot(ctx, "2026-09-01", tm)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	}
}

func TestCreateBookingMultiSlotAtomicFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30", "11:00")
	svcID := addService(t, db, "Комплекс", 90)

	// Another client takes the middle of the run.
	_, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-09-01", Time: "10:30", Name: "Оля", Now: testNow(),
	})
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", ServiceID: &svcID, Name: "Аня", Now: testNow(),
	})
	r, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectSlotTaken, r.Kind)
	assert.Equal(t, "10:30", r.SlotTime)

	// Nothing was written: 10:00 and 11:00 are still free, no booking exists.
	free, err := db.ListFreeSlots(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, free)

	_, err = db.GetActiveBookingByClient(ctx, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookingRejectionOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00")

	_, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)

	// Even against an unavailable day, the client's existing booking wins.
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-10-01", Time: "10:00", Name: "Аня", Now: testNow(),
	})
	r, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectClientAlreadyBooked, r.Kind)

	// Missing day.
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-10-01", Time: "10:00", Name: "Оля", Now: testNow(),
	})
	r, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectDayUnavailable, r.Kind)

	// Closed day.
	require.NoError(t, db.SetDayClosed(ctx, "2026-09-02", true))
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-09-02", Time: "10:00", Name: "Оля", Now: testNow(),
	})
	r, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectDayUnavailable, r.Kind)

	// Open day, missing slot.
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-09-01", Time: "12:00", Name: "Оля", Now: testNow(),
	})
	r, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectSlotMissing, r.Kind)
	assert.Equal(t, "12:00", r.SlotTime)

	// Taken slot.
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-09-01", Time: "10:00", Name: "Оля", Now: testNow(),
	})
	r, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectSlotTaken, r.Kind)
}

func TestCreateBookingUnknownService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00")

	missing := int64(999)
	_, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", ServiceID: &missing, Name: "Аня", Now: testNow(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOneActiveBookingPerClient(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30")

	_, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:30", Name: "Аня", Now: testNow(),
	})
	r, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectClientAlreadyBooked, r.Kind)

	// After cancelling, booking again works.
	_, err = db.CancelBookingByClient(ctx, 100)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:30", Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)
}

func TestCancelBookingReleasesAllSlots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30")
	svcID := addService(t, db, "Педикюр", 60)

	booking, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", ServiceID: &svcID, Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)

	free, err := db.ListFreeSlots(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, free)

	cancelled, err := db.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, cancelled.ID)

	free, err = db.ListFreeSlots(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30"}, free)

	// Cancelling twice reports not found.
	_, err = db.CancelBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The row survives as history.
	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestCancelBookingByClientWithoutBooking(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CancelBookingByClient(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminderFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00")

	booking, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:00", Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)

	require.NoError(t, db.SetBookingReminder(ctx, booking.ID, "reminder:1", "2026-08-31 10:00:00"))

	pending, err := db.ListPendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].ReminderJobID)
	assert.Equal(t, "reminder:1", *pending[0].ReminderJobID)

	marked, err := db.MarkReminderSent(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	// Second mark is a no-op.
	marked, err = db.MarkReminderSent(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	pending, err = db.ListPendingReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Clearing resets the trio so the booking can be re-planned.
	require.NoError(t, db.ClearBookingReminder(ctx, booking.ID))
	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReminderJobID)
	assert.Nil(t, got.RemindAt)
	assert.False(t, got.RemindSent)
}

func TestListActiveBookingsByDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	openDay(t, db, "2026-09-01", "10:00", "10:30")

	first, err := db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 100, Date: "2026-09-01", Time: "10:30", Name: "Аня", Now: testNow(),
	})
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, CreateBookingParams{
		ClientID: 200, Date: "2026-09-01", Time: "10:00", Name: "Оля", Now: testNow(),
	})
	require.NoError(t, err)

	_, err = db.CancelBooking(ctx, first.ID)
	require.NoError(t, err)

	bookings, err := db.ListActiveBookingsByDate(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, int64(200), bookings[0].ClientID)
}

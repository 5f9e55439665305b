package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsRequired(t *testing.T) {
	tests := []struct {
		minutes int
		want    int
	}{
		{0, 1},
		{-15, 1},
		{1, 1},
		{30, 1},
		{31, 2},
		{60, 2},
		{90, 3},
		{120, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SlotsRequired(tt.minutes), "minutes=%d", tt.minutes)
	}
}

func TestRequiredSlotTimes(t *testing.T) {
	times, err := RequiredSlotTimes("10:00", 90)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, times)

	times, err = RequiredSlotTimes("14:30", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:30"}, times)
}

func TestRequiredSlotTimesStopsAtMidnight(t *testing.T) {
	// A 90-minute service at 23:30 only reserves the last slot of the day.
	times, err := RequiredSlotTimes("23:30", 90)
	require.NoError(t, err)
	assert.Equal(t, []string{"23:30"}, times)

	times, err = RequiredSlotTimes("23:00", 90)
	require.NoError(t, err)
	assert.Equal(t, []string{"23:00", "23:30"}, times)
}

func TestRequiredSlotTimesRejectsGarbage(t *testing.T) {
	_, err := RequiredSlotTimes("25:99", 30)
	assert.Error(t, err)
}

func TestSlotGrid(t *testing.T) {
	grid, err := SlotGrid("10:00", "12:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, grid)

	grid, err = SlotGrid("10:00", "10:00")
	require.NoError(t, err)
	assert.Empty(t, grid)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidDate("2026-08-31"))
	assert.False(t, ValidDate("31.08.2026"))
	assert.False(t, ValidDate("2026-13-01"))

	assert.True(t, ValidSlotTime("10:00"))
	assert.True(t, ValidSlotTime("10:30"))
	assert.False(t, ValidSlotTime("10:15"))
	assert.False(t, ValidSlotTime("1030"))
}

func TestBookingTimeHelpers(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	b := &Booking{Date: "2026-09-01", Time: "14:00", Status: StatusActive}
	assert.True(t, b.IsActive())

	at, err := b.AppointmentAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 14, 0, 0, 0, loc), at)

	_, ok, err := b.RemindAtIn(loc)
	require.NoError(t, err)
	assert.False(t, ok)

	remindAt := "2026-08-31 14:00:00"
	b.RemindAt = &remindAt
	got, ok, err := b.RemindAtIn(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 31, 14, 0, 0, 0, loc), got)
}

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/M5rkn/NailsBot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func openDay(t *testing.T, db *DB, date string, times ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.AddWorkingDay(ctx, date))
	for _, tm := range times {
		created, err := db.AddSlot(ctx, date, tm)
		require.NoError(t, err)
		require.True(t, created, "slot %s should be new", tm)
	}
}

func addService(t *testing.T, db *DB, name string, durationMinutes int) int64 {
	t.Helper()
	svc := &models.Service{Name: name, Price: 2000, DurationMinutes: durationMinutes, IsActive: true}
	require.NoError(t, db.CreateService(context.Background(), svc))
	return svc.ID
}

func testNow() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

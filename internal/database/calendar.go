package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/M5rkn/NailsBot/internal/models"
)

// AddWorkingDay creates the working day if missing. Idempotent; a day is
// created open.
func (db *DB) AddWorkingDay(ctx context.Context, date string) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO working_days(date, is_closed) VALUES (?, 0)",
		date,
	)
	if err != nil {
		return fmt.Errorf("add working day: %w", err)
	}
	return nil
}

// SetDayClosed upserts the day and sets the closed flag. Closing a day does
// not cancel existing bookings; the admin cancels those explicitly.
func (db *DB) SetDayClosed(ctx context.Context, date string, closed bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO working_days(date, is_closed) VALUES (?, 0)", date,
	); err != nil {
		return fmt.Errorf("upsert working day: %w", err)
	}
	flag := 0
	if closed {
		flag = 1
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE working_days SET is_closed=? WHERE date=?", flag, date,
	); err != nil {
		return fmt.Errorf("set day closed: %w", err)
	}
	return tx.Commit()
}

// IsDayClosed reports whether the date is closed. A missing day counts as
// open here; CreateBooking separately rejects missing days.
func (db *DB) IsDayClosed(ctx context.Context, date string) (bool, error) {
	var closed int
	err := db.QueryRowContext(ctx,
		"SELECT is_closed FROM working_days WHERE date=?", date,
	).Scan(&closed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is day closed: %w", err)
	}
	return closed == 1, nil
}

// AddSlot ensures the working day exists and inserts the slot if absent,
// both inside one transaction. Returns false without error if the day is
// closed or the slot already exists.
func (db *DB) AddSlot(ctx context.Context, date, slotTime string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO working_days(date, is_closed) VALUES (?, 0)", date,
	); err != nil {
		return false, fmt.Errorf("upsert working day: %w", err)
	}

	var closed int
	if err := tx.QueryRowContext(ctx,
		"SELECT is_closed FROM working_days WHERE date=?", date,
	).Scan(&closed); err != nil {
		return false, fmt.Errorf("check day: %w", err)
	}
	if closed == 1 {
		return false, nil
	}

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO slots(date, time, is_booked) VALUES (?, ?, 0)",
		date, slotTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddDaySlots opens the day and bulk-adds the given slot times, skipping
// existing ones. Returns how many slots were actually created. No-op (0, nil)
// on a closed day.
func (db *DB) AddDaySlots(ctx context.Context, date string, times []string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO working_days(date, is_closed) VALUES (?, 0)", date,
	); err != nil {
		return 0, fmt.Errorf("upsert working day: %w", err)
	}

	var closed int
	if err := tx.QueryRowContext(ctx,
		"SELECT is_closed FROM working_days WHERE date=?", date,
	).Scan(&closed); err != nil {
		return 0, fmt.Errorf("check day: %w", err)
	}
	if closed == 1 {
		return 0, nil
	}

	created := 0
	for _, t := range times {
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO slots(date, time, is_booked) VALUES (?, ?, 0)",
			date, t,
		)
		if err != nil {
			return 0, fmt.Errorf("insert slot %s: %w", t, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// DeleteSlot removes the slot only if it is currently free, so removal can
// never orphan a booking. Returns whether a row was deleted.
func (db *DB) DeleteSlot(ctx context.Context, date, slotTime string) (bool, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM slots WHERE date=? AND time=? AND is_booked=0",
		date, slotTime,
	)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListSlots returns all slots for a date ordered by time.
func (db *DB) ListSlots(ctx context.Context, date string) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, date, time, is_booked, booking_id FROM slots WHERE date=? ORDER BY time ASC",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var s models.Slot
		var booked int
		var bookingID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Date, &s.Time, &booked, &bookingID); err != nil {
			return nil, err
		}
		s.IsBooked = booked == 1
		if bookingID.Valid {
			id := bookingID.Int64
			s.BookingID = &id
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ListFreeSlots returns the free slot times for a date, ascending.
func (db *DB) ListFreeSlots(ctx context.Context, date string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT time FROM slots WHERE date=? AND is_booked=0 ORDER BY time ASC",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListFreeSlotsFor returns the free slot times on date at which a booking of
// durationMinutes fits: every slot of the required run must exist and be free.
func (db *DB) ListFreeSlotsFor(ctx context.Context, date string, durationMinutes int) ([]string, error) {
	slots, err := db.ListSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	free := make(map[string]bool, len(slots))
	for _, s := range slots {
		free[s.Time] = !s.IsBooked
	}

	var fits []string
	for _, s := range slots {
		if s.IsBooked {
			continue
		}
		required, err := models.RequiredSlotTimes(s.Time, durationMinutes)
		if err != nil {
			return nil, err
		}
		ok := true
		for _, t := range required {
			if isFree, exists := free[t]; !exists || !isFree {
				ok = false
				break
			}
		}
		if ok {
			fits = append(fits, s.Time)
		}
	}
	return fits, nil
}

// ListAvailableDates returns open dates in [from, to] that still have at
// least one free slot.
func (db *DB) ListAvailableDates(ctx context.Context, from, to string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.date FROM working_days d
		WHERE d.date BETWEEN ? AND ?
		  AND d.is_closed = 0
		  AND EXISTS (SELECT 1 FROM slots s WHERE s.date = d.date AND s.is_booked = 0)
		ORDER BY d.date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListDatesWithSlots returns dates in [from, to] that have any slot at all,
// regardless of the closed flag. Used by admin views.
func (db *DB) ListDatesWithSlots(ctx context.Context, from, to string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT date FROM slots
		WHERE date BETWEEN ? AND ?
		ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list dates with slots: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

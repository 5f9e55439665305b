package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/M5rkn/NailsBot/internal/models"
)

const bookingColumns = `id, client_id, date, time, service_id, name, phone, status,
	created_at, reminder_job_id, remind_at, remind_sent`

// CreateBookingParams carries everything CreateBooking needs. ServiceID nil
// means a plain single-slot appointment.
type CreateBookingParams struct {
	ClientID  int64
	Date      string
	Time      string
	ServiceID *int64
	Name      string
	Phone     string
	Now       time.Time
}

// CreateBooking atomically reserves the full slot run for the appointment.
// Checks run in a fixed order inside one write transaction: the client must
// have no active booking, the day must exist and be open, and every required
// slot must exist and be free. Business refusals come back as *Rejection;
// a missing service id as ErrNotFound. Nothing is written on failure.
func (db *DB) CreateBooking(ctx context.Context, p CreateBookingParams) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM bookings WHERE client_id=? AND status=? LIMIT 1",
		p.ClientID, models.StatusActive,
	).Scan(&existing)
	if err == nil {
		return nil, reject(RejectClientAlreadyBooked)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check active booking: %w", err)
	}

	var closed int
	err = tx.QueryRowContext(ctx,
		"SELECT is_closed FROM working_days WHERE date=?", p.Date,
	).Scan(&closed)
	if err == sql.ErrNoRows || (err == nil && closed == 1) {
		return nil, reject(RejectDayUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("check working day: %w", err)
	}

	duration := 0
	if p.ServiceID != nil {
		err = tx.QueryRowContext(ctx,
			"SELECT duration_minutes FROM services WHERE id=?", *p.ServiceID,
		).Scan(&duration)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load service: %w", err)
		}
	}

	required, err := models.RequiredSlotTimes(p.Time, duration)
	if err != nil {
		return nil, err
	}

	// The whole run is validated before anything is written, so a service
	// overrunning into taken territory fails without touching earlier slots.
	slotIDs := make([]int64, 0, len(required))
	for _, t := range required {
		var slotID int64
		var booked int
		err = tx.QueryRowContext(ctx,
			"SELECT id, is_booked FROM slots WHERE date=? AND time=?", p.Date, t,
		).Scan(&slotID, &booked)
		if err == sql.ErrNoRows {
			return nil, rejectSlot(RejectSlotMissing, t)
		}
		if err != nil {
			return nil, fmt.Errorf("check slot %s: %w", t, err)
		}
		if booked == 1 {
			return nil, rejectSlot(RejectSlotTaken, t)
		}
		slotIDs = append(slotIDs, slotID)
	}

	createdAt := p.Now.Format(models.DateTimeLayout)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings(client_id, date, time, service_id, name, phone, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ClientID, p.Date, p.Time, p.ServiceID, p.Name, p.Phone, models.StatusActive, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, slotID := range slotIDs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE slots SET is_booked=1, booking_id=? WHERE id=?", bookingID, slotID,
		); err != nil {
			return nil, fmt.Errorf("bind slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	booking := &models.Booking{
		ID:        bookingID,
		ClientID:  p.ClientID,
		Date:      p.Date,
		Time:      p.Time,
		ServiceID: p.ServiceID,
		Name:      p.Name,
		Phone:     p.Phone,
		Status:    models.StatusActive,
		CreatedAt: createdAt,
	}
	db.logger.Info().
		Int64("booking_id", bookingID).
		Int64("client_id", p.ClientID).
		Str("date", p.Date).
		Str("time", p.Time).
		Int("slots", len(slotIDs)).
		Msg("Booking created")
	return booking, nil
}

// CancelBooking atomically releases every slot bound to the booking and marks
// it cancelled. Returns the pre-cancellation snapshot for notifications, or
// ErrNotFound if the booking is missing or already cancelled.
func (db *DB) CancelBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	booking, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=?", bookingID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if !booking.IsActive() {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE slots SET is_booked=0, booking_id=NULL WHERE booking_id=?", bookingID,
	); err != nil {
		return nil, fmt.Errorf("release slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status=? WHERE id=?", models.StatusCancelled, bookingID,
	); err != nil {
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	db.logger.Info().Int64("booking_id", bookingID).Msg("Booking cancelled")
	return booking, nil
}

// CancelBookingByClient cancels the client's active booking, if any.
func (db *DB) CancelBookingByClient(ctx context.Context, clientID int64) (*models.Booking, error) {
	booking, err := db.GetActiveBookingByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return db.CancelBooking(ctx, booking.ID)
}

// GetBooking returns the booking by id, or ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// GetActiveBookingByClient returns the client's single active booking, or
// ErrNotFound.
func (db *DB) GetActiveBookingByClient(ctx context.Context, clientID int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE client_id=? AND status=? ORDER BY id DESC LIMIT 1",
		clientID, models.StatusActive,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active booking: %w", err)
	}
	return booking, nil
}

// GetBookingBySlot returns the active booking holding the (date, time) slot,
// or ErrNotFound.
func (db *DB) GetBookingBySlot(ctx context.Context, date, slotTime string) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, `
		SELECT b.id, b.client_id, b.date, b.time, b.service_id, b.name, b.phone, b.status,
		       b.created_at, b.reminder_job_id, b.remind_at, b.remind_sent
		FROM bookings b
		JOIN slots s ON s.booking_id = b.id
		WHERE s.date=? AND s.time=? AND b.status=?
		LIMIT 1`,
		date, slotTime, models.StatusActive,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking by slot: %w", err)
	}
	return booking, nil
}

// ListActiveBookingsByDate returns active bookings for the date ordered by
// time ascending.
func (db *DB) ListActiveBookingsByDate(ctx context.Context, date string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE date=? AND status=? ORDER BY time ASC",
		date, models.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// SetBookingReminder persists the reminder trio so the timer can be rebuilt
// after a restart.
func (db *DB) SetBookingReminder(ctx context.Context, bookingID int64, jobID, remindAt string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET reminder_job_id=?, remind_at=?, remind_sent=0 WHERE id=?",
		jobID, remindAt, bookingID,
	)
	if err != nil {
		return fmt.Errorf("set reminder: %w", err)
	}
	return nil
}

// ClearBookingReminder drops the persisted reminder fields.
func (db *DB) ClearBookingReminder(ctx context.Context, bookingID int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET reminder_job_id=NULL, remind_at=NULL, remind_sent=0 WHERE id=?",
		bookingID,
	)
	if err != nil {
		return fmt.Errorf("clear reminder: %w", err)
	}
	return nil
}

// MarkReminderSent flips remind_sent once. Returns false if it was already
// set, which lets a duplicate fire detect it lost the race.
func (db *DB) MarkReminderSent(ctx context.Context, bookingID int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET remind_sent=1 WHERE id=? AND remind_sent=0",
		bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPendingReminders returns active bookings with a persisted, unsent
// reminder. The caller filters on remind_at being in the future.
func (db *DB) ListPendingReminders(ctx context.Context) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status=?
		  AND reminder_job_id IS NOT NULL
		  AND remind_at IS NOT NULL
		  AND remind_sent=0`,
		models.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var serviceID sql.NullInt64
	var jobID, remindAt sql.NullString
	var sent int
	err := row.Scan(
		&b.ID, &b.ClientID, &b.Date, &b.Time, &serviceID, &b.Name, &b.Phone,
		&b.Status, &b.CreatedAt, &jobID, &remindAt, &sent,
	)
	if err != nil {
		return nil, err
	}
	if serviceID.Valid {
		id := serviceID.Int64
		b.ServiceID = &id
	}
	if jobID.Valid {
		s := jobID.String
		b.ReminderJobID = &s
	}
	if remindAt.Valid {
		s := remindAt.String
		b.RemindAt = &s
	}
	b.RemindSent = sent == 1
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

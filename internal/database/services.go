package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/M5rkn/NailsBot/internal/models"
)

// CreateService inserts a catalog entry and fills in its id.
func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	active := 0
	if s.IsActive {
		active = 1
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO services(name, price, duration_minutes, is_active) VALUES (?, ?, ?, ?)",
		s.Name, s.Price, s.DurationMinutes, active,
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// GetService returns the service by id, or ErrNotFound.
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	s, err := scanService(db.QueryRowContext(ctx,
		"SELECT id, name, price, duration_minutes, is_active FROM services WHERE id=?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

// ListServices returns catalog entries ordered by name, optionally only
// active ones.
func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := "SELECT id, name, price, duration_minutes, is_active FROM services"
	if activeOnly {
		query += " WHERE is_active=1"
	}
	query += " ORDER BY name ASC"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

// SetServiceActive toggles the catalog entry; everything else on a service
// is immutable.
func (db *DB) SetServiceActive(ctx context.Context, id int64, active bool) error {
	flag := 0
	if active {
		flag = 1
	}
	res, err := db.ExecContext(ctx,
		"UPDATE services SET is_active=? WHERE id=?", flag, id,
	)
	if err != nil {
		return fmt.Errorf("set service active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	var active int
	if err := row.Scan(&s.ID, &s.Name, &s.Price, &s.DurationMinutes, &active); err != nil {
		return nil, err
	}
	s.IsActive = active == 1
	return &s, nil
}

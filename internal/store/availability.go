package store

import (
	"context"
	"fmt"
	"time"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
)

const availabilityColumns = "item_id, date, is_available, reason, booking_id, updated_at"

// ListUnavailableDates returns the unavailable records of the item in [start, end]
func (s *Store) ListUnavailableDates(ctx context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error) {
	var records []models.Availability
	err := s.db.SelectContext(ctx, &records, `
		SELECT `+availabilityColumns+` FROM item_availability
		WHERE item_id = $1 AND date BETWEEN $2 AND $3 AND NOT is_available
		ORDER BY date`,
		itemID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list unavailable dates: %w", err)
	}
	return records, nil
}

// ListAvailability returns every availability record of the item in [start, end]
func (s *Store) ListAvailability(ctx context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error) {
	var records []models.Availability
	err := s.db.SelectContext(ctx, &records, `
		SELECT `+availabilityColumns+` FROM item_availability
		WHERE item_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		itemID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	return records, nil
}

// SetAvailability upserts owner-managed records in one transaction. A date held by a
// booking aborts the whole batch with models.ErrDatesUnavailable.
func (s *Store) SetAvailability(ctx context.Context, records []models.Availability) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO item_availability (item_id, date, is_available, reason, booking_id, updated_at)
			VALUES ($1, $2, $3, $4, NULL, $5)
			ON CONFLICT (item_id, date) DO UPDATE
			SET is_available = EXCLUDED.is_available, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at
			WHERE item_availability.booking_id IS NULL`,
			rec.ItemID, rec.Date, rec.IsAvailable, rec.Reason, rec.UpdatedAt)
		if err != nil {
			return asConflict(fmt.Errorf("failed to upsert availability: %w", err), models.ErrDatesUnavailable)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read upserted rows: %w", err)
		}
		if n == 0 {
			return models.ErrDatesUnavailable
		}
	}

	return tx.Commit()
}

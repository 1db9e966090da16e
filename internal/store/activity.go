package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
)

// RecordActivity inserts a timeline entry keyed by its event id
func (s *Store) RecordActivity(ctx context.Context, a *models.BookingActivity) error {
	query := `
		INSERT INTO booking_activity (event_id, booking_id, event_type, actor_id, from_status, to_status, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id`

	err := s.db.GetContext(ctx, &a.ID, query,
		a.EventID, a.BookingID, a.EventType, a.ActorID, a.FromStatus, a.ToStatus, a.Note, a.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListActivity returns a booking's timeline, oldest first
func (s *Store) ListActivity(ctx context.Context, bookingID uuid.UUID) ([]models.BookingActivity, error) {
	var activity []models.BookingActivity
	err := s.db.SelectContext(ctx, &activity, `
		SELECT id, event_id, booking_id, event_type, actor_id, from_status, to_status, note, occurred_at
		FROM booking_activity
		WHERE booking_id = $1
		ORDER BY occurred_at, id`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return activity, nil
}

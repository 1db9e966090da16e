package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const bookingColumns = `id, item_id, renter_id, owner_id, start_date, end_date, daily_rate_cents, total_days,
	subtotal_cents, service_fee_cents, delivery_fee_cents, deposit_cents, total_cents, pickup_method, status,
	cancellation_reason, cancelled_by, confirmed_at, activated_at, cancelled_at, completed_at,
	created_at, updated_at`

// GetBooking retrieves a booking by ID
func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, err)
	}
	return &b, nil
}

// ListBookings returns one page of bookings matching filter, newest first, and the total count
func (s *Store) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.RenterID != nil {
		add("renter_id = $%d", *filter.RenterID)
	}
	if filter.OwnerID != nil {
		add("owner_id = $%d", *filter.OwnerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bookings"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := "SELECT " + bookingColumns + " FROM bookings" + where + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	bookings := []models.Booking{}
	if err := s.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

// FindOverlappingBookings returns bookings on the item in statuses that share a day with [start, end]
func (s *Store) FindOverlappingBookings(ctx context.Context, itemID uuid.UUID, start, end time.Time, statuses []string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE item_id = $1 AND start_date <= $3 AND end_date >= $2 AND status = ANY($4)
		ORDER BY start_date`,
		itemID, start, end, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsStartingBefore returns bookings in status whose start date is before the given date
func (s *Store) ListBookingsStartingBefore(ctx context.Context, status string, before time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT "+bookingColumns+" FROM bookings WHERE status = $1 AND start_date < $2 ORDER BY start_date",
		status, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by start date: %w", err)
	}
	return bookings, nil
}

const datesTakenQuery = `
	SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE item_id = $1 AND start_date <= $3 AND end_date >= $2 AND status = ANY($4)
	) OR EXISTS (
		SELECT 1 FROM item_availability
		WHERE item_id = $1 AND date BETWEEN $2 AND $3 AND NOT is_available
	)`

const insertBookingQuery = `
	INSERT INTO bookings (id, item_id, renter_id, owner_id, start_date, end_date, daily_rate_cents, total_days,
		subtotal_cents, service_fee_cents, delivery_fee_cents, deposit_cents, total_cents, pickup_method, status,
		created_at, updated_at)
	VALUES (:id, :item_id, :renter_id, :owner_id, :start_date, :end_date, :daily_rate_cents, :total_days,
		:subtotal_cents, :service_fee_cents, :delivery_fee_cents, :deposit_cents, :total_cents, :pickup_method, :status,
		:created_at, :updated_at)`

// holdDatesQuery claims one availability row per booked date. Rows that are already
// unavailable are skipped, so a short row count means another booking or block got there first.
const holdDatesQuery = `
	INSERT INTO item_availability (item_id, date, is_available, reason, booking_id, updated_at)
	SELECT $1, d::date, FALSE, 'booked', $2, NOW()
	FROM generate_series($3::date, $4::date, INTERVAL '1 day') AS d
	ON CONFLICT (item_id, date) DO UPDATE
	SET is_available = FALSE, reason = EXCLUDED.reason, booking_id = EXCLUDED.booking_id, updated_at = NOW()
	WHERE item_availability.is_available AND item_availability.booking_id IS NULL`

// CreateBooking inserts a booking and holds its dates in one serializable transaction.
// The item row is locked so concurrent requests for the same item queue up behind each other.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var itemID uuid.UUID
	err = tx.GetContext(ctx, &itemID,
		"SELECT id FROM items WHERE id = $1 AND deleted_at IS NULL FOR UPDATE", b.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return asConflict(fmt.Errorf("failed to lock item: %w", err), models.ErrDatesUnavailable)
	}

	var taken bool
	err = tx.GetContext(ctx, &taken, datesTakenQuery,
		b.ItemID, b.StartDate, b.EndDate, pq.Array(models.BlockingStatuses))
	if err != nil {
		return asConflict(fmt.Errorf("failed to check dates: %w", err), models.ErrDatesUnavailable)
	}
	if taken {
		return models.ErrDatesUnavailable
	}

	if _, err := tx.NamedExecContext(ctx, insertBookingQuery, b); err != nil {
		return asConflict(fmt.Errorf("failed to insert booking: %w", err), models.ErrDatesUnavailable)
	}

	res, err := tx.ExecContext(ctx, holdDatesQuery, b.ItemID, b.ID, b.StartDate, b.EndDate)
	if err != nil {
		return asConflict(fmt.Errorf("failed to hold dates: %w", err), models.ErrDatesUnavailable)
	}
	held, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read held dates: %w", err)
	}
	if held != int64(models.InclusiveDays(b.StartDate, b.EndDate)) {
		return models.ErrDatesUnavailable
	}

	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("failed to commit booking: %w", err), models.ErrDatesUnavailable)
	}
	return nil
}

// TransitionBooking writes the new status and timestamps if the stored status is still from.
// Cancelling deletes the availability rows held by the booking in the same transaction.
func (s *Store) TransitionBooking(ctx context.Context, b *models.Booking, from string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, cancellation_reason = $2, cancelled_by = $3, confirmed_at = $4,
			activated_at = $5, cancelled_at = $6, completed_at = $7, updated_at = $8
		WHERE id = $9 AND status = $10`,
		b.Status, b.CancellationReason, b.CancelledBy, b.ConfirmedAt,
		b.ActivatedAt, b.CancelledAt, b.CompletedAt, b.UpdatedAt,
		b.ID, from)
	if err != nil {
		return asConflict(fmt.Errorf("failed to update booking status: %w", err), models.ErrStatusChanged)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read updated rows: %w", err)
	}
	if updated == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)", b.ID); err != nil {
			return fmt.Errorf("failed to check booking: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrStatusChanged
	}

	if b.Status == models.BookingStatusCancelled {
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_availability WHERE booking_id = $1", b.ID); err != nil {
			return fmt.Errorf("failed to release dates: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("failed to commit status change: %w", err), models.ErrStatusChanged)
	}
	return nil
}

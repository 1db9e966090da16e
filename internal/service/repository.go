package service

import (
	"context"
	"time"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
)

// BookingRepository persists items, bookings and per-date availability.
// Implementations return the sentinels from the models package for expected outcomes.
type BookingRepository interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)

	// FindOverlappingBookings returns bookings on the item in one of statuses whose
	// inclusive range shares a day with [start, end].
	FindOverlappingBookings(ctx context.Context, itemID uuid.UUID, start, end time.Time, statuses []string) ([]models.Booking, error)

	// ListUnavailableDates returns availability records in [start, end] marked unavailable
	ListUnavailableDates(ctx context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error)

	// CreateBooking re-checks the dates, inserts the booking and marks every date it covers
	// unavailable as one atomic step. It returns models.ErrDatesUnavailable when the dates
	// were taken in the meantime.
	CreateBooking(ctx context.Context, booking *models.Booking) error

	// TransitionBooking stores booking only if the persisted status still equals from,
	// returning models.ErrStatusChanged otherwise. A cancelled booking releases the
	// availability records that reference it in the same step.
	TransitionBooking(ctx context.Context, booking *models.Booking, from string) error

	// ListAvailability returns every stored record in [start, end], blocked or open, ordered by date
	ListAvailability(ctx context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error)

	// SetAvailability upserts owner-managed records. Dates held by a booking are left
	// untouched and reported with models.ErrDatesUnavailable.
	SetAvailability(ctx context.Context, records []models.Availability) error

	// ListBookingsStartingBefore returns bookings in status whose start date is before the given date
	ListBookingsStartingBefore(ctx context.Context, status string, before time.Time) ([]models.Booking, error)
}

// ActivityRepository stores the booking timeline
type ActivityRepository interface {
	// RecordActivity returns models.ErrDuplicateEvent if the event id was already recorded
	RecordActivity(ctx context.Context, activity *models.BookingActivity) error
	ListActivity(ctx context.Context, bookingID uuid.UUID) ([]models.BookingActivity, error)
}

// EventPublisher delivers booking events to interested consumers
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingStatusChanged(ctx context.Context, event *models.BookingStatusChangedEvent) error
}

// IdempotencyStore maps client supplied idempotency keys to the booking they created
type IdempotencyStore interface {
	GetBookingID(ctx context.Context, key string) (uuid.UUID, bool, error)
	SaveBookingID(ctx context.Context, key string, bookingID uuid.UUID, ttl time.Duration) error
}

type nopPublisher struct{}

func (nopPublisher) PublishBookingCreated(context.Context, *models.BookingCreatedEvent) error {
	return nil
}

func (nopPublisher) PublishBookingStatusChanged(context.Context, *models.BookingStatusChangedEvent) error {
	return nil
}

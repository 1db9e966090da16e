package service

import (
	"context"
	"errors"
	"fmt"

	"rentwy-service/internal/models"
	"rentwy-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BookingReader is the read side of the booking store the activity timeline needs
type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// ActivityService projects booking events into a per-booking timeline.
// It also satisfies EventPublisher so the timeline can be fed in-process when no broker runs.
type ActivityService struct {
	bookings BookingReader
	repo     ActivityRepository
	logger   *zap.Logger
}

// NewActivityService creates a new activity service
func NewActivityService(bookings BookingReader, repo ActivityRepository) *ActivityService {
	return &ActivityService{
		bookings: bookings,
		repo:     repo,
		logger:   util.GetLogger(),
	}
}

// RecordBookingCreated adds the initial pending entry. Redelivered events are ignored.
func (s *ActivityService) RecordBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	renterID := event.RenterID
	return s.record(ctx, &models.BookingActivity{
		EventID:    event.EventID,
		BookingID:  event.BookingID,
		EventType:  event.EventType,
		ActorID:    &renterID,
		ToStatus:   models.BookingStatusPending,
		OccurredAt: event.Timestamp,
	})
}

// RecordStatusChanged adds a transition entry. Redelivered events are ignored.
func (s *ActivityService) RecordStatusChanged(ctx context.Context, event *models.BookingStatusChangedEvent) error {
	from := event.FromStatus
	activity := &models.BookingActivity{
		EventID:    event.EventID,
		BookingID:  event.BookingID,
		EventType:  event.EventType,
		ActorID:    event.ActorID,
		FromStatus: &from,
		ToStatus:   event.ToStatus,
		OccurredAt: event.Timestamp,
	}
	if event.Reason != "" {
		reason := event.Reason
		activity.Note = &reason
	}
	return s.record(ctx, activity)
}

func (s *ActivityService) record(ctx context.Context, activity *models.BookingActivity) error {
	ctx, span := util.StartSpan(ctx, "ActivityService.Record",
		attribute.String("event_id", activity.EventID),
		attribute.String("booking_id", activity.BookingID.String()))
	defer span.End()

	if activity.EventID == "" {
		return fmt.Errorf("event has no id")
	}

	err := s.repo.RecordActivity(ctx, activity)
	if errors.Is(err, models.ErrDuplicateEvent) {
		s.logger.Info("Event already processed, skipping", zap.String("event_id", activity.EventID))
		return nil
	}
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to record activity: %w", err)
	}

	util.ActivityRecordedTotal.WithLabelValues(activity.EventType).Inc()
	return nil
}

// PublishBookingCreated records the event directly
func (s *ActivityService) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	return s.RecordBookingCreated(ctx, event)
}

// PublishBookingStatusChanged records the event directly
func (s *ActivityService) PublishBookingStatusChanged(ctx context.Context, event *models.BookingStatusChangedEvent) error {
	return s.RecordStatusChanged(ctx, event)
}

// GetActivity returns the timeline of a booking, oldest first, to one of its parties
func (s *ActivityService) GetActivity(ctx context.Context, actorID, bookingID uuid.UUID) ([]models.BookingActivity, error) {
	ctx, span := util.StartSpan(ctx, "ActivityService.GetActivity",
		attribute.String("booking_id", bookingID.String()))
	defer span.End()

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("booking %s not found", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if !booking.IsParty(actorID) {
		return nil, forbidden("you are not a party to this booking")
	}

	activity, err := s.repo.ListActivity(ctx, bookingID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	if activity == nil {
		activity = []models.BookingActivity{}
	}
	return activity, nil
}

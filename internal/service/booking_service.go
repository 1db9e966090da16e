package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentwy-service/internal/models"
	"rentwy-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBlockDates   = 366
	maxBookingDays  = 90

	expiredReason = "request expired before start date"
)

// BookingOptions carries the business settings of the booking service
type BookingOptions struct {
	// DeliveryFeeCents is charged once per booking when the item is delivered
	DeliveryFeeCents int64
	IdempotencyTTL   time.Duration
}

// BookingService validates and applies booking operations
type BookingService struct {
	repo        BookingRepository
	events      EventPublisher
	idempotency IdempotencyStore
	opts        BookingOptions
	logger      *zap.Logger
	now         func() time.Time
}

// NewBookingService creates a new booking service. events and idempotency may be nil.
func NewBookingService(
	repo BookingRepository,
	events EventPublisher,
	idempotency IdempotencyStore,
	opts BookingOptions,
) *BookingService {
	if events == nil {
		events = nopPublisher{}
	}
	return &BookingService{
		repo:        repo,
		events:      events,
		idempotency: idempotency,
		opts:        opts,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// CreateBookingRequest represents a rental request from a renter
type CreateBookingRequest struct {
	RenterID       uuid.UUID `json:"-"`
	ItemID         uuid.UUID `json:"item_id" binding:"required"`
	StartDate      string    `json:"start_date" binding:"required,calendar_date"`
	EndDate        string    `json:"end_date" binding:"required,calendar_date"`
	PickupMethod   string    `json:"pickup_method" binding:"required,pickup_method"`
	IdempotencyKey string    `json:"-"`
}

// Quote is a side-effect free preview of a booking
type Quote struct {
	ItemID       uuid.UUID `json:"item_id"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	PickupMethod string    `json:"pickup_method"`
	Available    bool      `json:"available"`
	Pricing
}

// BookingPage is one page of a booking listing
type BookingPage struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// CheckAvailability reports whether every date in [start, end] is free for the item.
// Dates are taken by confirmed or active bookings and by records marked unavailable.
func (s *BookingService) CheckAvailability(ctx context.Context, itemID uuid.UUID, start, end time.Time) (bool, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CheckAvailability",
		attribute.String("item_id", itemID.String()))
	defer span.End()

	begin := time.Now()
	defer func() {
		util.AvailabilityCheckLatency.Observe(time.Since(begin).Seconds())
	}()

	start, end = models.TruncateDate(start), models.TruncateDate(end)
	if end.Before(start) {
		return false, invalid("end date must not be before start date")
	}
	if models.InclusiveDays(start, end) > maxBookingDays {
		return false, invalid("date range cannot be longer than %d days", maxBookingDays)
	}

	overlapping, err := s.repo.FindOverlappingBookings(ctx, itemID, start, end, models.BlockingStatuses)
	if err != nil {
		util.RecordError(span, err)
		return false, fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	if len(overlapping) > 0 {
		return false, nil
	}

	blocked, err := s.repo.ListUnavailableDates(ctx, itemID, start, end)
	if err != nil {
		util.RecordError(span, err)
		return false, fmt.Errorf("failed to check unavailable dates: %w", err)
	}

	return len(blocked) == 0, nil
}

// CalculatePricing prices the rental without a delivery fee
func (s *BookingService) CalculatePricing(item *models.Item, start, end time.Time) Pricing {
	return CalculatePricing(item, start, end)
}

func (s *BookingService) priceFor(item *models.Item, start, end time.Time, pickupMethod string) Pricing {
	p := CalculatePricing(item, start, end)
	if pickupMethod == models.PickupMethodDelivery {
		p = p.WithDeliveryFee(s.opts.DeliveryFeeCents)
	}
	return p
}

// CreateBooking validates a rental request and stores it as a pending booking
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking",
		attribute.String("item_id", req.ItemID.String()),
		attribute.String("renter_id", req.RenterID.String()))
	defer span.End()

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		util.BookingsRejectedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	if err := checkBookingRange(start, end); err != nil {
		util.BookingsRejectedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	if !ValidPickupMethod(req.PickupMethod) {
		util.BookingsRejectedTotal.WithLabelValues("invalid_request").Inc()
		return nil, invalid("unknown pickup method %q", req.PickupMethod)
	}
	if req.RenterID == uuid.Nil {
		return nil, invalid("renter is required")
	}

	key := idempotencyKey(req)
	if key != "" {
		if existing := s.replay(ctx, key); existing != nil {
			return existing, nil
		}
	}

	item, err := s.getItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Bookable() {
		util.BookingsRejectedTotal.WithLabelValues("item_unavailable").Inc()
		return nil, conflict("item is not available for booking")
	}
	if item.OwnerID == req.RenterID {
		util.BookingsRejectedTotal.WithLabelValues("own_item").Inc()
		return nil, forbidden("owners cannot book their own items")
	}

	available, err := s.CheckAvailability(ctx, item.ID, start, end)
	if err != nil {
		return nil, err
	}
	if !available {
		util.BookingsRejectedTotal.WithLabelValues("dates_unavailable").Inc()
		return nil, conflict("item is not available for the selected dates")
	}

	now := s.now().UTC()
	booking := &models.Booking{
		ID:           uuid.New(),
		ItemID:       item.ID,
		RenterID:     req.RenterID,
		OwnerID:      item.OwnerID,
		StartDate:    start,
		EndDate:      end,
		PickupMethod: req.PickupMethod,
		Status:       models.BookingStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.priceFor(item, start, end, req.PickupMethod).applyTo(booking)

	begin := time.Now()
	err = s.repo.CreateBooking(ctx, booking)
	util.BookingCreateLatency.Observe(time.Since(begin).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDatesUnavailable):
			util.BookingsRejectedTotal.WithLabelValues("dates_unavailable").Inc()
			return nil, conflict("item is not available for the selected dates")
		case errors.Is(err, models.ErrNotFound):
			return nil, notFound("item %s not found", req.ItemID)
		default:
			util.BookingsRejectedTotal.WithLabelValues("store_error").Inc()
			util.RecordError(span, err)
			return nil, fmt.Errorf("failed to create booking: %w", err)
		}
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("item_id", booking.ItemID.String()),
		zap.Int64("total_cents", booking.TotalCents))

	s.publishCreated(ctx, booking)

	if key != "" {
		s.remember(ctx, key, booking.ID)
	}

	return booking, nil
}

// UpdateBookingStatus moves a booking through its lifecycle on behalf of actorID
func (s *BookingService) UpdateBookingStatus(ctx context.Context, bookingID, actorID uuid.UUID, newStatus, reason string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.UpdateBookingStatus",
		attribute.String("booking_id", bookingID.String()),
		attribute.String("status", newStatus))
	defer span.End()

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !knownStatus(newStatus) {
		return nil, invalid("unknown booking status %q", newStatus)
	}

	rule, err := lookupTransition(booking.Status, newStatus)
	if err != nil {
		return nil, err
	}

	if actorRole(booking, actorID)&rule.allowed == 0 {
		return nil, forbidden("only the %s can move a booking from %s to %s", rule.allowed, booking.Status, newStatus)
	}

	reason = strings.TrimSpace(reason)
	if rule.reasonRequired && reason == "" {
		return nil, invalid("a reason is required to cancel a booking")
	}

	return s.transition(ctx, booking, &actorID, newStatus, reason)
}

// transition persists an accepted status change. The caller has already checked the rule.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, actorID *uuid.UUID, to, reason string) (*models.Booking, error) {
	from := booking.Status
	updated := *booking
	applyTransition(&updated, to, actorID, reason, s.now().UTC())

	if err := s.repo.TransitionBooking(ctx, &updated, from); err != nil {
		switch {
		case errors.Is(err, models.ErrStatusChanged):
			return nil, conflict("booking status was changed by another request")
		case errors.Is(err, models.ErrNotFound):
			return nil, notFound("booking %s not found", booking.ID)
		default:
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
	}

	util.BookingTransitionsTotal.WithLabelValues(from, to).Inc()
	s.logger.Info("Booking status changed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("from", from),
		zap.String("to", to))

	event := &models.BookingStatusChangedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeBookingStatusChanged),
		BookingID:  updated.ID,
		ItemID:     updated.ItemID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
	}
	if err := s.events.PublishBookingStatusChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish BookingStatusChanged event",
			zap.String("booking_id", updated.ID.String()),
			zap.Error(err))
	}

	return &updated, nil
}

// GetBooking returns a booking visible to actorID
func (s *BookingService) GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetBooking",
		attribute.String("booking_id", bookingID.String()))
	defer span.End()

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actorID) {
		return nil, forbidden("you are not a party to this booking")
	}
	return booking, nil
}

// ListBookings lists the actor's bookings as renter or as item owner
func (s *BookingService) ListBookings(ctx context.Context, actorID uuid.UUID, asRole, status string, page, pageSize int) (*BookingPage, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ListBookings")
	defer span.End()

	if status != "" && !knownStatus(status) {
		return nil, invalid("unknown booking status %q", status)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := models.BookingFilter{
		Status: status,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	switch asRole {
	case "", "renter":
		filter.RenterID = &actorID
	case "owner":
		filter.OwnerID = &actorID
	default:
		return nil, invalid("role must be renter or owner")
	}

	bookings, total, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}

	return &BookingPage{Bookings: bookings, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetQuote previews availability and pricing using the same fee rules as CreateBooking
func (s *BookingService) GetQuote(ctx context.Context, itemID uuid.UUID, start, end time.Time, pickupMethod string) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetQuote",
		attribute.String("item_id", itemID.String()))
	defer span.End()

	if pickupMethod == "" {
		pickupMethod = models.PickupMethodPickup
	}
	if !ValidPickupMethod(pickupMethod) {
		return nil, invalid("unknown pickup method %q", pickupMethod)
	}
	start, end = models.TruncateDate(start), models.TruncateDate(end)
	if err := checkBookingRange(start, end); err != nil {
		return nil, err
	}

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	available, err := s.CheckAvailability(ctx, itemID, start, end)
	if err != nil {
		return nil, err
	}

	return &Quote{
		ItemID:       itemID,
		StartDate:    start.Format(models.DateLayout),
		EndDate:      end.Format(models.DateLayout),
		PickupMethod: pickupMethod,
		Available:    available && item.Bookable(),
		Pricing:      s.priceFor(item, start, end, pickupMethod),
	}, nil
}

// GetAvailabilityCalendar returns the stored per-date records of the item in [start, end].
// Dates without a record are open unless a booking covers them.
func (s *BookingService) GetAvailabilityCalendar(ctx context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetAvailabilityCalendar",
		attribute.String("item_id", itemID.String()))
	defer span.End()

	start, end = models.TruncateDate(start), models.TruncateDate(end)
	if end.Before(start) {
		return nil, invalid("end date must not be before start date")
	}
	if models.InclusiveDays(start, end) > maxBookingDays {
		return nil, invalid("date range cannot be longer than %d days", maxBookingDays)
	}

	if _, err := s.getItem(ctx, itemID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListAvailability(ctx, itemID, start, end)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	if records == nil {
		records = []models.Availability{}
	}
	return records, nil
}

// SetAvailability lets the item owner block or reopen individual dates
func (s *BookingService) SetAvailability(ctx context.Context, ownerID, itemID uuid.UUID, dates []time.Time, available bool, reason string) ([]models.Availability, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.SetAvailability",
		attribute.String("item_id", itemID.String()))
	defer span.End()

	if len(dates) == 0 {
		return nil, invalid("at least one date is required")
	}
	if len(dates) > maxBlockDates {
		return nil, invalid("at most %d dates can be changed at once", maxBlockDates)
	}

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != ownerID {
		return nil, forbidden("only the item owner can manage availability")
	}

	var note *string
	if r := strings.TrimSpace(reason); r != "" {
		note = &r
	}

	now := s.now().UTC()
	seen := make(map[time.Time]bool, len(dates))
	records := make([]models.Availability, 0, len(dates))
	for _, d := range dates {
		d = models.TruncateDate(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		records = append(records, models.Availability{
			ItemID:      itemID,
			Date:        d,
			IsAvailable: available,
			Reason:      note,
			UpdatedAt:   now,
		})
	}

	if err := s.repo.SetAvailability(ctx, records); err != nil {
		if errors.Is(err, models.ErrDatesUnavailable) {
			return nil, conflict("one or more dates are held by a booking")
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}

	s.logger.Info("Availability updated",
		zap.String("item_id", itemID.String()),
		zap.Int("dates", len(records)),
		zap.Bool("available", available))
	return records, nil
}

// ExpireStalePending cancels pending requests whose start date is before asOf and
// returns how many were cancelled
func (s *BookingService) ExpireStalePending(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ExpireStalePending")
	defer span.End()

	stale, err := s.repo.ListBookingsStartingBefore(ctx, models.BookingStatusPending, models.TruncateDate(asOf))
	if err != nil {
		util.RecordError(span, err)
		return 0, fmt.Errorf("failed to list stale bookings: %w", err)
	}

	return s.transitionAll(ctx, stale, models.BookingStatusCancelled, expiredReason), nil
}

// ActivateDueBookings starts confirmed rentals whose start date is on or before asOf
// and returns how many were activated
func (s *BookingService) ActivateDueBookings(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ActivateDueBookings")
	defer span.End()

	due, err := s.repo.ListBookingsStartingBefore(ctx, models.BookingStatusConfirmed, models.TruncateDate(asOf).AddDate(0, 0, 1))
	if err != nil {
		util.RecordError(span, err)
		return 0, fmt.Errorf("failed to list due bookings: %w", err)
	}

	return s.transitionAll(ctx, due, models.BookingStatusActive, ""), nil
}

func (s *BookingService) transitionAll(ctx context.Context, bookings []models.Booking, to, reason string) int {
	count := 0
	for i := range bookings {
		b := &bookings[i]
		if _, err := lookupTransition(b.Status, to); err != nil {
			continue
		}
		if _, err := s.transition(ctx, b, nil, to, reason); err != nil {
			if IsKind(err, KindConflict) {
				s.logger.Debug("Booking changed before job transition",
					zap.String("booking_id", b.ID.String()))
				continue
			}
			s.logger.Error("Failed to transition booking",
				zap.String("booking_id", b.ID.String()),
				zap.String("to", to),
				zap.Error(err))
			continue
		}
		count++
	}
	return count
}

func (s *BookingService) getItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("item %s not found", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item.DeletedAt != nil {
		return nil, notFound("item %s not found", itemID)
	}
	return item, nil
}

func (s *BookingService) getBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("booking %s not found", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) publishCreated(ctx context.Context, b *models.Booking) {
	event := &models.BookingCreatedEvent{
		BaseEvent:    models.NewBaseEvent(models.EventTypeBookingCreated),
		BookingID:    b.ID,
		ItemID:       b.ItemID,
		RenterID:     b.RenterID,
		OwnerID:      b.OwnerID,
		StartDate:    b.StartDate.Format(models.DateLayout),
		EndDate:      b.EndDate.Format(models.DateLayout),
		TotalCents:   b.TotalCents,
		PickupMethod: b.PickupMethod,
	}

	if err := s.events.PublishBookingCreated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish BookingCreated event",
			zap.String("booking_id", b.ID.String()),
			zap.Error(err))
	}
}

// replay returns the booking an idempotency key already produced, if any.
// Lookup failures fall through to a normal create.
func (s *BookingService) replay(ctx context.Context, key string) *models.Booking {
	if s.idempotency == nil {
		return nil
	}

	bookingID, found, err := s.idempotency.GetBookingID(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn("Idempotency key points to missing booking",
			zap.String("key", key),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err))
		return nil
	}

	util.BookingIdempotentReplaysTotal.Inc()
	s.logger.Info("Duplicate booking request detected",
		zap.String("key", key),
		zap.String("booking_id", booking.ID.String()))
	return booking
}

func (s *BookingService) remember(ctx context.Context, key string, bookingID uuid.UUID) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.SaveBookingID(ctx, key, bookingID, s.opts.IdempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// idempotencyKey scopes the client key to the renter so keys cannot collide across users
func idempotencyKey(req *CreateBookingRequest) string {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return ""
	}
	return req.RenterID.String() + ":" + key
}

// checkBookingRange enforces end > start and the maximum rental length
func checkBookingRange(start, end time.Time) error {
	if !end.After(start) {
		return invalid("end date must be after start date")
	}
	if models.InclusiveDays(start, end) > maxBookingDays {
		return invalid("a booking cannot be longer than %d days", maxBookingDays)
	}
	return nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := models.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("start date: %v", err)
	}
	end, err := models.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("end date: %v", err)
	}
	return start, end, nil
}

// ValidPickupMethod reports whether method is a supported hand-over option
func ValidPickupMethod(method string) bool {
	return method == models.PickupMethodPickup || method == models.PickupMethodDelivery
}

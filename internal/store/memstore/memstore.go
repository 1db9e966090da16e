// Package memstore is an in-process implementation of the booking repositories.
// Every operation runs under one mutex, which gives booking creation the same
// all-or-nothing behaviour the Postgres store gets from a serializable transaction.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
)

type dateKey struct {
	itemID uuid.UUID
	date   string
}

func keyFor(itemID uuid.UUID, d time.Time) dateKey {
	return dateKey{itemID: itemID, date: d.Format(models.DateLayout)}
}

// Store keeps items, bookings, availability and activity in memory
type Store struct {
	mu           sync.Mutex
	items        map[uuid.UUID]models.Item
	bookings     map[uuid.UUID]models.Booking
	availability map[dateKey]models.Availability
	activity     []models.BookingActivity
	eventIDs     map[string]bool
	activitySeq  int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		items:        make(map[uuid.UUID]models.Item),
		bookings:     make(map[uuid.UUID]models.Booking),
		availability: make(map[dateKey]models.Availability),
		eventIDs:     make(map[string]bool),
	}
}

// PutItem inserts or replaces an item
func (s *Store) PutItem(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// LoadItems reads a JSON array of items and stores each of them
func (s *Store) LoadItems(r io.Reader) (int, error) {
	var items []models.Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("failed to decode items: %w", err)
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			return 0, fmt.Errorf("item %q has no id", item.Title)
		}
		s.PutItem(item)
	}
	return len(items), nil
}

// GetItem returns an item by id
func (s *Store) GetItem(_ context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &item, nil
}

// GetBooking returns a booking by id
func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

// ListBookings returns the newest bookings matching filter and the total match count
func (s *Store) ListBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Booking
	for _, b := range s.bookings {
		if filter.RenterID != nil && b.RenterID != *filter.RenterID {
			continue
		}
		if filter.OwnerID != nil && b.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []models.Booking{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

// FindOverlappingBookings returns bookings on the item in statuses that share a day with [start, end]
func (s *Store) FindOverlappingBookings(_ context.Context, itemID uuid.UUID, start, end time.Time, statuses []string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapping(itemID, start, end, statuses), nil
}

func (s *Store) overlapping(itemID uuid.UUID, start, end time.Time, statuses []string) []models.Booking {
	var result []models.Booking
	for _, b := range s.bookings {
		if b.ItemID != itemID || !contains(statuses, b.Status) {
			continue
		}
		if models.RangesOverlap(b.StartDate, b.EndDate, start, end) {
			result = append(result, b)
		}
	}
	return result
}

// ListUnavailableDates returns the unavailable records of the item in [start, end]
func (s *Store) ListUnavailableDates(_ context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unavailable(itemID, start, end), nil
}

func (s *Store) unavailable(itemID uuid.UUID, start, end time.Time) []models.Availability {
	var result []models.Availability
	for _, d := range models.DateRange(start, end) {
		if rec, ok := s.availability[keyFor(itemID, d)]; ok && !rec.IsAvailable {
			result = append(result, rec)
		}
	}
	return result
}

// CreateBooking re-checks the dates and stores the booking with its availability records
func (s *Store) CreateBooking(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[booking.ItemID]; !ok || item.DeletedAt != nil {
		return models.ErrNotFound
	}
	if len(s.overlapping(booking.ItemID, booking.StartDate, booking.EndDate, models.BlockingStatuses)) > 0 {
		return models.ErrDatesUnavailable
	}
	if len(s.unavailable(booking.ItemID, booking.StartDate, booking.EndDate)) > 0 {
		return models.ErrDatesUnavailable
	}

	s.bookings[booking.ID] = *booking

	reason := "booked"
	bookingID := booking.ID
	for _, d := range booking.Dates() {
		s.availability[keyFor(booking.ItemID, d)] = models.Availability{
			ItemID:      booking.ItemID,
			Date:        d,
			IsAvailable: false,
			Reason:      &reason,
			BookingID:   &bookingID,
			UpdatedAt:   booking.CreatedAt,
		}
	}
	return nil
}

// TransitionBooking saves booking if the stored status still equals from
func (s *Store) TransitionBooking(_ context.Context, booking *models.Booking, from string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bookings[booking.ID]
	if !ok {
		return models.ErrNotFound
	}
	if current.Status != from {
		return models.ErrStatusChanged
	}

	s.bookings[booking.ID] = *booking

	if booking.Status == models.BookingStatusCancelled {
		for key, rec := range s.availability {
			if rec.BookingID != nil && *rec.BookingID == booking.ID {
				delete(s.availability, key)
			}
		}
	}
	return nil
}

// SetAvailability upserts owner records unless a booking holds one of the dates
func (s *Store) SetAvailability(_ context.Context, records []models.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if existing, ok := s.availability[keyFor(rec.ItemID, rec.Date)]; ok && existing.BookingID != nil {
			return models.ErrDatesUnavailable
		}
	}
	for _, rec := range records {
		rec.BookingID = nil
		s.availability[keyFor(rec.ItemID, rec.Date)] = rec
	}
	return nil
}

// ListAvailability returns every availability record of the item in [start, end]
func (s *Store) ListAvailability(_ context.Context, itemID uuid.UUID, start, end time.Time) ([]models.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Availability
	for _, d := range models.DateRange(start, end) {
		if rec, ok := s.availability[keyFor(itemID, d)]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

// ListBookingsStartingBefore returns bookings in status starting before the given date
func (s *Store) ListBookingsStartingBefore(_ context.Context, status string, before time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Booking
	for _, b := range s.bookings {
		if b.Status == status && b.StartDate.Before(before) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	return result, nil
}

// RecordActivity appends an entry unless its event id was seen before
func (s *Store) RecordActivity(_ context.Context, activity *models.BookingActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventIDs[activity.EventID] {
		return models.ErrDuplicateEvent
	}
	s.eventIDs[activity.EventID] = true
	s.activitySeq++
	activity.ID = s.activitySeq
	s.activity = append(s.activity, *activity)
	return nil
}

// ListActivity returns the booking's timeline, oldest first
func (s *Store) ListActivity(_ context.Context, bookingID uuid.UUID) ([]models.BookingActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.BookingActivity
	for _, a := range s.activity {
		if a.BookingID == bookingID {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeBookingCreated       = "BOOKING_CREATED"
	EventTypeBookingStatusChanged = "BOOKING_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and the current time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// BookingCreatedEvent published when a booking request is stored
type BookingCreatedEvent struct {
	BaseEvent
	BookingID    uuid.UUID `json:"booking_id"`
	ItemID       uuid.UUID `json:"item_id"`
	RenterID     uuid.UUID `json:"renter_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	TotalCents   int64     `json:"total_cents"`
	PickupMethod string    `json:"pickup_method"`
}

// BookingStatusChangedEvent published on every accepted status transition.
// ActorID is nil for transitions made by scheduled jobs.
type BookingStatusChangedEvent struct {
	BaseEvent
	BookingID  uuid.UUID  `json:"booking_id"`
	ItemID     uuid.UUID  `json:"item_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Reason     string     `json:"reason,omitempty"`
}

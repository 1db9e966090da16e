package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format for calendar dates
const DateLayout = "2006-01-02"

// Item represents a rental listing
type Item struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	OwnerID          uuid.UUID  `db:"owner_id" json:"owner_id"`
	Title            string     `db:"title" json:"title"`
	PricePerDayCents int64      `db:"price_per_day_cents" json:"price_per_day_cents"`
	DepositCents     int64      `db:"deposit_cents" json:"deposit_cents"`
	IsAvailable      bool       `db:"is_available" json:"is_available"`
	Status           string     `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Item statuses
const (
	ItemStatusDraft    = "draft"
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
	ItemStatusArchived = "archived"
)

// Bookable reports whether new bookings may be placed on the item
func (i *Item) Bookable() bool {
	return i.Status == ItemStatusActive && i.IsAvailable
}

// Booking represents a reservation of an item for an inclusive date range
type Booking struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ItemID             uuid.UUID  `db:"item_id" json:"item_id"`
	RenterID           uuid.UUID  `db:"renter_id" json:"renter_id"`
	OwnerID            uuid.UUID  `db:"owner_id" json:"owner_id"`
	StartDate          time.Time  `db:"start_date" json:"start_date"`
	EndDate            time.Time  `db:"end_date" json:"end_date"`
	DailyRateCents     int64      `db:"daily_rate_cents" json:"daily_rate_cents"`
	TotalDays          int        `db:"total_days" json:"total_days"`
	SubtotalCents      int64      `db:"subtotal_cents" json:"subtotal_cents"`
	ServiceFeeCents    int64      `db:"service_fee_cents" json:"service_fee_cents"`
	DeliveryFeeCents   int64      `db:"delivery_fee_cents" json:"delivery_fee_cents"`
	DepositCents       int64      `db:"deposit_cents" json:"deposit_cents"`
	TotalCents         int64      `db:"total_cents" json:"total_cents"`
	PickupMethod       string     `db:"pickup_method" json:"pickup_method"`
	Status             string     `db:"status" json:"status"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `db:"cancelled_by" json:"cancelled_by,omitempty"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ActivatedAt        *time.Time `db:"activated_at" json:"activated_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Dates returns every calendar date the booking covers, start and end included
func (b *Booking) Dates() []time.Time {
	return DateRange(b.StartDate, b.EndDate)
}

// IsParty reports whether the user is the renter or the owner of the booking
func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.RenterID == userID || b.OwnerID == userID
}

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// BlockingStatuses are the booking statuses that make overlapping dates unavailable
var BlockingStatuses = []string{BookingStatusConfirmed, BookingStatusActive}

// Pickup methods
const (
	PickupMethodPickup   = "pickup"
	PickupMethodDelivery = "delivery"
)

// Availability is a per-date availability record for an item
type Availability struct {
	ItemID      uuid.UUID  `db:"item_id" json:"item_id"`
	Date        time.Time  `db:"date" json:"date"`
	IsAvailable bool       `db:"is_available" json:"is_available"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
	BookingID   *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// BookingActivity is one entry of a booking's timeline, projected from booking events
type BookingActivity struct {
	ID         int64      `db:"id" json:"id"`
	EventID    string     `db:"event_id" json:"event_id"`
	BookingID  uuid.UUID  `db:"booking_id" json:"booking_id"`
	EventType  string     `db:"event_type" json:"event_type"`
	ActorID    *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	FromStatus *string    `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string     `db:"to_status" json:"to_status"`
	Note       *string    `db:"note" json:"note,omitempty"`
	OccurredAt time.Time  `db:"occurred_at" json:"occurred_at"`
}

// BookingFilter selects bookings for listing
type BookingFilter struct {
	RenterID *uuid.UUID
	OwnerID  *uuid.UUID
	Status   string
	Limit    int
	Offset   int
}

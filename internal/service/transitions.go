package service

import (
	"time"

	"rentwy-service/internal/models"

	"github.com/google/uuid"
)

type role uint8

const (
	roleRenter role = 1 << iota
	roleOwner
)

func (r role) String() string {
	switch r {
	case roleOwner:
		return "item owner"
	case roleRenter:
		return "renter"
	default:
		return "owner or renter"
	}
}

type transitionRule struct {
	allowed        role
	reasonRequired bool
}

// transitions lists every permitted status change. Anything absent is rejected.
var transitions = map[string]map[string]transitionRule{
	models.BookingStatusPending: {
		models.BookingStatusConfirmed: {allowed: roleOwner},
		models.BookingStatusCancelled: {allowed: roleOwner | roleRenter, reasonRequired: true},
	},
	models.BookingStatusConfirmed: {
		models.BookingStatusActive:    {allowed: roleOwner | roleRenter},
		models.BookingStatusCancelled: {allowed: roleOwner | roleRenter, reasonRequired: true},
	},
	models.BookingStatusActive: {
		models.BookingStatusCompleted: {allowed: roleOwner},
	},
}

func knownStatus(status string) bool {
	switch status {
	case models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusActive,
		models.BookingStatusCompleted, models.BookingStatusCancelled:
		return true
	}
	return false
}

func lookupTransition(from, to string) (transitionRule, error) {
	rule, ok := transitions[from][to]
	if ok {
		return rule, nil
	}
	switch {
	case from == to:
		return rule, conflict("booking is already %s", from)
	case from == models.BookingStatusActive && to == models.BookingStatusCancelled:
		return rule, conflict("active bookings cannot be cancelled")
	default:
		return rule, conflict("cannot change booking status from %s to %s", from, to)
	}
}

func actorRole(b *models.Booking, actorID uuid.UUID) role {
	var r role
	if b.RenterID == actorID {
		r |= roleRenter
	}
	if b.OwnerID == actorID {
		r |= roleOwner
	}
	return r
}

// applyTransition moves b to status and stamps the matching timestamp. actorID is nil
// for transitions made by scheduled jobs.
func applyTransition(b *models.Booking, status string, actorID *uuid.UUID, reason string, now time.Time) {
	b.Status = status
	b.UpdatedAt = now

	switch status {
	case models.BookingStatusConfirmed:
		b.ConfirmedAt = &now
	case models.BookingStatusActive:
		b.ActivatedAt = &now
	case models.BookingStatusCompleted:
		b.CompletedAt = &now
	case models.BookingStatusCancelled:
		b.CancelledAt = &now
		b.CancelledBy = actorID
		b.CancellationReason = &reason
	}
}

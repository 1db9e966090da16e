package service

import (
	"context"
	"testing"
	"time"

	"rentwy-service/internal/models"
	"rentwy-service/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityTimeline(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	activity := NewActivityService(st, st)

	svc := NewBookingService(st, activity, nil, BookingOptions{DeliveryFeeCents: 1500})

	owner, renter := uuid.New(), uuid.New()
	item := models.Item{
		ID:               uuid.New(),
		OwnerID:          owner,
		PricePerDayCents: 1000,
		IsAvailable:      true,
		Status:           models.ItemStatusActive,
	}
	st.PutItem(item)

	b, err := svc.CreateBooking(ctx, &CreateBookingRequest{
		RenterID:     renter,
		ItemID:       item.ID,
		StartDate:    "2024-07-01",
		EndDate:      "2024-07-04",
		PickupMethod: models.PickupMethodPickup,
	})
	require.NoError(t, err)

	_, err = svc.UpdateBookingStatus(ctx, b.ID, owner, models.BookingStatusConfirmed, "")
	require.NoError(t, err)
	_, err = svc.UpdateBookingStatus(ctx, b.ID, renter, models.BookingStatusCancelled, "found another dress")
	require.NoError(t, err)

	timeline, err := activity.GetActivity(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 3)

	assert.Equal(t, models.EventTypeBookingCreated, timeline[0].EventType)
	assert.Equal(t, models.BookingStatusPending, timeline[0].ToStatus)
	assert.Nil(t, timeline[0].FromStatus)

	assert.Equal(t, models.BookingStatusConfirmed, timeline[1].ToStatus)
	require.NotNil(t, timeline[1].ActorID)
	assert.Equal(t, owner, *timeline[1].ActorID)

	assert.Equal(t, models.BookingStatusCancelled, timeline[2].ToStatus)
	require.NotNil(t, timeline[2].Note)
	assert.Equal(t, "found another dress", *timeline[2].Note)

	_, err = activity.GetActivity(ctx, uuid.New(), b.ID)
	assertKind(t, err, KindForbidden)

	_, err = activity.GetActivity(ctx, owner, uuid.New())
	assertKind(t, err, KindNotFound)
}

func TestRecordStatusChangedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	activity := NewActivityService(st, st)

	event := &models.BookingStatusChangedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeBookingStatusChanged),
		BookingID:  uuid.New(),
		FromStatus: models.BookingStatusConfirmed,
		ToStatus:   models.BookingStatusActive,
	}

	require.NoError(t, activity.RecordStatusChanged(ctx, event))
	require.NoError(t, activity.RecordStatusChanged(ctx, event))

	entries, err := st.ListActivity(ctx, event.BookingID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Nil(t, entries[0].Note)
}

func TestRecordRejectsEventWithoutID(t *testing.T) {
	st := memstore.New()
	activity := NewActivityService(st, st)

	err := activity.RecordBookingCreated(context.Background(), &models.BookingCreatedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeBookingCreated, Timestamp: time.Now()},
		BookingID: uuid.New(),
	})
	assert.Error(t, err)
}

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rentwy-service/internal/models"
	"rentwy-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing booking events
type EventPublisher struct {
	publisher MessagePublisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(publisher MessagePublisher) *EventPublisher {
	return &EventPublisher{publisher: publisher}
}

func bookingKey(id uuid.UUID) string {
	return "booking-" + id.String()
}

// PublishBookingCreated publishes BookingCreated event
func (ep *EventPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	return ep.publisher.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingStatusChanged publishes BookingStatusChanged event
func (ep *EventPublisher) PublishBookingStatusChanged(ctx context.Context, event *models.BookingStatusChangedEvent) error {
	return ep.publisher.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// ErrMalformedMessage marks a message that can never be handled, however often it is retried
var ErrMalformedMessage = errors.New("malformed message")

// EventHandler handles incoming events
type EventHandler struct {
	onBookingCreated       func(context.Context, *models.BookingCreatedEvent) error
	onBookingStatusChanged func(context.Context, *models.BookingStatusChangedEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Named("event-handler")}
}

// OnBookingCreated registers a handler for BookingCreated events
func (eh *EventHandler) OnBookingCreated(handler func(context.Context, *models.BookingCreatedEvent) error) {
	eh.onBookingCreated = handler
}

// OnBookingStatusChanged registers a handler for BookingStatusChanged events
func (eh *EventHandler) OnBookingStatusChanged(handler func(context.Context, *models.BookingStatusChangedEvent) error) {
	eh.onBookingStatusChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedMessage, err)
	}

	if baseEvent.EventID == "" {
		return fmt.Errorf("%w: event has no id", ErrMalformedMessage)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeBookingCreated:
		if eh.onBookingCreated != nil {
			var event models.BookingCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: BookingCreated event: %v", ErrMalformedMessage, err)
			}
			return eh.onBookingCreated(ctx, &event)
		}

	case models.EventTypeBookingStatusChanged:
		if eh.onBookingStatusChanged != nil {
			var event models.BookingStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: BookingStatusChanged event: %v", ErrMalformedMessage, err)
			}
			return eh.onBookingStatusChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

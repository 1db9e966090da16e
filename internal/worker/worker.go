package worker

import (
	"context"

	"rentwy-service/internal/broker"
	"rentwy-service/internal/service"
	"rentwy-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource is the consuming side of the event stream
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ActivityWorker projects booking events from the stream into the activity timeline
type ActivityWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewActivityWorker creates a new activity worker
func NewActivityWorker(consumer MessageSource, activity *service.ActivityService) *ActivityWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnBookingCreated(activity.RecordBookingCreated)
	eventHandler.OnBookingStatusChanged(activity.RecordStatusChanged)

	return &ActivityWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Named("activity-worker"),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *ActivityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting activity worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	w.logger.Info("Stopping activity worker")
	return w.consumer.Close()
}

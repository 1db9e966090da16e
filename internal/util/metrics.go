package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_rejected_total",
		Help: "Total number of booking requests rejected",
	}, []string{"reason"})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Total number of accepted booking status transitions",
	}, []string{"from", "to"})

	BookingIdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_idempotent_replays_total",
		Help: "Total number of booking submissions answered from an idempotency key",
	})

	AvailabilityCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_check_latency_seconds",
		Help:    "Latency of availability checks",
		Buckets: prometheus.DefBuckets,
	})

	BookingCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_create_latency_seconds",
		Help:    "Latency of the transactional booking insert",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of booking events that could not be published",
	}, []string{"event_type"})

	EventBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_publisher_breaker_state",
		Help: "Event publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	ActivityRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_activity_recorded_total",
		Help: "Total number of booking events projected into the activity timeline",
	}, []string{"event_type"})

	ConsumerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_consumer_retries_total",
		Help: "Total number of failed event handling attempts that were retried",
	}, []string{"topic"})

	ConsumerMessagesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_consumer_messages_skipped_total",
		Help: "Total number of malformed events committed without being handled",
	}, []string{"topic"})

	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_job_runs_total",
		Help: "Total number of scheduled job runs",
	}, []string{"job", "result"})

	JobBookingsAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_job_bookings_affected_total",
		Help: "Total number of bookings transitioned by scheduled jobs",
	}, []string{"job"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

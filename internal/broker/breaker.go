package broker

import (
	"context"
	"time"

	"rentwy-service/internal/util"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes when the publisher stops talking to the broker
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultBreakerSettings suits a broker that is either up or down
var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	OpenTimeout:         30 * time.Second,
}

// BreakerPublisher fails fast while the wrapped publisher keeps failing
type BreakerPublisher struct {
	next MessagePublisher
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next with a circuit breaker
func NewBreakerPublisher(name string, next MessagePublisher, settings BreakerSettings) *BreakerPublisher {
	logger := util.Named("breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			util.EventBreakerState.Set(stateValue(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("circuit", cbName),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	util.EventBreakerState.Set(0)

	return &BreakerPublisher{next: next, cb: cb}
}

// PublishEvent forwards to the wrapped publisher unless the breaker is open
func (b *BreakerPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.PublishEvent(ctx, key, event)
	})
	return err
}

// State returns the breaker state name
func (b *BreakerPublisher) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Server.LogLevel)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int64(1500), cfg.Business.DeliveryFeeCents)
	assert.Equal(t, 24*time.Hour, cfg.Business.IdempotencyTTL)
	assert.Equal(t, "booking-events", cfg.Kafka.TopicBooking)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Jobs.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ENV", "production")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("BUSINESS_DELIVERY_FEE_CENTS", "0")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JOBS_LOCK_TTL", "90s")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, int64(0), cfg.Business.DeliveryFeeCents)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Jobs.LockTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:    StoreConfig{Driver: "postgres"},
			Database: DatabaseConfig{URL: "postgres://localhost/rentwy"},
			Auth:     AuthConfig{JWTSecret: testSecret},
			Kafka:    KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Driver = "mongo"
		assert.ErrorContains(t, cfg.Validate(), "unknown store driver")
	})

	t.Run("Short secret", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.JWTSecret = "short"
		assert.ErrorContains(t, cfg.Validate(), "at least 32 characters")
	})

	t.Run("Missing secret", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.JWTSecret = ""
		assert.ErrorContains(t, cfg.Validate(), "JWT secret is required")
	})

	t.Run("Negative delivery fee", func(t *testing.T) {
		cfg := valid()
		cfg.Business.DeliveryFeeCents = -1
		assert.ErrorContains(t, cfg.Validate(), "delivery fee")
	})

	t.Run("Kafka without brokers", func(t *testing.T) {
		cfg := valid()
		cfg.Kafka.Brokers = []string{""}
		assert.ErrorContains(t, cfg.Validate(), "kafka broker")
	})

	t.Run("Memory driver needs no database", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Driver = "memory"
		cfg.Database.URL = ""
		assert.NoError(t, cfg.Validate())
	})
}

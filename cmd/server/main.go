package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentwy-service/config"
	"rentwy-service/internal/api"
	"rentwy-service/internal/broker"
	"rentwy-service/internal/redisclient"
	"rentwy-service/internal/scheduler"
	"rentwy-service/internal/security"
	"rentwy-service/internal/service"
	"rentwy-service/internal/store"
	"rentwy-service/internal/store/memstore"
	"rentwy-service/internal/util"
	"rentwy-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bookingStore is satisfied by both the postgres and the memory driver
type bookingStore interface {
	service.BookingRepository
	service.ActivityRepository
}

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting rentwy service", zap.String("env", cfg.Server.Env))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	checks := map[string]api.Pinger{}

	var repo bookingStore
	switch cfg.Store.Driver {
	case "memory":
		mem := memstore.New()
		if cfg.Store.SeedFile != "" {
			n, err := loadSeed(mem, cfg.Store.SeedFile)
			if err != nil {
				logger.Fatal("Failed to load seed items", zap.Error(err))
			}
			logger.Info("Seed items loaded", zap.Int("items", n))
		}
		repo = mem
		logger.Warn("Using in-memory store; bookings are lost on restart")
	default:
		db, err := store.NewStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repo = db
		checks["database"] = db
		logger.Info("Database connected")
	}

	var (
		idempotency service.IdempotencyStore
		locker      scheduler.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idempotency = redisClient
		locker = redisClient
		checks["redis"] = redisClient
		logger.Info("Redis connected")
	}

	activityService := service.NewActivityService(repo, repo)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		events         service.EventPublisher = activityService
		activityWorker *worker.ActivityWorker
	)
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
		defer producer.Close()
		guarded := broker.NewBreakerPublisher(cfg.Kafka.TopicBooking, producer, broker.DefaultBreakerSettings)
		events = broker.NewEventPublisher(guarded)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicBooking))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking, cfg.Kafka.ConsumerGroup)
		activityWorker = worker.NewActivityWorker(consumer, activityService)
		go func() {
			if err := activityWorker.Start(workerCtx); err != nil {
				logger.Error("Activity worker error", zap.Error(err))
			}
		}()
	}

	bookingService := service.NewBookingService(repo, events, idempotency, service.BookingOptions{
		DeliveryFeeCents: cfg.Business.DeliveryFeeCents,
		IdempotencyTTL:   cfg.Business.IdempotencyTTL,
	})

	var jobs *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		jobs, err = scheduler.NewScheduler(cfg.Jobs, bookingService, locker)
		if err != nil {
			logger.Fatal("Failed to set up scheduler", zap.Error(err))
		}
		jobs.Start()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	handler := api.NewHandler(bookingService, activityService, tokens, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if jobs != nil {
		jobs.Stop()
	}

	workerCancel()
	if activityWorker != nil {
		if err := activityWorker.Stop(); err != nil {
			logger.Error("Failed to stop activity worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func loadSeed(mem *memstore.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return mem.LoadItems(f)
}

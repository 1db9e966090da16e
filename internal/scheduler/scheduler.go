package scheduler

import (
	"context"
	"fmt"
	"time"

	"rentwy-service/config"
	"rentwy-service/internal/models"
	"rentwy-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job names, also used as lock names and metric labels
const (
	JobExpireStalePending = "expire-stale-pending"
	JobActivateDue        = "activate-due-bookings"
)

const defaultLockTTL = 5 * time.Minute

// BookingJobs is the housekeeping surface of the booking service
type BookingJobs interface {
	ExpireStalePending(ctx context.Context, asOf time.Time) (int, error)
	ActivateDueBookings(ctx context.Context, asOf time.Time) (int, error)
}

// Locker keeps a job from running on more than one replica at a time
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]func(context.Context, time.Time) (int, error)
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewScheduler registers the booking jobs. locker may be nil, in which case jobs run unlocked.
func NewScheduler(cfg config.JobsConfig, bookings BookingJobs, locker Locker) (*Scheduler, error) {
	// UTC with seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	s := &Scheduler{
		cron: c,
		jobs: map[string]func(context.Context, time.Time) (int, error){
			JobExpireStalePending: bookings.ExpireStalePending,
			JobActivateDue:        bookings.ActivateDueBookings,
		},
		locker:  locker,
		lockTTL: lockTTL,
		logger:  util.Named("scheduler"),
		now:     time.Now,
	}

	specs := map[string]string{
		JobExpireStalePending: cfg.ExpirePendingSpec,
		JobActivateDue:        cfg.ActivateDueSpec,
	}
	for name, spec := range specs {
		name := name
		if _, err := s.cron.AddFunc(spec, func() { s.run(name) }); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", name, err)
		}
	}

	s.logger.Info("Cron jobs registered", zap.Int("jobs", len(specs)))
	return s, nil
}

func (s *Scheduler) run(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	if err := s.RunJob(ctx, name); err != nil {
		s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
	}
}

// RunJob runs one job immediately for today's date
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	ctx, span := util.StartSpan(ctx, "Scheduler."+name)
	defer span.End()

	if s.locker != nil {
		token, acquired, err := s.locker.AcquireLock(ctx, name, s.lockTTL)
		if err != nil {
			util.JobRunsTotal.WithLabelValues(name, "lock_error").Inc()
			util.RecordError(span, err)
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !acquired {
			util.JobRunsTotal.WithLabelValues(name, "skipped").Inc()
			s.logger.Info("Job already running elsewhere", zap.String("job", name))
			return nil
		}
		defer func() {
			// the run context may have expired
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.locker.ReleaseLock(releaseCtx, name, token); err != nil {
				s.logger.Warn("Failed to release job lock", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	asOf := models.TruncateDate(s.now().UTC())
	affected, err := job(ctx, asOf)
	util.JobBookingsAffected.WithLabelValues(name).Add(float64(affected))
	if err != nil {
		util.JobRunsTotal.WithLabelValues(name, "error").Inc()
		util.RecordError(span, err)
		return err
	}

	util.JobRunsTotal.WithLabelValues(name, "success").Inc()
	s.logger.Info("Job finished",
		zap.String("job", name),
		zap.String("as_of", asOf.Format(models.DateLayout)),
		zap.Int("bookings", affected))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler")
	<-s.cron.Stop().Done()
}

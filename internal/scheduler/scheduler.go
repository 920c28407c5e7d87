package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

const absenceJobName = "mark-absences"

// AbsenceMarker closes finished sessions by recording absences
type AbsenceMarker interface {
	MarkAbsences(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the periodic absence job
type Scheduler struct {
	s       gocron.Scheduler
	marker  AbsenceMarker
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New registers the absence job to run every interval. The first run happens
// right after Start so sessions that ended while the service was down are closed.
func New(marker AbsenceMarker, interval time.Duration, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("absence job interval must be positive, got %s", interval)
	}
	if loc == nil {
		loc = time.UTC
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{
		s:       s,
		marker:  marker,
		logger:  logger,
		now:     time.Now,
		timeout: interval,
		ctx:     ctx,
		cancel:  cancel,
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sch.run),
		gocron.WithName(absenceJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
				logger.Error("Scheduled job failed", "job", name, "error", err)
			}),
		),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to register absence job: %w", err)
	}

	return sch, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", "jobs", len(s.s.Jobs()))
	s.s.Start()
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) run() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	marked, err := s.marker.MarkAbsences(ctx, s.now())
	if err != nil {
		return fmt.Errorf("mark absences: %w", err)
	}
	s.logger.Info("Absence job finished", "marked", marked, "duration", time.Since(start))
	return nil
}

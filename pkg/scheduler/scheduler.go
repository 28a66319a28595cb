package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for job runs and cron internals.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLocation interprets schedules in loc. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithJobTimeout bounds each run. Zero means no timeout.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// Scheduler runs registered jobs until its Start context is cancelled.
type Scheduler struct {
	log     *slog.Logger
	loc     *time.Location
	timeout time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]Job
	ctx     context.Context
	started bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates an idle scheduler. Register jobs with Add, then call Start.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:  slog.Default(),
		loc:  time.UTC,
		jobs: make(map[string]Job),
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	l := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithParser(parser),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	return s
}

// Add registers job under name on a cron spec. Descriptors like "@hourly"
// and "@every 5m" are accepted.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}
	s.jobs[name] = job
	return nil
}

// Trigger runs a registered job immediately in the calling goroutine.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job(ctx)
}

// Start runs the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx = ctx
	jobs := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.log.InfoContext(ctx, "scheduler started",
		logger.Component("scheduler"),
		slog.Int("jobs", jobs),
		slog.String("location", s.loc.String()),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped", logger.Component("scheduler"))
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	attrs := []any{
		logger.Component("scheduler"),
		slog.String("job", name),
		logger.Duration(time.Since(start)),
	}
	if err != nil {
		s.log.ErrorContext(ctx, "scheduled job failed", append(attrs, logger.Error(err))...)
		return
	}
	s.log.DebugContext(ctx, "scheduled job finished", attrs...)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, append([]any{logger.Component("cron")}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{logger.Component("cron"), logger.Error(err)}, keysAndValues...)...)
}

// Package scheduler runs named jobs on cron schedules.
//
// It wraps robfig/cron with slog logging, panic recovery and
// skip-if-still-running semantics, and hands each run a context derived from
// the one passed to Start:
//
//	s := scheduler.New(scheduler.WithLogger(log), scheduler.WithLocation(loc))
//	err := s.Add("apply-due", "@hourly", func(ctx context.Context) error {
//		_, err := engine.ApplyDueScheduledChanges(ctx, time.Now(), "scheduler")
//		return err
//	})
//	g.Go(func() error { return s.Start(ctx) })
package scheduler

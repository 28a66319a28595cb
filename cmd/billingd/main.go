package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tenantplans/pkg/config"
	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/requestid"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

func main() {
	cfg := config.MustLoad[Config]()

	log := logger.New(
		logger.WithEnvironment(cfg.Env.String(), serviceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), tenant.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close(context.WithoutCancel(ctx))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx, app.router)
	})
	g.Go(func() error {
		return app.scheduler.Start(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("service stopped")
	return nil
}

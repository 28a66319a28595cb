package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tenantplans/db/migrations"
	"github.com/dmitrymomot/tenantplans/pkg/audit"
	"github.com/dmitrymomot/tenantplans/pkg/clientip"
	"github.com/dmitrymomot/tenantplans/pkg/guard"
	"github.com/dmitrymomot/tenantplans/pkg/httpserver"
	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/opensearch"
	"github.com/dmitrymomot/tenantplans/pkg/pg"
	"github.com/dmitrymomot/tenantplans/pkg/ratelimit"
	"github.com/dmitrymomot/tenantplans/pkg/redis"
	"github.com/dmitrymomot/tenantplans/pkg/requestid"
	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/scheduler"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
	"github.com/dmitrymomot/tenantplans/pkg/usage"
	"github.com/dmitrymomot/tenantplans/svc/billing"
)

const applyDueJob = "apply-due-scheduled-changes"

type app struct {
	log       *slog.Logger
	router    http.Handler
	server    *httpserver.Server
	scheduler *scheduler.Scheduler
	closers   []func(context.Context) error
}

func newApp(ctx context.Context, cfg Config, log *slog.Logger) (a *app, err error) {
	a = &app{log: log}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { pool.Close(); return nil })

	db := pg.OpenDB(pool)
	a.onClose(func(context.Context) error { return db.Close() })

	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx, db, migrations.FS, cfg.Database, log); err != nil {
			return nil, err
		}
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		if rdb, err = redis.Connect(ctx, cfg.Redis); err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	catalog, err := seedCatalog(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	recorder, err := a.auditRecorder(ctx, cfg, db, reg)
	if err != nil {
		return nil, err
	}

	statusCache := a.statusCache(cfg, rdb)

	subObserver, err := subscription.NewPrometheusObserver(cfg.MetricsNamespace, reg)
	if err != nil {
		return nil, err
	}
	engine := subscription.NewEngine(
		subscription.NewPostgresStore(db),
		catalog,
		usage.NewPostgresProvider(db, cfg.Location()),
		subscription.WithAudit(recorder),
		subscription.WithLogger(log),
		subscription.WithObserver(subObserver),
		subscription.WithLocation(cfg.Location()),
		subscription.WithTrialDays(cfg.TrialDays),
		subscription.WithGraceDays(cfg.GraceDays),
		subscription.WithStatusListener(guard.CacheListener(statusCache)),
	)

	directory := tenant.NewCachedDirectory(tenant.NewPostgresDirectory(db), 0, cfg.DirectoryCacheTTL)
	resolver := tenant.NewCompositeResolver(
		tenant.NewBearerResolver([]byte(cfg.JWTSecret), directory),
		tenant.NewAPIKeyResolver(directory),
	)

	g, err := a.guard(cfg, engine, resolver, directory, statusCache, rdb, recorder, reg)
	if err != nil {
		return nil, err
	}

	billingSvc := billing.NewService(engine, catalog, billing.WithLogger(log))

	a.router = a.routes(cfg, pool, rdb, reg, g, resolver, billingSvc)
	a.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	a.scheduler = scheduler.New(
		scheduler.WithLogger(log),
		scheduler.WithLocation(cfg.Location()),
		scheduler.WithJobTimeout(cfg.ApplyDueTimeout),
	)
	if err := a.scheduler.Add(applyDueJob, cfg.ApplyDueSchedule, func(ctx context.Context) error {
		res, err := engine.ApplyDueScheduledChanges(ctx, time.Now(), "system:scheduler")
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d scheduled changes failed", res.Failed, res.Scanned)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return a, nil
}

func seedCatalog(ctx context.Context, cfg Config, db *sql.DB) (*subscription.PostgresCatalog, error) {
	entitlements := subscription.DefaultEntitlements(cfg.Currency)
	if cfg.CatalogFile != "" {
		var err error
		if entitlements, err = subscription.LoadEntitlementsFile(entitlements, cfg.CatalogFile); err != nil {
			return nil, err
		}
	}
	catalog := subscription.NewPostgresCatalog(db)
	if err := subscription.SeedCatalog(ctx, catalog, entitlements); err != nil {
		return nil, err
	}
	return catalog, nil
}

// auditRecorder writes to the backends named by AUDIT_BACKEND through one
// async batching sink.
func (a *app) auditRecorder(ctx context.Context, cfg Config, db *sql.DB, reg prometheus.Registerer) (*audit.Recorder, error) {
	var sinks audit.TeeSink
	if cfg.AuditBackend != auditOpenSearch {
		sinks = append(sinks, audit.NewPostgresSink(db))
	}
	if cfg.AuditBackend != auditPostgres {
		client, err := opensearch.New(ctx, cfg.OpenSearch)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, audit.NewOpenSearchSink(client, cfg.OpenSearch.AuditIndex))
	}

	async, flush := audit.NewAsyncSink(sinks, audit.AsyncOptions{
		OnError: func(err error, dropped int) {
			a.log.Error("audit batch dropped",
				logger.Component("audit"),
				logger.Error(err),
				slog.Int("dropped", dropped),
			)
		},
	})
	a.onClose(flush)

	observer, err := audit.NewPrometheusObserver(cfg.MetricsNamespace, reg)
	if err != nil {
		return nil, err
	}
	return audit.NewRecorder(async, audit.WithLogger(a.log), audit.WithObserver(observer)), nil
}

func (a *app) statusCache(cfg Config, rdb *goredis.Client) guard.StatusCache {
	if cfg.CacheBackend == cacheRedis {
		return guard.NewRedisStatusCache(rdb, cfg.Redis.KeyPrefix+"guard:status:", cfg.StatusCacheTTL, a.log)
	}
	return guard.NewMemoryStatusCache(0, cfg.StatusCacheTTL)
}

func (a *app) guard(
	cfg Config,
	engine *subscription.Engine,
	resolver tenant.Resolver,
	directory tenant.Directory,
	cache guard.StatusCache,
	rdb *goredis.Client,
	recorder *audit.Recorder,
	reg prometheus.Registerer,
) (*guard.Guard, error) {
	rules := restriction.DefaultRules()
	if cfg.RouteRulesFile != "" {
		var err error
		if rules, err = restriction.RulesFromFile(cfg.RouteRulesFile); err != nil {
			return nil, err
		}
	}
	classifier, err := restriction.NewClassifier(rules)
	if err != nil {
		return nil, err
	}

	observer, err := guard.NewPrometheusObserver(cfg.MetricsNamespace, reg)
	if err != nil {
		return nil, err
	}

	opts := []guard.Option{
		guard.WithResolver(resolver),
		guard.WithStatusCache(cache),
		guard.WithAudit(recorder),
		guard.WithObserver(observer),
		guard.WithLogger(a.log),
	}
	if cfg.SingleTenantID != uuid.Nil {
		opts = append(opts, guard.WithStorefrontFallback(tenant.NewSingleTenantResolver(cfg.SingleTenantID, directory)))
	}
	if rdb != nil {
		opts = append(opts, guard.WithRateLimitStore(ratelimit.NewRedisStore(rdb, cfg.Redis.KeyPrefix+"ratelimit:")))
	}

	g, err := guard.New(classifier, engine, opts...)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return g.Close() })
	return g, nil
}

func (a *app) routes(
	cfg Config,
	pool *pgxpool.Pool,
	rdb *goredis.Client,
	reg *prometheus.Registry,
	g *guard.Guard,
	resolver tenant.Resolver,
	billingSvc *billing.Service,
) http.Handler {
	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}
	if rdb != nil {
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(clientip.Middleware(clientip.NewExtractor(cfg.TrustedIPHeaders...)))
	r.Use(guard.Middleware(g))

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, 2*time.Second, checks...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Handle("/guard/authorize", guard.ForwardAuthHandler(g))

	r.Route("/billing", func(r chi.Router) {
		r.Use(tenant.Middleware(resolver, tenant.WithLogger(a.log)))
		r.Mount("/", billingSvc.Handle())
	})
	return r
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close runs closers in reverse order of registration.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Error("shutdown cleanup failed", logger.Error(err))
	}
}

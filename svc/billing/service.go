package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/core"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

// DefaultOperatorScope guards the /ops routes.
const DefaultOperatorScope = "billing:operator"

// Engine is the lifecycle surface the handlers drive.
type Engine interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
	Estimate(ctx context.Context, tenantID uuid.UUID, target subscription.Tier, now time.Time) (subscription.Estimate, error)
	Upgrade(ctx context.Context, tenantID uuid.UUID, target subscription.Tier, actor string, dryRun bool) (*subscription.PlanChangeResult, error)
	Downgrade(ctx context.Context, tenantID uuid.UUID, target subscription.Tier, actor string, dryRun bool) (*subscription.PlanChangeResult, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, actor string, dryRun bool) (*subscription.ScheduleResult, error)
	Reactivate(ctx context.Context, tenantID uuid.UUID, actor string, dryRun bool) (*subscription.ScheduleResult, error)
	Provision(ctx context.Context, tenantID uuid.UUID, tier subscription.Tier, actor string) (*subscription.Subscription, error)
	TransitionStatus(ctx context.Context, tenantID uuid.UUID, to subscription.Status, actor, reason string) (*subscription.Subscription, error)
	RecordInvoicePaid(ctx context.Context, tenantID uuid.UUID, actor string) (*subscription.Subscription, error)
	ApplyDueScheduledChanges(ctx context.Context, now time.Time, actor string) (*subscription.BatchResult, error)
}

// Catalog lists the plans offered to tenants.
type Catalog interface {
	List(ctx context.Context) ([]subscription.PlanEntitlement, error)
}

// Service serves the billing HTTP API over an Engine.
type Service struct {
	engine        Engine
	catalog       Catalog
	log           *slog.Logger
	now           func() time.Time
	operatorScope string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for 5xx responses.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time used for estimates and batch runs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOperatorScope sets the scope required by /ops routes.
// Defaults to DefaultOperatorScope.
func WithOperatorScope(scope string) Option {
	return func(s *Service) {
		if scope != "" {
			s.operatorScope = scope
		}
	}
}

// NewService panics when engine or catalog is nil.
func NewService(engine Engine, catalog Catalog, opts ...Option) *Service {
	if engine == nil {
		panic("billing: engine is required")
	}
	if catalog == nil {
		panic("billing: catalog is required")
	}
	s := &Service{
		engine:        engine,
		catalog:       catalog,
		log:           slog.Default(),
		now:           time.Now,
		operatorScope: DefaultOperatorScope,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the billing router.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	opts := func(binders ...core.Bind) []core.WrapOption {
		return []core.WrapOption{core.WithErrorLogger(s.log), core.WithBinders(binders...)}
	}

	r.Get("/plans", core.Wrap(s.plans, opts()...))

	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireIdentity(tenant.WithErrorHandler(authError)))

		r.Get("/subscription", core.Wrap(s.current, opts()...))
		r.Get("/estimate", core.Wrap(s.estimate, opts(bindTierQuery)...))
		r.Post("/upgrade", core.Wrap(s.upgrade, opts(core.BindJSON(false))...))
		r.Post("/downgrade", core.Wrap(s.downgrade, opts(core.BindJSON(false))...))
		r.Post("/cancel", core.Wrap(s.cancel, opts(core.BindJSON(true))...))
		r.Post("/reactivate", core.Wrap(s.reactivate, opts(core.BindJSON(true))...))
	})

	r.Route("/ops", func(r chi.Router) {
		r.Use(tenant.RequireScope(s.operatorScope, tenant.WithErrorHandler(authError)))

		r.Post("/apply-due", core.Wrap(s.applyDue, opts()...))
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/provision", core.Wrap(s.provision, opts(bindTenantPath, core.BindJSON(false))...))
			r.Post("/status", core.Wrap(s.transition, opts(bindTenantPath, core.BindJSON(false))...))
			r.Post("/invoice-paid", core.Wrap(s.invoicePaid, opts(bindTenantPath)...))
		})
	})

	return r
}

func (s *Service) plans(r *http.Request, _ struct{}) core.Response {
	plans, err := s.catalog.List(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("ok", plans, nil)
}

func (s *Service) current(r *http.Request, _ struct{}) core.Response {
	id := identity(r)
	sub, err := s.engine.Get(r.Context(), id.TenantID())
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("ok", sub, nil)
}

func (s *Service) estimate(r *http.Request, req tierRequest) core.Response {
	if err := req.validate(); err != nil {
		return core.JSONError(err)
	}
	est, err := s.engine.Estimate(r.Context(), identity(r).TenantID(), subscription.Tier(req.Tier), s.now())
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("ok", est, nil)
}

func (s *Service) upgrade(r *http.Request, req tierRequest) core.Response {
	if err := req.validate(); err != nil {
		return core.JSONError(err)
	}
	id := identity(r)
	res, err := s.engine.Upgrade(r.Context(), id.TenantID(), subscription.Tier(req.Tier), id.Actor, req.DryRun)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("upgraded", res, dryRunMeta(req.DryRun))
}

func (s *Service) downgrade(r *http.Request, req tierRequest) core.Response {
	if err := req.validate(); err != nil {
		return core.JSONError(err)
	}
	id := identity(r)
	res, err := s.engine.Downgrade(r.Context(), id.TenantID(), subscription.Tier(req.Tier), id.Actor, req.DryRun)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("downgrade_scheduled", res, dryRunMeta(req.DryRun))
}

func (s *Service) cancel(r *http.Request, req dryRunRequest) core.Response {
	id := identity(r)
	res, err := s.engine.Cancel(r.Context(), id.TenantID(), id.Actor, req.DryRun)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("cancellation_scheduled", res, dryRunMeta(req.DryRun))
}

func (s *Service) reactivate(r *http.Request, req dryRunRequest) core.Response {
	id := identity(r)
	res, err := s.engine.Reactivate(r.Context(), id.TenantID(), id.Actor, req.DryRun)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("reactivated", res, dryRunMeta(req.DryRun))
}

func (s *Service) provision(r *http.Request, req provisionRequest) core.Response {
	if err := req.validate(); err != nil {
		return core.JSONError(err)
	}
	sub, err := s.engine.Provision(r.Context(), req.TenantID, subscription.Tier(req.Tier), identity(r).Actor)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("provisioned", sub, nil)
}

func (s *Service) transition(r *http.Request, req statusRequest) core.Response {
	if err := req.validate(); err != nil {
		return core.JSONError(err)
	}
	sub, err := s.engine.TransitionStatus(r.Context(), req.TenantID, subscription.Status(req.Status), identity(r).Actor, req.Reason)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("status_changed", sub, nil)
}

func (s *Service) invoicePaid(r *http.Request, req tenantPath) core.Response {
	sub, err := s.engine.RecordInvoicePaid(r.Context(), req.TenantID, identity(r).Actor)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("status_changed", sub, nil)
}

func (s *Service) applyDue(r *http.Request, _ struct{}) core.Response {
	res, err := s.engine.ApplyDueScheduledChanges(r.Context(), s.now(), identity(r).Actor)
	if err != nil {
		return errorResponse(err)
	}
	return core.JSON("ok", res, nil)
}

// identity is always set behind RequireIdentity or RequireScope.
func identity(r *http.Request) *tenant.Identity {
	id, _ := tenant.FromContext(r.Context())
	return id
}

func dryRunMeta(dryRun bool) map[string]any {
	if !dryRun {
		return nil
	}
	return map[string]any{"dryRun": true}
}

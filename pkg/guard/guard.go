package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
	"github.com/dmitrymomot/tenantplans/pkg/clientip"
	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/ratelimit"
	"github.com/dmitrymomot/tenantplans/pkg/requestid"
	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

// DeveloperAPIWindow is the sliding window for the developer API limit.
const DeveloperAPIWindow = time.Minute

// StatusSource loads a tenant's subscription. *subscription.Engine satisfies it.
type StatusSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
}

// Guard decides whether a request may proceed under restricted mode.
type Guard struct {
	classifier *restriction.Classifier
	source     StatusSource
	resolver   tenant.Resolver
	storefront tenant.Resolver
	policy     func(restriction.Variant) restriction.Capabilities
	cache      StatusCache
	limitStore ratelimit.Store
	limiter    ratelimit.Limiter
	audit      *audit.Recorder
	observer   Observer
	log        *slog.Logger
	now        func() time.Time
	clientIP   func(r *http.Request) string
	stages     []stage
	closers    []func() error
}

// New creates a Guard. The developer API limiter defaults to an in-memory
// sliding window at the restricted-mode policy limit.
func New(classifier *restriction.Classifier, source StatusSource, opts ...Option) (*Guard, error) {
	if classifier == nil {
		panic("guard: classifier is required")
	}
	if source == nil {
		panic("guard: status source is required")
	}

	g := &Guard{
		classifier: classifier,
		source:     source,
		policy:     restriction.Policy,
		cache:      NewMemoryStatusCache(0, DefaultStatusTTL),
		observer:   noopObserver{},
		log:        slog.Default(),
		now:        time.Now,
		clientIP:   clientip.GetIP,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.limiter == nil {
		store := g.limitStore
		if store == nil {
			mem := ratelimit.NewMemoryStore()
			g.closers = append(g.closers, mem.Close)
			store = mem
		}
		limiter, err := ratelimit.NewSlidingWindow(store,
			restriction.Policy(restriction.DefaultVariant).DeveloperAPILimitPerMinute,
			DeveloperAPIWindow,
			ratelimit.WithClock(g.now),
		)
		if err != nil {
			_ = g.Close()
			return nil, err
		}
		g.limiter = limiter
	}

	g.stages = []stage{
		g.fastPath,
		g.resolveTenant,
		g.checkStatus,
		g.evaluate,
		g.decideBlock,
		g.rateLimit,
	}
	return g, nil
}

// Close releases the in-memory rate limit store when the Guard owns it.
func (g *Guard) Close() error {
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// StatusListener keeps the status cache in step with engine transitions.
func (g *Guard) StatusListener() subscription.StatusListener {
	return CacheListener(g.cache)
}

// Authorize runs the stage chain for r. Blocks are audited before returning.
func (g *Guard) Authorize(r *http.Request) Decision {
	ctx := r.Context()
	ev := evaluation{
		method: r.Method,
		path:   r.URL.Path,
		req:    r,
		route:  g.classifier.Classify(r.Method, r.URL.Path),
	}

	d := g.run(ctx, ev)
	g.observer.Decision(d.Scope, d.Outcome)
	if !d.Allowed {
		g.recordBlock(ctx, ev.method, ev.path, d)
	}
	return d
}

func (g *Guard) run(ctx context.Context, ev evaluation) Decision {
	for _, s := range g.stages {
		next, d := s(ctx, ev)
		if d != nil {
			return *d
		}
		ev = next
	}
	return allow(OutcomeAllowed, ev)
}

// stage inspects an evaluation and either returns a terminal decision or
// an extended evaluation for the next stage.
type stage func(ctx context.Context, ev evaluation) (evaluation, *Decision)

func terminal(d Decision) (evaluation, *Decision) {
	return evaluation{}, &d
}

func (g *Guard) fastPath(_ context.Context, ev evaluation) (evaluation, *Decision) {
	switch {
	case ev.route.Scope == restriction.ScopeSystem,
		ev.route.Scope == restriction.ScopeStorefrontRead,
		ev.route.AllowInRestricted:
		return terminal(allow(OutcomeFastPath, ev))
	}
	return ev, nil
}

func (g *Guard) resolveTenant(ctx context.Context, ev evaluation) (evaluation, *Decision) {
	if id, ok := tenant.FromContext(ctx); ok && id.Tenant != nil {
		return ev.withIdentity(id), nil
	}

	var (
		id  *tenant.Identity
		err error
	)
	if g.resolver != nil {
		id, err = g.resolver.Resolve(ev.req)
	}
	if g.storefront != nil && ev.route.Scope == restriction.ScopeStorefrontCheckout &&
		(id == nil || id.Tenant == nil) && (err == nil || rejectedCredential(err)) {
		id, err = g.storefront.Resolve(ev.req)
	}
	if err != nil {
		g.log.DebugContext(ctx, "guard could not resolve tenant",
			logger.Component("guard"),
			logger.Scope(string(ev.route.Scope)),
			logger.Error(err),
		)
		return terminal(allow(OutcomeFailOpen, ev))
	}
	if id == nil || id.Tenant == nil {
		return terminal(allow(OutcomeAnonymous, ev))
	}
	return ev.withIdentity(id), nil
}

// rejectedCredential reports whether err comes from a bad credential rather
// than the directory. Public checkout treats such callers as anonymous.
func rejectedCredential(err error) bool {
	return errors.Is(err, tenant.ErrInvalidToken) ||
		errors.Is(err, tenant.ErrInvalidAPIKey) ||
		errors.Is(err, tenant.ErrInactiveTenant) ||
		errors.Is(err, tenant.ErrTenantNotFound)
}

func (g *Guard) checkStatus(ctx context.Context, ev evaluation) (evaluation, *Decision) {
	tenantID := ev.identity.TenantID()
	if status, ok := g.cache.Get(ctx, tenantID); ok {
		return ev.withStatus(status), nil
	}

	sub, err := g.source.Get(ctx, tenantID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		g.cache.Set(ctx, tenantID, StatusNone)
		return ev.withStatus(StatusNone), nil
	case err != nil:
		g.log.WarnContext(ctx, "guard could not load subscription status",
			logger.Component("guard"),
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return terminal(allow(OutcomeFailOpen, ev))
	}

	g.cache.Set(ctx, tenantID, sub.Status)
	return ev.withStatus(sub.Status), nil
}

func (g *Guard) evaluate(_ context.Context, ev evaluation) (evaluation, *Decision) {
	if ev.status != subscription.StatusRestricted {
		return terminal(allow(OutcomeNotRestricted, ev))
	}
	return ev.withCapabilities(g.policy(ev.identity.Tenant.RestrictedVariant())), nil
}

// scopeActions names the capability that gates writes in each product scope.
var scopeActions = map[restriction.Scope]string{
	restriction.ScopeStorefrontCheckout:  restriction.ActionStorefrontCheckout,
	restriction.ScopeMarketingAutomation: restriction.ActionMarketingAutomation,
	restriction.ScopeIntegrations:        restriction.ActionIntegrationWriteSync,
}

func (g *Guard) decideBlock(_ context.Context, ev evaluation) (evaluation, *Decision) {
	if !ev.route.Mutation {
		return ev, nil
	}

	switch ev.route.Scope {
	case restriction.ScopeStorefrontCheckout:
		if ev.route.BasicSalesWrite && !ev.caps.Blocks(scopeActions[ev.route.Scope]) {
			return ev, nil
		}
		return terminal(restricted(ev))
	case restriction.ScopeMarketingAutomation, restriction.ScopeIntegrations:
		if ev.caps.Blocks(scopeActions[ev.route.Scope]) {
			return terminal(scopeBlocked(ev))
		}
		return ev, nil
	case restriction.ScopeDeveloperAPI:
		return terminal(scopeBlocked(ev))
	case restriction.ScopeAdmin:
		if ev.route.AllowInRestricted || ev.route.ExportOrReadSafe {
			return ev, nil
		}
		return terminal(restricted(ev))
	}
	return ev, nil
}

func (g *Guard) rateLimit(ctx context.Context, ev evaluation) (evaluation, *Decision) {
	if ev.route.Scope != restriction.ScopeDeveloperAPI || ev.route.Mutation {
		return ev, nil
	}

	key := ratelimit.Key("devapi", ev.identity.TenantID().String(), g.clientIP(ev.req))
	res, err := g.limiter.Allow(ctx, key)
	if err != nil {
		g.log.WarnContext(ctx, "developer api rate limiter failed",
			logger.Component("guard"),
			logger.TenantID(ev.identity.TenantID()),
			logger.Error(err),
		)
		return ev, nil
	}
	if !res.Allowed {
		return terminal(rateLimited(ev, res.RetryAfterSeconds()))
	}
	return ev, nil
}

func (g *Guard) recordBlock(ctx context.Context, method, path string, d Decision) {
	g.log.InfoContext(ctx, "request blocked by restricted mode",
		logger.Component("guard"),
		logger.TenantID(d.TenantID),
		logger.Scope(string(d.Scope)),
		slog.String("code", d.Code),
		slog.Int("status", d.Status),
	)
	if g.audit == nil {
		return
	}

	opts := []audit.RecordOption{
		audit.WithRequest(method, path),
		audit.WithReason(d.Code),
		audit.WithMetadata("scope", d.Scope),
		audit.WithMetadata("status", d.Status),
		audit.WithMetadata("variant", d.Variant),
	}
	if d.Actor != "" {
		opts = append(opts, audit.WithActor(d.Actor))
	}
	if d.RetryAfterSeconds > 0 {
		opts = append(opts, audit.WithMetadata("retryAfterSeconds", d.RetryAfterSeconds))
	}
	if id := requestid.FromContext(ctx); id != "" {
		opts = append(opts, audit.WithMetadata("requestId", id))
	}
	g.audit.Log(ctx, audit.New(AuditAction, d.TenantID, opts...))
}

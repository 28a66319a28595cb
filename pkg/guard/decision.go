package guard

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
)

// Reason codes carried by blocking decisions.
const (
	CodeSubscriptionRestricted = "subscription_restricted"
	CodeWriteScopeBlocked      = "write_scope_blocked"
	CodeRateLimited            = "rate_limited"
)

// CTAUpgradePlan is the call to action attached to 402 responses.
const CTAUpgradePlan = "UPGRADE_PLAN"

// AuditAction is the audit action written for every blocked request.
const AuditAction = "access.blocked"

// Outcome labels a decision for metrics and logs.
type Outcome string

const (
	OutcomeFastPath      Outcome = "fast_path"
	OutcomeAnonymous     Outcome = "anonymous"
	OutcomeNotRestricted Outcome = "not_restricted"
	OutcomeAllowed       Outcome = "allowed"
	OutcomeFailOpen      Outcome = "fail_open"
	OutcomeRestricted    Outcome = "restricted"
	OutcomeScopeBlocked  Outcome = "scope_blocked"
	OutcomeRateLimited   Outcome = "rate_limited"
)

// Decision is the result of Authorize.
type Decision struct {
	Allowed bool
	Outcome Outcome

	// Status is the HTTP status to return when blocked.
	Status  int
	Code    string
	Message string
	CTA     string

	Scope             restriction.Scope
	TenantID          uuid.UUID
	Actor             string
	SubscriptionState subscription.Status
	Variant           restriction.Variant
	RetryAfterSeconds int
}

func allow(outcome Outcome, ev evaluation) Decision {
	d := ev.decision()
	d.Allowed = true
	d.Outcome = outcome
	return d
}

func restricted(ev evaluation) Decision {
	d := ev.decision()
	d.Outcome = OutcomeRestricted
	d.Status = http.StatusPaymentRequired
	d.Code = CodeSubscriptionRestricted
	d.Message = "Your subscription is restricted. Upgrade your plan to continue."
	d.CTA = CTAUpgradePlan
	return d
}

func scopeBlocked(ev evaluation) Decision {
	d := ev.decision()
	d.Outcome = OutcomeScopeBlocked
	d.Status = http.StatusForbidden
	d.Code = CodeWriteScopeBlocked
	d.Message = "Write access for this scope is blocked while the subscription is restricted."
	return d
}

func rateLimited(ev evaluation, retryAfter int) Decision {
	d := ev.decision()
	d.Outcome = OutcomeRateLimited
	d.Status = http.StatusTooManyRequests
	d.Code = CodeRateLimited
	d.Message = "Developer API rate limit exceeded."
	d.RetryAfterSeconds = retryAfter
	return d
}

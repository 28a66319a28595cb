package guard

import (
	"net/http"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

// evaluation is the value threaded through the stages. Stages never mutate
// it in place; each with* method returns a copy.
type evaluation struct {
	method   string
	path     string
	req      *http.Request
	route    restriction.Route
	identity *tenant.Identity
	status   subscription.Status
	caps     restriction.Capabilities
}

func (ev evaluation) withIdentity(id *tenant.Identity) evaluation {
	ev.identity = id
	return ev
}

func (ev evaluation) withStatus(s subscription.Status) evaluation {
	ev.status = s
	return ev
}

func (ev evaluation) withCapabilities(c restriction.Capabilities) evaluation {
	ev.caps = c
	return ev
}

func (ev evaluation) decision() Decision {
	var actor string
	if ev.identity != nil {
		actor = ev.identity.Actor
	}
	return Decision{
		Actor:             actor,
		Scope:             ev.route.Scope,
		TenantID:          ev.identity.TenantID(),
		SubscriptionState: ev.status,
		Variant:           ev.caps.Variant,
	}
}

package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/core"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
)

type tierRequest struct {
	Tier   string `json:"tier"`
	DryRun bool   `json:"dryRun"`
}

func (r tierRequest) validate() error {
	errs := core.NewValidationError()
	if r.Tier == "" {
		errs.Add("tier", "is required")
	} else if !subscription.Tier(r.Tier).Valid() {
		errs.Add("tier", "must be one of C1, C2, C3")
	}
	return errs.OrNil()
}

type dryRunRequest struct {
	DryRun bool `json:"dryRun"`
}

type tenantPath struct {
	TenantID uuid.UUID `json:"-"`
}

type provisionRequest struct {
	tenantPath
	Tier string `json:"tier"`
}

func (r provisionRequest) validate() error {
	return tierRequest{Tier: r.Tier}.validate()
}

type statusRequest struct {
	tenantPath
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (r statusRequest) validate() error {
	errs := core.NewValidationError()
	if r.Status == "" {
		errs.Add("status", "is required")
	} else if !subscription.Status(r.Status).Valid() {
		errs.Add("status", "unknown status")
	}
	return errs.OrNil()
}

func bindTierQuery(r *http.Request, v any) error {
	req, ok := v.(*tierRequest)
	if !ok {
		return core.ErrInternalServerError
	}
	req.Tier = r.URL.Query().Get("tier")
	return nil
}

type tenantPathSetter interface {
	setTenantID(id uuid.UUID)
}

func (p *tenantPath) setTenantID(id uuid.UUID) { p.TenantID = id }

func bindTenantPath(r *http.Request, v any) error {
	dst, ok := v.(tenantPathSetter)
	if !ok {
		return core.ErrInternalServerError
	}
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		return core.ErrBadRequest.WithDetails("tenantID must be a UUID", nil)
	}
	dst.setTenantID(id)
	return nil
}

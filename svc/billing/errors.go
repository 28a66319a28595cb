package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tenantplans/core"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

// errorResponse maps lifecycle errors onto HTTP errors. Unknown errors
// become a 500 with the cause hidden from the body.
func errorResponse(err error) core.Response {
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return core.JSONError(core.ErrNotFound.WithDetails("tenant has no subscription", nil))
	case errors.Is(err, subscription.ErrInvalidTier),
		errors.Is(err, subscription.ErrInvalidStatus),
		errors.Is(err, subscription.ErrInvalidCatalog):
		return core.JSONError(core.ErrUnprocessableEntity.WithDetails(err.Error(), nil))
	case errors.Is(err, subscription.ErrWrongDirection):
		return core.JSONError(core.NewHTTPError(http.StatusUnprocessableEntity, "wrong_direction").WithDetails(err.Error(), nil))
	case errors.Is(err, subscription.ErrInvalidTransition):
		return core.JSONError(core.NewHTTPError(http.StatusConflict, "invalid_transition").WithDetails(err.Error(), nil))
	case errors.Is(err, subscription.ErrSubscriptionCanceled),
		errors.Is(err, subscription.ErrStatusChanged):
		return core.JSONError(core.ErrConflict.WithDetails(err.Error(), nil))
	}
	return core.JSONError(err)
}

// authError renders identity failures in the JSON envelope.
func authError(w http.ResponseWriter, r *http.Request, err error) {
	resp := core.JSONError(core.ErrUnauthorized)
	switch {
	case errors.Is(err, tenant.ErrMissingScope), errors.Is(err, tenant.ErrInactiveTenant):
		resp = core.JSONError(core.ErrForbidden)
	case errors.Is(err, tenant.ErrDirectoryFailure):
		resp = core.JSONError(err)
	}
	core.Render(w, r, resp)
}

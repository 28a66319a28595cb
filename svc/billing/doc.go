// Package billing exposes the subscription lifecycle over HTTP.
//
// Tenant routes act on the caller's own subscription, taken from the
// identity that tenant.Middleware stored on the request. Operator routes
// take the tenant from the path and require the operator scope:
//
//	GET  /plans
//	GET  /subscription
//	GET  /estimate?tier=C3
//	POST /upgrade                                {"tier":"C3","dryRun":true}
//	POST /downgrade                              {"tier":"C1"}
//	POST /cancel                                 {"dryRun":false}
//	POST /reactivate
//	POST /ops/tenants/{tenantID}/provision       {"tier":"C1"}
//	POST /ops/tenants/{tenantID}/status          {"status":"PAST_DUE","reason":"card declined"}
//	POST /ops/tenants/{tenantID}/invoice-paid
//	POST /ops/apply-due
//
// Mount the handler under /billing so the access guard classifies it as an
// admin route that stays reachable in restricted mode.
package billing

// Package guard enforces restricted mode on incoming requests.
//
// Guard.Authorize runs a fixed chain of stages over each request:
//
//  1. fast path: system routes, public storefront reads and billing-essential
//     admin routes always pass
//  2. resolve the tenant (bearer token, API key, single-tenant fallback for
//     storefront checkout)
//  3. look up the subscription status through a short-lived cache
//  4. allow unless the subscription is RESTRICTED
//  5. block mutations the tenant's restricted-mode variant does not exempt
//  6. rate limit developer API reads per tenant and client IP
//
// Every block is written to the audit sink. Resolution and status lookup
// failures fail open: the guard only enforces restriction, authentication
// belongs downstream.
//
// Middleware wraps Authorize and renders blocks as JSON:
//
//	402 subscription_restricted  {"details": {"cta": "UPGRADE_PLAN", ...}}
//	403 write_scope_blocked
//	429 rate_limited             {"details": {"retryAfterSeconds": 12}}
package guard

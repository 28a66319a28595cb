// Package tenant resolves the calling tenant of an HTTP request.
//
// A Resolver turns a request into an Identity: the tenant, the acting user
// or key, and where the identity came from. Three resolvers are provided and
// can be chained with NewCompositeResolver:
//
//   - BearerResolver validates an HS256 JWT and reads the tenant_id claim.
//   - APIKeyResolver looks up the X-API-Key prefix in the Directory.
//   - SingleTenantResolver returns a fixed tenant, for single-store installs
//     serving public storefront routes.
//
// Tenants are loaded from a Directory. NewCachedDirectory wraps one with an
// expiring LRU.
//
// Context helpers store the resolved Identity on the request context, and
// LoggerExtractor exposes the tenant id to the structured logger.
package tenant

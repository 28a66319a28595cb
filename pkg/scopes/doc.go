// Package scopes matches OAuth2-style scopes granted to a caller.
//
// Scopes are "resource:action" strings. A granted "resource:*" covers every
// action on the resource and a bare "*" covers everything:
//
//	granted := scopes.Parse("billing:* reports:read")
//	scopes.Has(granted, "billing:operator") // true
//	scopes.Has(granted, "reports:write")    // false
package scopes

// Package restriction describes what a tenant may do while its subscription
// is RESTRICTED, and classifies HTTP routes into enforcement scopes.
//
// Policy maps a restricted-mode variant to its capabilities. The Classifier
// resolves (method, path) against a declarative rule table compiled once at
// construction; the first matching rule wins, and unmatched routes fall back
// to the ADMIN scope.
//
//	c, err := restriction.NewClassifier(restriction.DefaultRules(), restriction.WithBasePath("/api"))
//	if err != nil {
//	    return err
//	}
//	route := c.Classify(r.Method, r.URL.Path)
//	if route.AllowInRestricted {
//	    // fast path
//	}
package restriction

package restriction

import (
	"fmt"
	"slices"
	"strings"
)

// Classifier resolves requests against a compiled rule table.
type Classifier struct {
	rules    []compiledRule
	basePath []string
}

type compiledRule struct {
	Rule
	pattern pattern
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithBasePath strips a mount prefix such as "/api/v1" before matching.
func WithBasePath(base string) ClassifierOption {
	return func(c *Classifier) {
		c.basePath = splitPath(base)
	}
}

// NewClassifier compiles rules. It fails on an invalid pattern or scope.
func NewClassifier(rules []Rule, opts ...ClassifierOption) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, opt := range opts {
		opt(c)
	}

	for i, r := range rules {
		if !r.Scope.Valid() {
			return nil, fmt.Errorf("%w: rule %d: %q", ErrInvalidScope, i, r.Scope)
		}
		p, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		r.Methods = upper(r.Methods)
		c.rules = append(c.rules, compiledRule{Rule: r, pattern: p})
	}
	return c, nil
}

// MustClassifier is NewClassifier that panics on error.
func MustClassifier(rules []Rule, opts ...ClassifierOption) *Classifier {
	c, err := NewClassifier(rules, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the route of the first matching rule, or the ADMIN fallback.
func (c *Classifier) Classify(method, p string) Route {
	method = strings.ToUpper(method)
	segs := c.trimBase(splitPath(p))
	mutation := IsMutation(method)

	for _, r := range c.rules {
		if len(r.Methods) > 0 && !slices.Contains(r.Methods, method) {
			continue
		}
		if !r.pattern.match(segs) {
			continue
		}
		return Route{
			Scope:             r.Scope,
			Mutation:          mutation,
			AllowInRestricted: r.AllowInRestricted,
			BasicSalesWrite:   r.BasicSalesWrite,
			ExportOrReadSafe:  r.ExportOrReadSafe,
			Pattern:           r.Pattern,
		}
	}
	return Route{Scope: ScopeAdmin, Mutation: mutation}
}

func (c *Classifier) trimBase(segs []string) []string {
	if len(c.basePath) == 0 || len(segs) < len(c.basePath) {
		return segs
	}
	if slices.Equal(segs[:len(c.basePath)], c.basePath) {
		return segs[len(c.basePath):]
	}
	return segs
}

func upper(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}

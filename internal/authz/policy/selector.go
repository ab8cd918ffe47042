// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/orgcentral/authcore/internal/authz"
)

// Selector grammar: an exact resource/action name, the bare wildcard "*",
// or a trailing "*" after a non-empty segment prefix ("org.*", "leave*").
// Anything else is rejected at policy write time.

// selector is a precompiled action or resource matcher.
type selector struct {
	raw  string
	g    glob.Glob
	star bool
}

// compileSelector precompiles one selector. The '.' separator keeps a
// trailing "org.*" from matching across unrelated name spaces when exact
// segment semantics matter to the pattern author.
func compileSelector(raw string) (selector, error) {
	if err := checkSelectorSyntax(raw); err != nil {
		return selector{}, err
	}
	if raw == "*" {
		return selector{raw: raw, star: true}, nil
	}
	g, err := glob.Compile(raw, '.')
	if err != nil {
		return selector{}, authz.Validation("selector %q does not compile: %v", raw, err)
	}
	return selector{raw: raw, g: g}, nil
}

func (s selector) matches(name string) bool {
	if s.star {
		return true
	}
	return s.g.Match(name)
}

// checkSelectorSyntax enforces the selector grammar without consulting the
// capability registry.
func checkSelectorSyntax(raw string) error {
	if raw == "" {
		return authz.Validation("selector must not be empty")
	}
	if raw == "*" {
		return nil
	}
	stars := strings.Count(raw, "*")
	if stars == 0 {
		return nil
	}
	if stars > 1 || !strings.HasSuffix(raw, "*") {
		return authz.Validation("selector %q: wildcard must be a single trailing '*'", raw)
	}
	if prefix := strings.TrimSuffix(raw, "*"); strings.TrimRight(prefix, ".") == "" {
		return authz.Validation("selector %q: wildcard prefix must not be empty", raw)
	}
	return nil
}

// ValidateResourceSelector checks a resource selector against the registry:
// besides well-formed syntax, it must match at least one registered resource
// so a typo cannot silently create a policy that never applies.
func ValidateResourceSelector(raw string, reg *authz.CapabilityRegistry) error {
	sel, err := compileSelector(raw)
	if err != nil {
		return err
	}
	for _, resource := range reg.Resources() {
		if sel.matches(resource) {
			return nil
		}
	}
	return authz.Validation("selector %q matches no registered resource", raw)
}

// ValidateActionSelector checks an action selector against the registry.
func ValidateActionSelector(raw string, reg *authz.CapabilityRegistry) error {
	sel, err := compileSelector(raw)
	if err != nil {
		return err
	}
	for _, action := range reg.Actions() {
		if sel.matches(action) {
			return nil
		}
	}
	return authz.Validation("selector %q matches no registered action", raw)
}

// compiledPolicy pairs a Policy with its precompiled selectors.
type compiledPolicy struct {
	Policy
	actions   []selector
	resources []selector
}

// compilePolicy precompiles a policy's selector lists. A policy with an
// empty selector list can never apply and is rejected.
func compilePolicy(p Policy) (compiledPolicy, error) {
	if p.ID == "" {
		return compiledPolicy{}, authz.Validation("policy id must not be empty")
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return compiledPolicy{}, authz.Validation("policy %s: effect must be allow or deny, got %q", p.ID, p.Effect)
	}
	if len(p.Actions) == 0 || len(p.Resources) == 0 {
		return compiledPolicy{}, authz.Validation("policy %s: actions and resources must be non-empty", p.ID)
	}

	cp := compiledPolicy{
		Policy:    p,
		actions:   make([]selector, 0, len(p.Actions)),
		resources: make([]selector, 0, len(p.Resources)),
	}
	for _, raw := range p.Actions {
		sel, err := compileSelector(raw)
		if err != nil {
			return compiledPolicy{}, err
		}
		cp.actions = append(cp.actions, sel)
	}
	for _, raw := range p.Resources {
		sel, err := compileSelector(raw)
		if err != nil {
			return compiledPolicy{}, err
		}
		cp.resources = append(cp.resources, sel)
	}
	return cp, nil
}

// appliesTo reports whether the policy's selectors cover the request.
func (cp compiledPolicy) appliesTo(action, resource string) bool {
	return anyMatches(cp.actions, action) && anyMatches(cp.resources, resource)
}

func anyMatches(sels []selector, name string) bool {
	for _, sel := range sels {
		if sel.matches(name) {
			return true
		}
	}
	return false
}

// selectorsRegistered reports whether every selector in the policy resolves
// against the registry. Used as the evaluation-time defence: a policy whose
// selectors no longer resolve is skipped rather than trusted.
func (cp compiledPolicy) selectorsRegistered(reg *authz.CapabilityRegistry) bool {
	for _, sel := range cp.resources {
		if !matchesAnyName(sel, reg.Resources()) {
			return false
		}
	}
	for _, sel := range cp.actions {
		if !matchesAnyName(sel, reg.Actions()) {
			return false
		}
	}
	return true
}

func matchesAnyName(sel selector, names []string) bool {
	for _, name := range names {
		if sel.matches(name) {
			return true
		}
	}
	return false
}

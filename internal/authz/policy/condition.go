// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"reflect"
	"strings"
)

// evaluateConditions reports whether every condition holds against the bag.
// An empty condition list is vacuously true.
func evaluateConditions(conditions []Condition, bag map[string]any) bool {
	for _, cond := range conditions {
		if !evaluateCondition(cond, bag) {
			return false
		}
	}
	return true
}

// evaluateCondition evaluates one comparison. A missing attribute fails the
// condition for every operator except exists with value=false: an attacker
// must not be able to satisfy a not_equals guard by omitting the attribute.
func evaluateCondition(cond Condition, bag map[string]any) bool {
	value, present := lookupPath(bag, cond.Path)

	switch cond.Op {
	case OpExists:
		if want, ok := cond.Value.(bool); ok && !want {
			return !present
		}
		return present
	case OpEquals:
		return present && looselyEqual(value, cond.Value)
	case OpNotEquals:
		return present && !looselyEqual(value, cond.Value)
	case OpIn:
		if !present {
			return false
		}
		list, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if looselyEqual(value, candidate) {
				return true
			}
		}
		return false
	default:
		// Unknown operators fail closed. Write-time validation rejects
		// them, so reaching here means a skipped validation path.
		return false
	}
}

// lookupPath walks a dot-separated path through nested maps.
func lookupPath(bag map[string]any, path string) (any, bool) {
	if bag == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = bag
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looselyEqual compares attribute values with numeric tolerance: JSON
// round-trips turn ints into float64, so 3 and 3.0 must compare equal.
func looselyEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// validateCondition enforces the operator grammar at write time.
func validateCondition(policyID string, cond Condition) error {
	if cond.Path == "" {
		return validationf(policyID, "condition path must not be empty")
	}
	switch cond.Op {
	case OpEquals, OpNotEquals:
		if cond.Value == nil {
			return validationf(policyID, "condition on %q: %s requires a value", cond.Path, cond.Op)
		}
	case OpIn:
		if _, ok := cond.Value.([]any); !ok {
			return validationf(policyID, "condition on %q: in requires a list value", cond.Path)
		}
	case OpExists:
		if cond.Value != nil {
			if _, ok := cond.Value.(bool); !ok {
				return validationf(policyID, "condition on %q: exists takes an optional boolean", cond.Path)
			}
		}
	default:
		return validationf(policyID, "condition on %q: unknown operator %q", cond.Path, cond.Op)
	}
	return nil
}

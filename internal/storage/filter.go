package storage

import "strings"

// Filter operators understood in metadata predicates. A plain value is
// shorthand for OpEqual.
const (
	OpEqual        = "$eq"
	OpNotEqual     = "$ne"
	OpGreaterThan  = "$gt"
	OpGreaterEqual = "$gte"
	OpLessThan     = "$lt"
	OpLessEqual    = "$lte"
	OpIn           = "$in"
	OpContains     = "$contains"
)

// MatchesFilter reports whether metadata satisfies every predicate in
// filter. An empty filter matches everything. A key maps either to a
// plain value (equality) or to an operator object such as
// {"$gte": 4} or {"$in": ["a", "b"]}.
func MatchesFilter(metadata map[string]any, filter map[string]any) bool {
	for key, condition := range filter {
		value, exists := metadata[key]
		if !exists {
			return false
		}

		ops, isOps := condition.(map[string]any)
		if !isOps {
			if !compareEqual(value, condition) {
				return false
			}
			continue
		}

		for op, operand := range ops {
			if !matchOperator(value, op, operand) {
				return false
			}
		}
	}
	return true
}

func matchOperator(value any, op string, operand any) bool {
	switch op {
	case OpEqual:
		return compareEqual(value, operand)
	case OpNotEqual:
		return !compareEqual(value, operand)
	case OpGreaterThan:
		return compareGreater(value, operand)
	case OpGreaterEqual:
		return compareGreater(value, operand) || compareEqual(value, operand)
	case OpLessThan:
		return compareLess(value, operand)
	case OpLessEqual:
		return compareLess(value, operand) || compareEqual(value, operand)
	case OpIn:
		return compareIn(value, operand)
	case OpContains:
		return compareContains(value, operand)
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	fa, aNum := asFloat64(a)
	fb, bNum := asFloat64(b)
	if aNum && bNum {
		return fa == fb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !compareEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func compareGreater(a, b any) bool {
	fa, aNum := asFloat64(a)
	fb, bNum := asFloat64(b)
	if aNum && bNum {
		return fa > fb
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs) > 0
	}
	return false
}

func compareLess(a, b any) bool {
	fa, aNum := asFloat64(a)
	fb, bNum := asFloat64(b)
	if aNum && bNum {
		return fa < fb
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs) < 0
	}
	return false
}

// compareIn: value (or any element of an array value) is one of the
// operand list's entries.
func compareIn(value, operand any) bool {
	list, ok := operand.([]any)
	if !ok {
		return false
	}

	if elems, isArr := value.([]any); isArr {
		for _, elem := range elems {
			for _, candidate := range list {
				if compareEqual(elem, candidate) {
					return true
				}
			}
		}
		return false
	}

	for _, candidate := range list {
		if compareEqual(value, candidate) {
			return true
		}
	}
	return false
}

// compareContains: array value contains the operand, or string value
// contains the operand substring.
func compareContains(value, operand any) bool {
	switch v := value.(type) {
	case []any:
		for _, elem := range v {
			if compareEqual(elem, operand) {
				return true
			}
		}
		return false
	case string:
		s, ok := operand.(string)
		return ok && strings.Contains(v, s)
	default:
		return false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

package expr

// IsIndependentOf reports whether u does not occur anywhere below e.
func (e Expr) IsIndependentOf(u Expr) bool {
	return !e.occurs(func(x Expr) bool { return x == u })
}

// dependsOnTests reports whether any test function occurs below e.
func (e Expr) dependsOnTests() bool {
	return e.occurs(func(x Expr) bool { return x.Kind() == KindTest })
}

func (e Expr) occurs(match func(Expr) bool) bool {
	seen := make(map[NodeID]bool)
	var walk func(Expr) bool
	walk = func(x Expr) bool {
		if seen[x.id] {
			return false
		}
		seen[x.id] = true
		if match(x) {
			return true
		}
		for _, c := range x.Children() {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(e)
}

// IsLinearForm reports whether e is linear in u. A leaf is linear only if
// it is u. A product is linear iff exactly one side is linear and the other
// side is independent of u.
func (e Expr) IsLinearForm(u Expr) bool {
	switch e.Kind() {
	case KindSum:
		return e.Left().IsLinearForm(u) && e.Right().IsLinearForm(u)
	case KindProduct:
		l, r := e.Left(), e.Right()
		ll, rl := l.IsLinearForm(u), r.IsLinearForm(u)
		if !(ll || rl) || ll == rl {
			return false
		}
		if ll {
			return r.IsIndependentOf(u)
		}
		return l.IsIndependentOf(u)
	}
	return e == u
}

// IsQuadraticForm reports whether e is quadratic in u: one side of a
// product independent and the other quadratic, or both sides linear.
func (e Expr) IsQuadraticForm(u Expr) bool {
	switch e.Kind() {
	case KindSum:
		return e.Left().IsQuadraticForm(u) && e.Right().IsQuadraticForm(u)
	case KindProduct:
		l, r := e.Left(), e.Right()
		if l.IsIndependentOf(u) && r.IsQuadraticForm(u) {
			return true
		}
		if r.IsIndependentOf(u) && l.IsQuadraticForm(u) {
			return true
		}
		return l.IsLinearForm(u) && r.IsLinearForm(u)
	}
	return false
}

// IsLinearInTests reports whether e is linear in the test functions: every
// term carries exactly one test function factor.
func (e Expr) IsLinearInTests() bool {
	switch e.Kind() {
	case KindTest:
		return true
	case KindSum:
		return e.Left().IsLinearInTests() && e.Right().IsLinearInTests()
	case KindProduct:
		l, r := e.Left(), e.Right()
		ll, rl := l.IsLinearInTests(), r.IsLinearInTests()
		if !(ll || rl) || ll == rl {
			return false
		}
		if ll {
			return !r.dependsOnTests()
		}
		return !l.dependsOnTests()
	}
	return false
}

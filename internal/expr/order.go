package expr

import (
	"cmp"
	"strings"
)

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
//
// Kinds compare first in declaration order. Within a kind: constants by
// value, coordinates by direction, fields by name, unknowns and tests by
// function id then name, binary nodes by sign then left then right child.
// The order is strict and total over structurally distinct nodes.
func Compare(a, b Expr) int {
	if a == b {
		return 0
	}
	na, nb := a.n(), b.n()
	if c := cmp.Compare(na.kind, nb.kind); c != 0 {
		return c
	}
	switch na.kind {
	case KindConstant:
		return cmp.Compare(na.value, nb.value)
	case KindCoordinate:
		return cmp.Compare(na.dir, nb.dir)
	case KindField:
		return strings.Compare(na.name, nb.name)
	case KindUnknown, KindTest:
		if c := cmp.Compare(na.funcID, nb.funcID); c != 0 {
			return c
		}
		return strings.Compare(na.name, nb.name)
	case KindSum, KindProduct:
		if c := cmp.Compare(na.sign, nb.sign); c != 0 {
			return c
		}
		if c := Compare(Expr{a.dag, na.left}, Expr{b.dag, nb.left}); c != 0 {
			return c
		}
		return Compare(Expr{a.dag, na.right}, Expr{b.dag, nb.right})
	}
	panic(internalf("compare: invalid kind %d", na.kind))
}

// LessThan reports whether e sorts strictly before other.
func (e Expr) LessThan(other Expr) bool {
	return Compare(e, other) < 0
}

// Commutative reports whether swapping e's children yields an equal value:
// every product, and sums with sign +1.
func (e Expr) Commutative() bool {
	switch e.Kind() {
	case KindProduct:
		return true
	case KindSum:
		return e.Sign() == 1
	}
	return false
}

// Canonical returns the standard form of e: children of commutative nodes
// are reordered so that left sorts no later than right, recursively. The
// result lives in the same DAG; structurally equal inputs map to the same
// handle.
func Canonical(e Expr) Expr {
	memo := make(map[NodeID]Expr)
	var walk func(Expr) Expr
	walk = func(x Expr) Expr {
		if out, ok := memo[x.id]; ok {
			return out
		}
		out := x
		if x.Kind().IsBinary() {
			l, r := walk(x.Left()), walk(x.Right())
			if x.Commutative() && Compare(r, l) < 0 {
				l, r = r, l
			}
			out = must(x.dag.Binary(x.Kind(), l, r, x.Sign()))
		}
		memo[x.id] = out
		return out
	}
	return walk(e)
}

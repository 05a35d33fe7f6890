package eval

import (
	"fmt"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// BinaryEvaluator binds a sum or product node to its children's evaluators
// and supersets. Both are resolved once, at construction.
type BinaryEvaluator struct {
	base
	sign          float64
	left, right   expr.Evaluator
	leftSuperset  multiset.Set
	rightSuperset multiset.Set
}

func newBinary(s *expr.Setup, e expr.Expr, superset multiset.Set) BinaryEvaluator {
	l, r := e.Left(), e.Right()
	return BinaryEvaluator{
		base:          newBase(s, e, superset),
		sign:          float64(e.Sign()),
		left:          s.Evaluator(l),
		right:         s.Evaluator(r),
		leftSuperset:  s.SparsitySuperset(l),
		rightSuperset: s.SparsitySuperset(r),
	}
}

// Left returns the left child's evaluator.
func (b *BinaryEvaluator) Left() expr.Evaluator { return b.left }

// Right returns the right child's evaluator.
func (b *BinaryEvaluator) Right() expr.Evaluator { return b.right }

// evalChildren runs the left child and then the right child. The order is
// fixed so diagnostics through mgr are deterministic.
func (b *BinaryEvaluator) evalChildren(mgr expr.EvalManager) (left, right []expr.Result) {
	left = b.left.Eval(mgr)
	right = b.right.Eval(mgr)
	if len(left) != b.leftSuperset.Len() || len(right) != b.rightSuperset.Len() {
		panic(&expr.InternalError{Message: fmt.Sprintf(
			"%s: child results %d/%d do not match supersets %d/%d",
			b.e, len(left), len(right), b.leftSuperset.Len(), b.rightSuperset.Len())})
	}
	return left, right
}

// childIndex returns the position of d in superset, or -1. A missing entry
// that the plan relies on is an internal error.
func childIndex(superset multiset.Set, d multiset.MultiSet, owner expr.Expr, side string) int {
	i := superset.IndexOf(d)
	if i < 0 {
		panic(&expr.InternalError{Message: fmt.Sprintf("%s: %s child superset %s lacks %s", owner, side, superset, d)})
	}
	return i
}

package eval

import (
	"gonum.org/v1/gonum/floats"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// sumEntry locates the child results feeding one output. -1 means the
// child has no contribution at that derivative.
type sumEntry struct {
	leftIdx, rightIdx int
}

// SumEvaluator computes left + sign*right per output derivative.
type SumEvaluator struct {
	BinaryEvaluator
	plan []sumEntry
}

// NewSumEvaluator builds the evaluator for a sum node.
func NewSumEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	ev := &SumEvaluator{BinaryEvaluator: newBinary(s, e, superset)}
	for _, d := range superset.Items() {
		entry := sumEntry{
			leftIdx:  ev.leftSuperset.IndexOf(d),
			rightIdx: ev.rightSuperset.IndexOf(d),
		}
		if entry.leftIdx < 0 && entry.rightIdx < 0 {
			panic(&expr.InternalError{Message: "sum " + e.String() + ": no child produces " + d.String()})
		}
		ev.plan = append(ev.plan, entry)
	}
	return ev
}

// Eval implements expr.Evaluator.
func (ev *SumEvaluator) Eval(mgr expr.EvalManager) []expr.Result {
	ev.calls++
	left, right := ev.evalChildren(mgr)
	n := mgr.Points()

	out := make([]expr.Result, len(ev.plan))
	for i, entry := range ev.plan {
		switch {
		case entry.rightIdx < 0:
			out[i] = scaled(left[entry.leftIdx], 1)
		case entry.leftIdx < 0:
			out[i] = scaled(right[entry.rightIdx], ev.sign)
		default:
			out[i] = addScaled(left[entry.leftIdx], right[entry.rightIdx], ev.sign, n)
		}
	}
	ev.trace(mgr, out)
	return out
}

// scaled returns s*r without aliasing r's vector.
func scaled(r expr.Result, s float64) expr.Result {
	if r.Constant {
		return constant(s * r.Scalar)
	}
	v := make([]float64, len(r.Vector))
	if s == 1 {
		copy(v, r.Vector)
		return vector(v)
	}
	floats.ScaleTo(v, s, r.Vector)
	return vector(v)
}

// addScaled returns l + s*r, broadcasting a constant side over n points.
func addScaled(l, r expr.Result, s float64, n int) expr.Result {
	switch {
	case l.Constant && r.Constant:
		return constant(l.Scalar + s*r.Scalar)
	case l.Constant:
		v := make([]float64, n)
		floats.ScaleTo(v, s, r.Vector)
		floats.AddConst(l.Scalar, v)
		return vector(v)
	case r.Constant:
		v := make([]float64, n)
		copy(v, l.Vector)
		floats.AddConst(s*r.Scalar, v)
		return vector(v)
	default:
		v := make([]float64, n)
		copy(v, l.Vector)
		floats.AddScaled(v, s, r.Vector)
		return vector(v)
	}
}

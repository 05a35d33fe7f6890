package eval

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// term is one precomputed Leibniz contribution coef * L[leftIdx] * R[rightIdx].
type term struct {
	leftIdx, rightIdx int
	coef              float64
}

// productEntry lists the terms of one output derivative grouped by the
// constant/vector parity of their left and right factors.
type productEntry struct {
	ccTerms, cvTerms, vcTerms, vvTerms []term
}

func (p productEntry) constant() bool {
	return len(p.cvTerms) == 0 && len(p.vcTerms) == 0 && len(p.vvTerms) == 0
}

// ProductEvaluator computes sign*left*right and its derivatives by the
// Leibniz rule. All term structure is fixed at construction.
type ProductEvaluator struct {
	BinaryEvaluator
	plan []productEntry
}

// NewProductEvaluator builds the evaluator for a product node.
func NewProductEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	ev := &ProductEvaluator{BinaryEvaluator: newBinary(s, e, superset)}
	b, _ := e.AsBinary()
	ctx := s.Context()
	l, r := e.Left(), e.Right()

	for _, d := range superset.Items() {
		var entry productEntry
		for _, t := range b.LeibnizTerms(d, ctx) {
			tm := term{
				leftIdx:  childIndex(ev.leftSuperset, t.Left, e, "left"),
				rightIdx: childIndex(ev.rightSuperset, t.Right, e, "right"),
				coef:     t.Coef,
			}
			lc, rc := l.IsConstantDeriv(t.Left, ctx), r.IsConstantDeriv(t.Right, ctx)
			switch {
			case lc && rc:
				entry.ccTerms = append(entry.ccTerms, tm)
			case lc:
				entry.cvTerms = append(entry.cvTerms, tm)
			case rc:
				entry.vcTerms = append(entry.vcTerms, tm)
			default:
				entry.vvTerms = append(entry.vvTerms, tm)
			}
		}
		ev.plan = append(ev.plan, entry)
	}
	return ev
}

// Eval implements expr.Evaluator.
func (ev *ProductEvaluator) Eval(mgr expr.EvalManager) []expr.Result {
	ev.calls++
	left, right := ev.evalChildren(mgr)
	n := mgr.Points()

	out := make([]expr.Result, len(ev.plan))
	var scratch []float64
	for i, entry := range ev.plan {
		c := 0.0
		for _, t := range entry.ccTerms {
			c += t.coef * ev.scalar(left[t.leftIdx]) * ev.scalar(right[t.rightIdx])
		}
		if entry.constant() {
			out[i] = constant(c)
			continue
		}

		v := make([]float64, n)
		for _, t := range entry.cvTerms {
			floats.AddScaled(v, t.coef*ev.scalar(left[t.leftIdx]), ev.vec(right[t.rightIdx]))
		}
		for _, t := range entry.vcTerms {
			floats.AddScaled(v, t.coef*ev.scalar(right[t.rightIdx]), ev.vec(left[t.leftIdx]))
		}
		for _, t := range entry.vvTerms {
			if scratch == nil {
				scratch = make([]float64, n)
			}
			floats.MulTo(scratch, ev.vec(left[t.leftIdx]), ev.vec(right[t.rightIdx]))
			floats.AddScaled(v, t.coef, scratch)
		}
		if c != 0 {
			floats.AddConst(c, v)
		}
		out[i] = vector(v)
	}
	ev.trace(mgr, out)
	return out
}

func (ev *ProductEvaluator) scalar(r expr.Result) float64 {
	if !r.Constant {
		panic(&expr.InternalError{Message: fmt.Sprintf("%s: planned constant factor arrived as a vector", ev.e)})
	}
	return r.Scalar
}

func (ev *ProductEvaluator) vec(r expr.Result) []float64 {
	if r.Constant {
		panic(&expr.InternalError{Message: fmt.Sprintf("%s: planned vector factor arrived as a constant", ev.e)})
	}
	return r.Vector
}

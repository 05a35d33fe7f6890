package eval

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// base carries what every evaluator exposes. Evaluators are used from one
// goroutine at a time, so calls is a plain counter.
type base struct {
	e        expr.Expr
	ctx      expr.EvalContext
	superset multiset.Set
	calls    int
}

func newBase(s *expr.Setup, e expr.Expr, superset multiset.Set) base {
	return base{e: e, ctx: s.Context(), superset: superset}
}

func (b *base) Expr() expr.Expr { return b.e }

func (b *base) Superset() multiset.Set { return b.superset }

func (b *base) Calls() int { return b.calls }

// Clients returns how many parent slots depend on this evaluator's node.
func (b *base) Clients() int { return b.e.FanIn() }

func (b *base) trace(mgr expr.EvalManager, out []expr.Result) {
	if mgr.Verb() <= 0 {
		return
	}
	attrs := []any{
		slog.String("node", b.e.String()),
		slog.String("superset", b.superset.String()),
		slog.Int("calls", b.calls),
	}
	if mgr.Verb() > 1 {
		for i, d := range b.superset.Items() {
			attrs = append(attrs, slog.String(d.String(), formatResult(out[i])))
		}
	}
	mgr.Logger().Debug("eval", attrs...)
}

func formatResult(r expr.Result) string {
	if r.Constant {
		return fmt.Sprintf("%g", r.Scalar)
	}
	return fmt.Sprintf("%g", r.Vector)
}

func constant(v float64) expr.Result {
	return expr.Result{Constant: true, Scalar: v}
}

func vector(vs []float64) expr.Result {
	return expr.Result{Vector: vs}
}

// batchVector wraps a copy of batch values so results never share memory
// with the batch.
func batchVector(vs []float64) expr.Result {
	return vector(slices.Clone(vs))
}

// leafEvaluator produces each derivative of a leaf from a precomputed
// source, one per superset entry.
type leafEvaluator struct {
	base
	sources []func(mgr expr.EvalManager) expr.Result
}

func (l *leafEvaluator) Eval(mgr expr.EvalManager) []expr.Result {
	l.calls++
	out := make([]expr.Result, len(l.sources))
	for i, src := range l.sources {
		out[i] = src(mgr)
	}
	l.trace(mgr, out)
	return out
}

func unsupportedDeriv(e expr.Expr, d multiset.MultiSet) *expr.InternalError {
	return &expr.InternalError{Message: fmt.Sprintf("%s leaf %s cannot produce derivative %s", e.Kind(), e, d)}
}

func newLeaf(s *expr.Setup, e expr.Expr, superset multiset.Set, source func(d multiset.MultiSet) func(expr.EvalManager) expr.Result) expr.Evaluator {
	l := &leafEvaluator{base: newBase(s, e, superset)}
	for _, d := range superset.Items() {
		src := source(d)
		if src == nil {
			panic(unsupportedDeriv(e, d))
		}
		l.sources = append(l.sources, src)
	}
	return l
}

// NewConstantEvaluator builds the evaluator for a constant leaf.
func NewConstantEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	v := e.Value()
	return newLeaf(s, e, superset, func(d multiset.MultiSet) func(expr.EvalManager) expr.Result {
		if !d.IsEmpty() {
			return nil
		}
		return func(expr.EvalManager) expr.Result { return constant(v) }
	})
}

// NewCoordinateEvaluator builds the evaluator for a coordinate leaf.
func NewCoordinateEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	dir := e.Dir()
	return newLeaf(s, e, superset, func(d multiset.MultiSet) func(expr.EvalManager) expr.Result {
		if !d.IsEmpty() {
			return nil
		}
		return func(mgr expr.EvalManager) expr.Result { return batchVector(mgr.Coordinate(dir)) }
	})
}

// NewFieldEvaluator builds the evaluator for a discrete field leaf.
func NewFieldEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	name := e.Name()
	return newLeaf(s, e, superset, func(d multiset.MultiSet) func(expr.EvalManager) expr.Result {
		if !d.IsEmpty() {
			return nil
		}
		return func(mgr expr.EvalManager) expr.Result { return batchVector(mgr.Field(name)) }
	})
}

// NewUnknownEvaluator builds the evaluator for an unknown function. Its
// value is read from the batch field of the same name; its first
// derivative with respect to itself is 1.
func NewUnknownEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	name, self := e.Name(), multiset.Of(e.FuncID())
	return newLeaf(s, e, superset, func(d multiset.MultiSet) func(expr.EvalManager) expr.Result {
		switch {
		case d.IsEmpty():
			return func(mgr expr.EvalManager) expr.Result { return batchVector(mgr.Field(name)) }
		case d.Equal(self):
			return func(expr.EvalManager) expr.Result { return constant(1) }
		}
		return nil
	})
}

// NewTestEvaluator builds the evaluator for a test function. Test
// functions vanish at the evaluation point, so only the first derivative
// with respect to itself exists.
func NewTestEvaluator(s *expr.Setup, e expr.Expr, superset multiset.Set) expr.Evaluator {
	self := multiset.Of(e.FuncID())
	return newLeaf(s, e, superset, func(d multiset.MultiSet) func(expr.EvalManager) expr.Result {
		if !d.Equal(self) {
			return nil
		}
		return func(expr.EvalManager) expr.Result { return constant(1) }
	})
}

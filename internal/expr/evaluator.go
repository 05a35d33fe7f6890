package expr

import (
	"log/slog"

	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// Result is one output of an evaluator: either a scalar that holds at every
// quadrature point, or one value per point.
type Result struct {
	Constant bool
	Scalar   float64
	Vector   []float64
}

// At returns the value at quadrature point i.
func (r Result) At(i int) float64 {
	if r.Constant {
		return r.Scalar
	}
	return r.Vector[i]
}

// EvalManager supplies quadrature batch data to leaf evaluators.
type EvalManager interface {
	// Verb is the evaluation diagnostic verbosity.
	Verb() int

	// Points is the number of quadrature points in the batch.
	Points() int

	// Coordinate returns the per-point values of spatial coordinate dir.
	Coordinate(dir int) []float64

	// Field returns the per-point values of the named field. Unknown
	// functions read their linearisation point through the same lookup.
	Field(name string) []float64

	// Logger receives evaluation diagnostics when Verb() > 0.
	Logger() *slog.Logger
}

// Evaluator computes one node's superset of derivatives for a batch.
// Results are laid out in superset order.
type Evaluator interface {
	Expr() Expr
	Superset() multiset.Set
	Eval(mgr EvalManager) []Result
	// Calls is how many times Eval has run.
	Calls() int
}

// Factory builds the evaluator for e. The superset is passed in explicitly
// so the evaluator can size its tables at construction time.
type Factory func(s *Setup, e Expr, superset multiset.Set) Evaluator

// FactoryTable maps node kinds to evaluator factories.
type FactoryTable map[Kind]Factory

// Evaluator returns the evaluator of e under this setup, constructing it on
// first use. At most one evaluator is ever built per (node, context) pair,
// including under concurrent callers.
//
// Panics with *SetupError if the setup pass did not reach e or no factory
// is registered for e's kind.
func (s *Setup) Evaluator(e Expr) Evaluator {
	n := e.n()
	if ev, ok := s.cachedEvaluator(n); ok {
		return ev
	}

	superset := s.SparsitySuperset(e)
	factory, ok := s.dag.factories[n.kind]
	if !ok || factory == nil {
		panic(&SetupError{Context: s.ctx, Node: e.String(), Message: "no evaluator factory registered for kind " + n.kind.String()})
	}

	v, _, _ := s.dag.flight.Do(s.ctx.flightKey(e.id), func() (any, error) {
		if ev, ok := s.cachedEvaluator(n); ok {
			return ev, nil
		}
		ev := factory(s, e, superset)
		n.mu.Lock()
		if n.evaluators == nil {
			n.evaluators = make(map[EvalContext]Evaluator)
		}
		n.evaluators[s.ctx] = ev
		n.mu.Unlock()
		return ev, nil
	})
	return v.(Evaluator)
}

// RootEvaluator returns the evaluator of the setup's root.
func (s *Setup) RootEvaluator() Evaluator {
	return s.Evaluator(s.root)
}

func (s *Setup) cachedEvaluator(n *node) (Evaluator, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ev, ok := n.evaluators[s.ctx]
	return ev, ok
}

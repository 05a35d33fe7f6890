package expr

import (
	"log/slog"

	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// Setup is the result of the superset pass for one context. It is the only
// way to reach sparsity supersets and evaluators, so evaluator construction
// cannot precede it.
type Setup struct {
	dag   *DAG
	ctx   EvalContext
	root  Expr
	nodes []Expr // reverse post-order: parents before children
}

// Setup runs the top-down superset pass for root under ctx and returns the
// memoized result. A context is bound to the first root it is set up with;
// calling Setup again with the same context and root returns the same
// value, with another root it panics with *SetupError.
func (d *DAG) Setup(root Expr, ctx EvalContext) *Setup {
	if root.dag != d {
		panic(&SetupError{Context: ctx, Message: "root belongs to another DAG"})
	}

	d.setupMu.Lock()
	defer d.setupMu.Unlock()

	if s, ok := d.setups[ctx]; ok {
		if s.root != root {
			panic(&SetupError{
				Context: ctx,
				Node:    root.String(),
				Message: "context already set up for root " + s.root.String(),
			})
		}
		return s
	}

	s := &Setup{dag: d, ctx: ctx, root: root}
	s.propagate()
	d.setups[ctx] = s
	return s
}

func (s *Setup) propagate() {
	post := s.dag.PostOrder(s.root)
	s.nodes = make([]Expr, len(post))
	for i, e := range post {
		s.nodes[len(post)-1-i] = e
	}

	required := map[NodeID]multiset.Set{
		s.root.id: s.root.FindAllW(s.ctx),
	}
	add := func(child Expr, d multiset.MultiSet) {
		required[child.id] = required[child.id].Put(d)
	}

	for _, e := range s.nodes {
		req := required[e.id]
		s.storeSuperset(e, req)

		switch e.Kind() {
		case KindSum:
			for _, child := range e.Children() {
				w := child.FindAllW(s.ctx)
				for _, d := range req.Items() {
					if w.Contains(d) {
						add(child, d)
					}
				}
				if _, ok := required[child.id]; !ok {
					required[child.id] = multiset.Set{}
				}
			}
		case KindProduct:
			b := BinaryExpr{Expr: e}
			l, r := e.Left(), e.Right()
			for _, c := range []Expr{l, r} {
				if _, ok := required[c.id]; !ok {
					required[c.id] = multiset.Set{}
				}
			}
			for _, d := range req.Items() {
				for _, t := range b.LeibnizTerms(d, s.ctx) {
					add(l, t.Left)
					add(r, t.Right)
				}
			}
		}

		if s.ctx.SetupVerb > 0 {
			s.dag.logger.Debug("superset",
				slog.Any("context", s.ctx),
				slog.String("node", e.String()),
				slog.String("superset", req.String()),
				slog.Int("fan_in", e.FanIn()),
			)
		}
	}
}

func (s *Setup) storeSuperset(e Expr, superset multiset.Set) {
	n := e.n()
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.supersets[s.ctx]; ok {
		panic(internalf("superset for node %s in context %s computed twice", e, s.ctx))
	}
	if n.supersets == nil {
		n.supersets = make(map[EvalContext]multiset.Set)
	}
	n.supersets[s.ctx] = superset
}

// Context returns the context this setup was computed for.
func (s *Setup) Context() EvalContext { return s.ctx }

// Root returns the root expression.
func (s *Setup) Root() Expr { return s.root }

// DAG returns the owning arena.
func (s *Setup) DAG() *DAG { return s.dag }

// Nodes returns every reached node, parents before children.
func (s *Setup) Nodes() []Expr {
	return append([]Expr(nil), s.nodes...)
}

// SparsitySuperset returns the derivatives e must produce under this
// setup's context. Panics with *SetupError if the pass never reached e.
func (s *Setup) SparsitySuperset(e Expr) multiset.Set {
	n := e.n()
	n.mu.Lock()
	superset, ok := n.supersets[s.ctx]
	n.mu.Unlock()
	if !ok {
		panic(&SetupError{Context: s.ctx, Node: e.String(), Message: "superset requested for a node the setup pass did not reach"})
	}
	return superset
}

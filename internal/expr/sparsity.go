package expr

import (
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// staticSets holds the structural derivative sets of one (node, context)
// pair. w lists every derivative that is not identically zero; c is the
// subset known to be uniform over a cell.
type staticSets struct {
	w multiset.Set
	c multiset.Set
}

var (
	selectLeft  = multiset.Of(0)
	selectRight = multiset.Of(1)
	selectBoth  = multiset.Of(0, 1)
)

func (e Expr) static(ctx EvalContext) *staticSets {
	n := e.n()
	n.mu.Lock()
	s, ok := n.static[ctx]
	n.mu.Unlock()
	if ok {
		return s
	}

	s = e.computeStatic(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.static[ctx]; ok {
		return existing
	}
	if n.static == nil {
		n.static = make(map[EvalContext]*staticSets)
	}
	n.static[ctx] = s
	return s
}

func (e Expr) computeStatic(ctx EvalContext) *staticSets {
	n := e.n()
	empty := multiset.Empty()
	switch n.kind {
	case KindConstant:
		if n.value == 0 {
			return &staticSets{}
		}
		return &staticSets{w: multiset.NewSet(empty), c: multiset.NewSet(empty)}
	case KindCoordinate, KindField:
		return &staticSets{w: multiset.NewSet(empty)}
	case KindUnknown:
		s := &staticSets{w: multiset.NewSet(empty)}
		if ctx.MaxOrder >= 1 {
			first := multiset.Of(n.funcID)
			s.w = s.w.Put(first)
			s.c = multiset.NewSet(first)
		}
		return s
	case KindTest:
		if ctx.MaxOrder < 1 {
			return &staticSets{}
		}
		first := multiset.NewSet(multiset.Of(n.funcID))
		return &staticSets{w: first, c: first}
	case KindSum:
		return e.sumStatic(ctx)
	case KindProduct:
		return e.productStatic(ctx)
	}
	panic(internalf("static sets: invalid kind %d", n.kind))
}

func (e Expr) sumStatic(ctx EvalContext) *staticSets {
	l, r := e.Left().static(ctx), e.Right().static(ctx)
	s := &staticSets{w: l.w.Union(r.w)}
	for _, d := range s.w.Items() {
		if (!l.w.Contains(d) || l.c.Contains(d)) && (!r.w.Contains(d) || r.c.Contains(d)) {
			s.c = s.c.Put(d)
		}
	}
	return s
}

func (e Expr) productStatic(ctx EvalContext) *staticSets {
	b := BinaryExpr{Expr: e}
	l, r := e.Left().static(ctx), e.Right().static(ctx)
	s := &staticSets{}
	variable := make(map[string]bool)
	for _, d1 := range l.w.Items() {
		for _, d2 := range r.w.Items() {
			d := d1.Union(d2)
			if d.Order() > ctx.MaxOrder || !b.termAllowed(d1, d2, ctx) {
				continue
			}
			s.w = s.w.Put(d)
			if !l.c.Contains(d1) || !r.c.Contains(d2) {
				variable[d.Key()] = true
			}
		}
	}
	for _, d := range s.w.Items() {
		if !variable[d.Key()] {
			s.c = s.c.Put(d)
		}
	}
	return s
}

// FindW returns the derivatives of the given order that are structurally
// nonzero for ctx.
func (e Expr) FindW(order int, ctx EvalContext) multiset.Set {
	return e.static(ctx).w.OfOrder(order)
}

// FindC returns the nonzero derivatives of the given order that are
// uniform over a cell.
func (e Expr) FindC(order int, ctx EvalContext) multiset.Set {
	return e.static(ctx).c.OfOrder(order)
}

// FindV returns the nonzero derivatives of the given order whose values
// vary across quadrature points.
func (e Expr) FindV(order int, ctx EvalContext) multiset.Set {
	s := e.static(ctx)
	return s.w.Minus(s.c).OfOrder(order)
}

// FindAllW returns every structurally nonzero derivative up to
// ctx.MaxOrder.
func (e Expr) FindAllW(ctx EvalContext) multiset.Set {
	return e.static(ctx).w
}

// IsConstantDeriv reports whether derivative d of e is nonzero and uniform
// over a cell.
func (e Expr) IsConstantDeriv(d multiset.MultiSet, ctx EvalContext) bool {
	return e.static(ctx).c.Contains(d)
}

func hasOrderAtLeast(s multiset.Set, k int) bool {
	for _, d := range s.Items() {
		if d.Order() >= k {
			return true
		}
	}
	return false
}

func childSelector(left, right bool) multiset.Set {
	var out multiset.Set
	if left {
		out = out.Put(selectLeft)
	}
	if right {
		out = out.Put(selectRight)
	}
	return out
}

// InternalFindQW returns the child selectors through which derivatives of
// the given operator order reach this node.
//
// For a product, order 2 is always the cross term {0,1}. At order 1, {1}
// means the left child is differentiated while the right stays
// undifferentiated, and {0} the reverse. At order 0, {i} means child i has
// a nonzero value. Orders above 2 yield nothing. For a sum, {i} means child
// i has nonzero derivatives of that order.
func (b BinaryExpr) InternalFindQW(order int, ctx EvalContext) multiset.Set {
	l, r := b.Left(), b.Right()
	if b.Kind() == KindSum {
		return childSelector(!l.FindW(order, ctx).IsEmpty(), !r.FindW(order, ctx).IsEmpty())
	}
	switch {
	case order > 2 || order < 0:
		return multiset.Set{}
	case order == 2:
		return multiset.NewSet(selectBoth)
	case order == 1:
		return childSelector(
			hasOrderAtLeast(r.FindAllW(ctx), 1),
			hasOrderAtLeast(l.FindAllW(ctx), 1),
		)
	default:
		return childSelector(!l.FindW(0, ctx).IsEmpty(), !r.FindW(0, ctx).IsEmpty())
	}
}

// InternalFindQV returns the child selectors through which varying values
// reach this node. For a product, orders above 1 yield nothing and orders 0
// and 1 select each child whose undifferentiated value varies.
func (b BinaryExpr) InternalFindQV(order int, ctx EvalContext) multiset.Set {
	l, r := b.Left(), b.Right()
	if b.Kind() == KindSum {
		return childSelector(!l.FindV(order, ctx).IsEmpty(), !r.FindV(order, ctx).IsEmpty())
	}
	if order > 1 || order < 0 {
		return multiset.Set{}
	}
	return childSelector(!l.FindV(0, ctx).IsEmpty(), !r.FindV(0, ctx).IsEmpty())
}

// termAllowed reports whether the product term pairing left derivative d1
// with right derivative d2 survives the operator's selector tables.
func (b BinaryExpr) termAllowed(d1, d2 multiset.MultiSet, ctx EvalContext) bool {
	switch {
	case d1.IsEmpty() && d2.IsEmpty():
		q := b.InternalFindQW(0, ctx)
		return q.Contains(selectLeft) && q.Contains(selectRight)
	case d2.IsEmpty():
		return b.InternalFindQW(1, ctx).Contains(selectRight)
	case d1.IsEmpty():
		return b.InternalFindQW(1, ctx).Contains(selectLeft)
	default:
		return b.InternalFindQW(2, ctx).Contains(selectBoth)
	}
}

// Term is one Leibniz contribution to a product derivative:
// Coef * dLeft(L) * dRight(R).
type Term struct {
	Left  multiset.MultiSet
	Right multiset.MultiSet
	Coef  float64
}

// LeibnizTerms expands derivative d of a product into its nonzero child
// pairs, sign folded into Coef. Terms come out in sub-multiset order of
// Left. Panics if b is not a product.
func (b BinaryExpr) LeibnizTerms(d multiset.MultiSet, ctx EvalContext) []Term {
	if b.Kind() != KindProduct {
		panic(internalf("leibniz terms requested for %s node", b.Kind()))
	}
	lw, rw := b.Left().FindAllW(ctx), b.Right().FindAllW(ctx)
	var terms []Term
	for _, d1 := range d.SubMultiSets() {
		d2, _ := d.Minus(d1)
		if !lw.Contains(d1) || !rw.Contains(d2) || !b.termAllowed(d1, d2, ctx) {
			continue
		}
		terms = append(terms, Term{
			Left:  d1,
			Right: d2,
			Coef:  multiset.SplitCoefficient(d, d1) * float64(b.Sign()),
		})
	}
	return terms
}

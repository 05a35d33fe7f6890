package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

var second = EvalContext{Label: "jacobian", MaxOrder: 2}

func TestStaticSets_Leaves(t *testing.T) {
	d := NewDAG()
	tests := []struct {
		name string
		e    Expr
		ctx  EvalContext
		w, c string
	}{
		{"nonzero constant", d.MustConstant(3), second, "{{}}", "{{}}"},
		{"zero constant", d.MustConstant(0), second, "{}", "{}"},
		{"coordinate", d.MustCoordinate(1), second, "{{}}", "{}"},
		{"field", d.MustField("rho"), second, "{{}}", "{}"},
		{"unknown", d.MustUnknown("u", 0), second, "{{},{0}}", "{{0}}"},
		{"unknown at order 0", d.MustUnknown("u", 0), EvalContext{Label: "value"}, "{{}}", "{}"},
		{"test", d.MustTest("v", 1), second, "{{1}}", "{{1}}"},
		{"test at order 0", d.MustTest("v", 1), EvalContext{Label: "value"}, "{}", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.w, tt.e.FindAllW(tt.ctx).String())
			s := tt.e.static(tt.ctx)
			assert.Equal(t, tt.c, s.c.String())
		})
	}
}

func TestStaticSets_Sum(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	s := d.MustSum(u, d.MustCoordinate(0))

	assert.Equal(t, "{{},{0}}", s.FindAllW(second).String())
	assert.Equal(t, "{{0}}", s.FindC(1, second).String())
	assert.Equal(t, "{{}}", s.FindV(0, second).String())
	assert.True(t, s.FindC(0, second).IsEmpty())
	assert.True(t, s.IsConstantDeriv(multiset.Of(0), second))
	assert.False(t, s.IsConstantDeriv(multiset.Empty(), second))
}

func TestStaticSets_Product(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)

	vu := d.MustProduct(v, u)
	assert.Equal(t, "{{1},{0,1}}", vu.FindAllW(second).String())
	assert.Equal(t, "{{1}}", vu.FindV(1, second).String())
	assert.Equal(t, "{{0,1}}", vu.FindC(2, second).String())

	uu := d.MustProduct(u, u)
	assert.Equal(t, "{{},{0},{0,0}}", uu.FindAllW(second).String())
	assert.Equal(t, "{{0,0}}", uu.FindC(2, second).String())
	assert.Equal(t, "{{}}", uu.FindAllW(EvalContext{Label: "value"}).String(), "orders capped by MaxOrder")

	zero := d.MustProduct(d.MustConstant(0), u)
	assert.True(t, zero.FindAllW(second).IsEmpty(), "zero factor annihilates the product")
}

func TestInternalFindQ_Product(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)
	b, ok := d.MustProduct(v, u).AsBinary()
	require.True(t, ok)

	assert.Equal(t, "{{1}}", b.InternalFindQW(0, second).String(), "only the right child has a value")
	assert.Equal(t, "{{0},{1}}", b.InternalFindQW(1, second).String())
	assert.Equal(t, "{{0,1}}", b.InternalFindQW(2, second).String())
	assert.Equal(t, "{{1}}", b.InternalFindQV(0, second).String())
	assert.Equal(t, "{{1}}", b.InternalFindQV(1, second).String())
}

func TestInternalFindQ_ProductTruncation(t *testing.T) {
	d := NewDAG()
	high := EvalContext{Label: "high", MaxOrder: 6}
	leaves := []Expr{
		d.MustConstant(2), d.MustConstant(0), d.MustCoordinate(0),
		d.MustField("a"), d.MustUnknown("u", 0), d.MustTest("v", 1),
	}
	for _, l := range leaves {
		for _, r := range leaves {
			b, _ := d.MustProduct(l, r).AsBinary()
			for k := 3; k <= 6; k++ {
				assert.True(t, b.InternalFindQW(k, high).IsEmpty(), "QW(%d) of %s", k, b)
			}
			for k := 2; k <= 6; k++ {
				assert.True(t, b.InternalFindQV(k, high).IsEmpty(), "QV(%d) of %s", k, b)
			}
		}
	}
}

func TestInternalFindQ_ProductOrderTwoAlwaysCrossTerm(t *testing.T) {
	d := NewDAG()
	b, _ := d.MustProduct(d.MustCoordinate(0), d.MustField("a")).AsBinary()
	assert.Equal(t, "{{0,1}}", b.InternalFindQW(2, second).String())
}

func TestInternalFindQ_EitherBothNeither(t *testing.T) {
	d := NewDAG()
	leaves := []Expr{
		d.MustConstant(2), d.MustConstant(0), d.MustCoordinate(0),
		d.MustField("a"), d.MustUnknown("u", 0), d.MustTest("v", 1),
	}
	allowed := multiset.NewSet(multiset.Of(0), multiset.Of(1))

	for _, l := range leaves {
		for _, r := range leaves {
			b, _ := d.MustProduct(l, r).AsBinary()

			for _, k := range []int{0, 1} {
				qw := b.InternalFindQW(k, second)
				assert.True(t, qw.Minus(allowed).IsEmpty(), "QW(%d) of %s is %s", k, b, qw)
				qv := b.InternalFindQV(k, second)
				assert.True(t, qv.Minus(allowed).IsEmpty(), "QV(%d) of %s is %s", k, b, qv)

				anyV := !l.FindV(0, second).IsEmpty() || !r.FindV(0, second).IsEmpty()
				assert.Equal(t, anyV, !qv.IsEmpty(), "QV(%d) of %s", k, b)
			}

			anyW0 := !l.FindW(0, second).IsEmpty() || !r.FindW(0, second).IsEmpty()
			assert.Equal(t, anyW0, !b.InternalFindQW(0, second).IsEmpty(), "QW(0) of %s", b)

			anyW1 := hasOrderAtLeast(l.FindAllW(second), 1) || hasOrderAtLeast(r.FindAllW(second), 1)
			assert.Equal(t, anyW1, !b.InternalFindQW(1, second).IsEmpty(), "QW(1) of %s", b)
		}
	}
}

func TestInternalFindQ_Sum(t *testing.T) {
	d := NewDAG()
	b, _ := d.MustSum(d.MustUnknown("u", 0), d.MustConstant(4)).AsBinary()

	assert.Equal(t, "{{0},{1}}", b.InternalFindQW(0, second).String())
	assert.Equal(t, "{{0}}", b.InternalFindQW(1, second).String())
	assert.Equal(t, "{{0}}", b.InternalFindQV(0, second).String())
	assert.True(t, b.InternalFindQV(1, second).IsEmpty())
}

func TestLeibnizTerms(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	uu, _ := d.MustProduct(u, u).AsBinary()

	terms := uu.LeibnizTerms(multiset.Of(0), second)
	require.Len(t, terms, 2)
	assert.Equal(t, 1.0, terms[0].Coef)
	assert.True(t, terms[0].Left.IsEmpty())
	assert.True(t, terms[1].Right.IsEmpty())

	terms = uu.LeibnizTerms(multiset.Of(0, 0), second)
	require.Len(t, terms, 1)
	assert.Equal(t, 2.0, terms[0].Coef)

	neg, _ := must(d.Binary(KindProduct, u, d.MustTest("v", 1), -1)).AsBinary()
	terms = neg.LeibnizTerms(multiset.Of(0, 1), second)
	require.Len(t, terms, 1)
	assert.Equal(t, -1.0, terms[0].Coef)

	sum, _ := d.MustSum(u, u).AsBinary()
	assert.Panics(t, func() { sum.LeibnizTerms(multiset.Of(0), second) })
}

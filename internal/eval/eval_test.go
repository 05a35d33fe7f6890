package eval

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

var (
	valueCtx    = expr.EvalContext{Label: "value"}
	jacobianCtx = expr.EvalContext{Label: "jacobian", MaxOrder: 2}
)

func run(t *testing.T, root expr.Expr, ctx expr.EvalContext, data BatchData) *Report {
	t.Helper()
	s := root.DAG().Setup(root, ctx)
	report, err := NewRunner().Run(context.Background(), s, MustBatch(data))
	require.NoError(t, err)
	return report
}

func valueOf(t *testing.T, report *Report, d multiset.MultiSet) expr.Result {
	t.Helper()
	r, ok := report.Lookup(d)
	require.True(t, ok, "no result for %s", d)
	return r
}

func TestRun_EndToEnd(t *testing.T) {
	d := NewDAG()
	x0 := d.MustConstant(2.0)
	x1 := d.MustField("x1")
	x2 := d.MustConstant(5.0)
	root := d.MustProduct(d.MustSum(x0, x1), x2)

	report := run(t, root, valueCtx, BatchData{
		Points: 2,
		Fields: map[string][]float64{"x1": {1.0, 3.0}},
	})

	require.Len(t, report.Entries, 1)
	got := valueOf(t, report, multiset.Empty())
	assert.False(t, got.Constant)
	assert.InDeltaSlice(t, []float64{15.0, 25.0}, got.Vector, 1e-12)
	assert.Equal(t, int64(1), report.Seq)
	assert.Equal(t, 2, report.Points)
}

func TestRun_ConstantPropagation(t *testing.T) {
	d := NewDAG()
	a := d.MustConstant(3)
	b := d.MustConstant(4)

	tests := []struct {
		name string
		e    expr.Expr
		want float64
	}{
		{"sum", d.MustSum(a, b), 7},
		{"difference", d.MustDifference(a, b), -1},
		{"product", d.MustProduct(a, b), 12},
		{"negative product", must(d.Binary(expr.KindProduct, a, b, -1)), -12},
		{"nested", d.MustDifference(d.MustProduct(a, b), d.MustSum(a, a)), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := run(t, tt.e, valueCtx, BatchData{Points: 3})
			got := valueOf(t, report, multiset.Empty())
			assert.True(t, got.Constant)
			assert.InDelta(t, tt.want, got.Scalar, 1e-12)
		})
	}
}

func TestRun_VectorBroadcast(t *testing.T) {
	d := NewDAG()
	c := d.MustConstant(10)
	f := d.MustField("f")
	data := BatchData{Points: 3, Fields: map[string][]float64{"f": {1, 2, 3}}}

	tests := []struct {
		name string
		e    expr.Expr
		want []float64
	}{
		{"constant plus vector", d.MustSum(c, f), []float64{11, 12, 13}},
		{"vector plus constant", d.MustSum(f, c), []float64{11, 12, 13}},
		{"constant minus vector", d.MustDifference(c, f), []float64{9, 8, 7}},
		{"vector minus constant", d.MustDifference(f, c), []float64{-9, -8, -7}},
		{"constant times vector", d.MustProduct(c, f), []float64{10, 20, 30}},
		{"vector times constant", d.MustProduct(f, c), []float64{10, 20, 30}},
		{"vector times vector", d.MustProduct(f, f), []float64{1, 4, 9}},
		{"vector minus vector", d.MustDifference(f, d.MustProduct(f, f)), []float64{0, -2, -6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := run(t, tt.e, valueCtx, data)
			got := valueOf(t, report, multiset.Empty())
			assert.False(t, got.Constant)
			assert.Len(t, got.Vector, 3)
			assert.InDeltaSlice(t, tt.want, got.Vector, 1e-12)
		})
	}
}

func TestRun_InputsNotAliased(t *testing.T) {
	d := NewDAG()
	f := d.MustField("f")
	x := d.MustCoordinate(0)
	v := d.MustTest("v", 0)
	firstOrder := expr.EvalContext{Label: "first", MaxOrder: 1}

	tests := []struct {
		name string
		root expr.Expr
		ctx  expr.EvalContext
	}{
		{"difference", d.MustDifference(f, d.MustConstant(1)), valueCtx},
		{"bare field", f, valueCtx},
		{"bare coordinate", x, valueCtx},
		{"one-sided sum", d.MustSum(f, v), firstOrder},
		{"one-sided difference", d.MustDifference(v, x), firstOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := BatchData{
				Points: 2,
				Coords: [][]float64{{1, 2}},
				Fields: map[string][]float64{"f": {5, 6}},
			}
			report := run(t, tt.root, tt.ctx, data)
			for _, e := range report.Entries {
				for i := range e.Result.Vector {
					e.Result.Vector[i] = 99
				}
			}
			assert.Equal(t, []float64{5, 6}, data.Fields["f"])
			assert.Equal(t, []float64{1, 2}, data.Coords[0])
		})
	}
}

func TestRun_ProductDerivatives(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	data := BatchData{Points: 2, Fields: map[string][]float64{"u": {1, 2}}}

	report := run(t, d.MustProduct(u, u), jacobianCtx, data)
	require.Len(t, report.Entries, 3)

	value := valueOf(t, report, multiset.Empty())
	assert.InDeltaSlice(t, []float64{1, 4}, value.Vector, 1e-12)

	first := valueOf(t, report, multiset.Of(0))
	assert.False(t, first.Constant)
	assert.InDeltaSlice(t, []float64{2, 4}, first.Vector, 1e-12)

	second := valueOf(t, report, multiset.Of(0, 0))
	assert.True(t, second.Constant)
	assert.InDelta(t, 2.0, second.Scalar, 1e-12)
}

func TestRun_WeakFormTerm(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)
	k := d.MustField("k")
	// k*u*v: residual contribution is k*u, jacobian entry is k.
	root := d.MustProduct(k, d.MustProduct(u, v))
	data := BatchData{Points: 2, Fields: map[string][]float64{"u": {3, 4}, "k": {0.5, 2}}}

	report := run(t, root, jacobianCtx, data)
	assert.Equal(t, "{{1},{0,1}}", root.DAG().Setup(root, jacobianCtx).SparsitySuperset(root).String())

	residual := valueOf(t, report, multiset.Of(1))
	assert.InDeltaSlice(t, []float64{1.5, 8}, residual.Vector, 1e-12)

	jac := valueOf(t, report, multiset.Of(0, 1))
	assert.False(t, jac.Constant)
	assert.InDeltaSlice(t, []float64{0.5, 2}, jac.Vector, 1e-12)
}

func TestRun_SignedProductDerivative(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)
	root := must(d.Binary(expr.KindProduct, u, v, -1))

	report := run(t, root, jacobianCtx, BatchData{Points: 1, Fields: map[string][]float64{"u": {7}}})
	assert.InDeltaSlice(t, []float64{-7}, valueOf(t, report, multiset.Of(1)).Vector, 1e-12)
	jac := valueOf(t, report, multiset.Of(0, 1))
	assert.True(t, jac.Constant)
	assert.Equal(t, -1.0, jac.Scalar)
}

func TestRun_SumOneSidedContributions(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	x := d.MustCoordinate(0)
	root := d.MustDifference(x, u)

	report := run(t, root, jacobianCtx, BatchData{
		Points: 2,
		Coords: [][]float64{{1, 2}},
		Fields: map[string][]float64{"u": {10, 20}},
	})
	assert.InDeltaSlice(t, []float64{-9, -18}, valueOf(t, report, multiset.Empty()).Vector, 1e-12)

	du := valueOf(t, report, multiset.Of(0))
	assert.True(t, du.Constant, "only the right side contributes and it is constant")
	assert.Equal(t, -1.0, du.Scalar)
}

// recordingManager logs the order in which leaves read batch data.
type recordingManager struct {
	*Batch
	reads []string
}

func (m *recordingManager) Field(name string) []float64 {
	m.reads = append(m.reads, name)
	return m.Batch.Field(name)
}

func TestEval_LeftBeforeRight(t *testing.T) {
	d := NewDAG()
	a, b, c := d.MustField("a"), d.MustField("b"), d.MustField("c")
	root := d.MustProduct(d.MustSum(a, b), d.MustDifference(c, a))
	s := d.Setup(root, valueCtx)

	mgr := &recordingManager{Batch: MustBatch(BatchData{Points: 1, Fields: map[string][]float64{
		"a": {1}, "b": {2}, "c": {3},
	}})}
	out := s.RootEvaluator().Eval(mgr)

	assert.Equal(t, []string{"a", "b", "c", "a"}, mgr.reads)
	assert.InDeltaSlice(t, []float64{6}, out[0].Vector, 1e-12)
}

func TestEvaluator_Memoized(t *testing.T) {
	d := NewDAG()
	f := d.MustField("f")
	root := d.MustProduct(f, d.MustSum(f, d.MustConstant(1)))
	s := d.Setup(root, valueCtx)

	first := s.Evaluator(root)
	assert.Same(t, first, s.Evaluator(root))
	assert.Same(t, s.Evaluator(f), first.(*ProductEvaluator).Left())

	runner := NewRunner()
	batch := MustBatch(BatchData{Points: 1, Fields: map[string][]float64{"f": {2}}})
	for i := 0; i < 3; i++ {
		_, err := runner.Run(context.Background(), s, batch)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, first.Calls())
	assert.Equal(t, 6, s.Evaluator(f).Calls(), "shared leaf evaluated once per parent slot")
	assert.Equal(t, int64(3), runner.Clock().Current())
}

func TestEvaluator_Clients(t *testing.T) {
	d := NewDAG()
	f := d.MustField("f")
	root := d.MustProduct(f, d.MustSum(f, d.MustConstant(1)))
	s := d.Setup(root, valueCtx)

	leaf, ok := s.Evaluator(f).(interface{ Clients() int })
	require.True(t, ok)
	assert.Equal(t, 2, leaf.Clients())
}

func TestEval_VerboseDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d := NewDAG()
	root := d.MustSum(d.MustConstant(1), d.MustField("f"))
	s := d.Setup(root, valueCtx)

	quiet := MustBatch(BatchData{Points: 1, Fields: map[string][]float64{"f": {1}}}, WithBatchLogger(logger))
	s.RootEvaluator().Eval(quiet)
	assert.Empty(t, buf.String())

	loud := MustBatch(BatchData{Points: 1, Verb: 2, Fields: map[string][]float64{"f": {1}}}, WithBatchLogger(logger))
	s.RootEvaluator().Eval(loud)
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "msg=eval"))
	assert.Contains(t, out, `node="1 + f"`)
	assert.Contains(t, out, "{}=[2]")
}

func must(e expr.Expr, err error) expr.Expr {
	if err != nil {
		panic(err)
	}
	return e
}
